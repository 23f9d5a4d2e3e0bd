// Package walker enumerates a directory tree as a lazy sequence of paths.
package walker

import (
	"fmt"
	"iter"
	"os"

	"github.com/bamsammich/dirsync/internal/entry"
	"github.com/bamsammich/dirsync/internal/filter"
)

// ErrorKind classifies a walk failure.
type ErrorKind int

const (
	// DirectoryUnreadable means the walk root could not be listed.
	DirectoryUnreadable ErrorKind = iota + 1
	// SubtreeUnreadable means a nested directory could not be listed;
	// the walk continues with its siblings.
	SubtreeUnreadable
)

func (k ErrorKind) String() string {
	switch k {
	case DirectoryUnreadable:
		return "directory unreadable"
	case SubtreeUnreadable:
		return "subtree unreadable"
	default:
		return "walk error"
	}
}

// Error is a walk failure for one directory.
type Error struct {
	Err  error
	Path string
	Kind ErrorKind
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Option configures Walk.
type Option func(*walker)

// WithFilter skips paths the chain rejects. Rejected directories are not
// descended into.
func WithFilter(chain *filter.Chain) Option {
	return func(w *walker) {
		if chain != nil && !chain.Empty() {
			w.filter = chain
		}
	}
}

type walker struct {
	filter *filter.Chain
	root   string
}

// Walk lists root and returns a sequence over everything beneath it. Regular
// files are yielded as found; each subdirectory is yielded before its
// contents. The root itself, symlinks, devices, sockets and pipes are never
// yielded. An unreadable subdirectory yields ("", *Error) and the walk goes
// on. Entries come in name order within each directory.
//
// If root cannot be listed Walk returns a DirectoryUnreadable error.
func Walk(root string, opts ...Option) (iter.Seq2[string, error], error) {
	w := &walker{root: root}
	for _, o := range opts {
		o(w)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &Error{Kind: DirectoryUnreadable, Path: root, Err: err}
	}

	return func(yield func(string, error) bool) {
		w.visit(root, entries, yield)
	}, nil
}

func (w *walker) visit(dir string, entries []os.DirEntry, yield func(string, error) bool) bool {
	for _, de := range entries {
		name := de.Name()
		if name == "." || name == ".." {
			continue
		}

		path, err := entry.JoinPath(dir, name)
		if err != nil {
			if !yield("", &Error{Kind: SubtreeUnreadable, Path: dir, Err: err}) {
				return false
			}
			continue
		}

		typ := de.Type()
		switch {
		case typ.IsDir():
			if !w.included(path, de) {
				continue
			}
			if !yield(path, nil) {
				return false
			}
			children, err := os.ReadDir(path)
			if err != nil {
				if !yield("", &Error{Kind: SubtreeUnreadable, Path: path, Err: err}) {
					return false
				}
			}
			if !w.visit(path, children, yield) {
				return false
			}

		case typ.IsRegular():
			if !w.included(path, de) {
				continue
			}
			if !yield(path, nil) {
				return false
			}

		default:
			// symlink, device, socket, fifo
		}
	}
	return true
}

func (w *walker) included(path string, de os.DirEntry) bool {
	if w.filter == nil {
		return true
	}
	rel, err := entry.RelPath(w.root, path)
	if err != nil {
		return false
	}
	if de.IsDir() || !w.filter.HasSizeBounds() {
		return w.filter.MatchPath(rel, de.IsDir())
	}
	info, err := de.Info()
	if err != nil {
		// Let the prober report the disappearance.
		return w.filter.MatchPath(rel, false)
	}
	return w.filter.Match(rel, false, info.Size())
}
