package entry

import (
	"errors"
	"fmt"
)

// ErrDuplicatePath is returned by List.Append when the path is already present.
var ErrDuplicatePath = errors.New("duplicate path")

// List is an append-only sequence of entries discovered under Root. It has
// exactly one producer; once handed to the diff engine it is read-only.
type List struct {
	Root    string
	entries []Entry
	seen    map[string]struct{}
}

// NewList creates an empty list for root.
func NewList(root string) *List {
	return &List{Root: root, seen: make(map[string]struct{})}
}

// Append adds e to the end of the list.
func (l *List) Append(e Entry) error {
	if _, dup := l.seen[e.Path]; dup {
		return fmt.Errorf("append %s: %w", e.Path, ErrDuplicatePath)
	}
	l.seen[e.Path] = struct{}{}
	l.entries = append(l.entries, e)
	return nil
}

// Len returns the number of entries.
func (l *List) Len() int { return len(l.entries) }

// Entries returns the entries in insertion order. Callers must not modify
// the returned slice.
func (l *List) Entries() []Entry { return l.entries }
