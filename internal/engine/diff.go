package engine

import (
	"github.com/bamsammich/dirsync/internal/entry"
)

// DiffSet is the ordered list of source entries the destination lacks or
// holds stale copies of.
type DiffSet []entry.Entry

// Bytes sums the sizes of the files in the set.
func (d DiffSet) Bytes() int64 {
	var n int64
	for _, e := range d {
		if !e.IsDir() {
			n += e.Size
		}
	}
	return n
}

// Files counts the regular files in the set.
func (d DiffSet) Files() int {
	var n int
	for _, e := range d {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

// Diff decides which source entries must be applied to the destination.
// Entries are compared by path relative to their list's root. Destination
// entries with no source counterpart are never included. Output follows
// source order.
func Diff(src, dst *entry.List, compareHash bool) DiffSet {
	byPath := make(map[string]entry.Entry, dst.Len())
	for _, e := range dst.Entries() {
		rel, err := entry.RelPath(dst.Root, e.Path)
		if err != nil {
			continue
		}
		byPath[rel] = e
	}

	var out DiffSet
	for _, s := range src.Entries() {
		rel, err := entry.RelPath(src.Root, s.Path)
		if err != nil {
			continue
		}
		d, ok := byPath[rel]
		if !ok || differs(s, d, compareHash) {
			out = append(out, s)
		}
	}
	return out
}

func differs(s, d entry.Entry, compareHash bool) bool {
	if s.Kind != d.Kind || s.Mode != d.Mode {
		return true
	}
	if s.IsDir() {
		return false
	}
	if compareHash && s.HasHash && d.HasHash && s.Hash != d.Hash {
		return true
	}
	return s.Size != d.Size || !s.ModTime.Equal(d.ModTime)
}
