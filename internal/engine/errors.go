package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation marks a message a worker did not expect in its
	// current state.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrAttrs marks a copy whose data landed but whose mtime or mode could
	// not be applied.
	ErrAttrs = errors.New("set attributes")
	// ErrNotDirectory is returned when a sync root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrNotWritable is returned when the destination root cannot be written.
	ErrNotWritable = errors.New("not writable")
)

// CopyErrorKind classifies a copy failure.
type CopyErrorKind int

const (
	CopyFailed CopyErrorKind = iota + 1
)

func (k CopyErrorKind) String() string {
	if k == CopyFailed {
		return "copy failed"
	}
	return "copy error"
}

// CopyError is the failure to apply one diff entry to the destination.
type CopyError struct {
	Err  error
	Src  string
	Dst  string
	Kind CopyErrorKind
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s %s -> %s: %v", e.Kind, e.Src, e.Dst, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }
