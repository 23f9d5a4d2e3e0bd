package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ListStarted Type = iota + 1
	ListComplete
	EntryFailed
	DiffFound
	FileCopied
	FileFailed
	DirCreated
	WouldCopy
	VerifyStarted
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	ListStarted:   "ListStarted",
	ListComplete:  "ListComplete",
	EntryFailed:   "EntryFailed",
	DiffFound:     "DiffFound",
	FileCopied:    "FileCopied",
	FileFailed:    "FileFailed",
	DirCreated:    "DirCreated",
	WouldCopy:     "WouldCopy",
	VerifyStarted: "VerifyStarted",
	VerifyOK:      "VerifyOK",
	VerifyFailed:  "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Side says which tree a listing event belongs to.
type Side int

const (
	Source Side = iota + 1
	Destination
)

func (s Side) String() string {
	switch s {
	case Source:
		return "source"
	case Destination:
		return "destination"
	default:
		return ""
	}
}

// Event represents a single progress event from the engine.
type Event struct {
	Timestamp time.Time
	Error     error
	Path      string // relative path
	Size      int64  // file size
	Total     int64  // entry count (ListComplete, DiffFound)
	TotalSize int64  // byte count (DiffFound)
	Side      Side
	Type      Type
}

// Emit sends e on ch without blocking; a full or nil channel drops it.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case ch <- e:
	default:
	}
}
