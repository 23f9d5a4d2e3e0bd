package ui

import "github.com/bamsammich/dirsync/internal/event"

// Event is the engine event type presenters consume.
type Event = event.Event

// Re-export event types for convenience.
const (
	ListStarted   = event.ListStarted
	ListComplete  = event.ListComplete
	EntryFailed   = event.EntryFailed
	DiffFound     = event.DiffFound
	FileCopied    = event.FileCopied
	FileFailed    = event.FileFailed
	DirCreated    = event.DirCreated
	WouldCopy     = event.WouldCopy
	VerifyStarted = event.VerifyStarted
	VerifyOK      = event.VerifyOK
	VerifyFailed  = event.VerifyFailed
)
