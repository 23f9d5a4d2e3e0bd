package engine

import (
	"github.com/bamsammich/dirsync/internal/bus"
	"github.com/bamsammich/dirsync/internal/event"
)

// Role fixes which tag a worker drains and where it replies, for the
// worker's whole lifetime.
type Role int

const (
	SourceLister Role = iota + 1
	DestinationLister
	SourceAnalyzer
	DestinationAnalyzer
)

func (r Role) String() string {
	switch r {
	case SourceLister:
		return "source-lister"
	case DestinationLister:
		return "destination-lister"
	case SourceAnalyzer:
		return "source-analyzer"
	case DestinationAnalyzer:
		return "destination-analyzer"
	default:
		return "unknown"
	}
}

// Inbox is the tag the worker receives on.
func (r Role) Inbox() bus.Tag {
	switch r {
	case SourceLister:
		return bus.SourceLister
	case DestinationLister:
		return bus.DestinationLister
	case SourceAnalyzer:
		return bus.SourceAnalyzers
	default:
		return bus.DestinationAnalyzers
	}
}

// ReplyTo is the tag the worker's results go to: listers report to the
// orchestrator, analyzers answer their side's lister.
func (r Role) ReplyTo() bus.Tag {
	switch r {
	case SourceAnalyzer:
		return bus.SourceLister
	case DestinationAnalyzer:
		return bus.DestinationLister
	default:
		return bus.Orchestrator
	}
}

// Analyzers is the analyzer tag a lister dispatches to.
func (r Role) Analyzers() bus.Tag {
	if r.Side() == event.Source {
		return bus.SourceAnalyzers
	}
	return bus.DestinationAnalyzers
}

// Side reports which tree the role works on.
func (r Role) Side() event.Side {
	if r == SourceLister || r == SourceAnalyzer {
		return event.Source
	}
	return event.Destination
}

// IsLister reports whether r is one of the two lister roles.
func (r Role) IsLister() bool { return r == SourceLister || r == DestinationLister }

func (r Role) foundKind() bus.Kind {
	if r.Side() == event.Source {
		return bus.SourceEntryFound
	}
	return bus.DestinationEntryFound
}

func (r Role) completeKind() bus.Kind {
	if r.Side() == event.Source {
		return bus.SourceListComplete
	}
	return bus.DestinationListComplete
}

// AnalyzersPerSide splits a total worker budget: two listers, the rest
// shared evenly between the sides, at least one analyzer each.
func AnalyzersPerSide(workers int) int {
	return max(1, (workers-2)/2)
}
