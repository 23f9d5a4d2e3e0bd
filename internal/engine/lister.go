package engine

import (
	"context"
	"log/slog"

	"github.com/bamsammich/dirsync/internal/bus"
	"github.com/bamsammich/dirsync/internal/entry"
	"github.com/bamsammich/dirsync/internal/event"
	"github.com/bamsammich/dirsync/internal/filter"
	"github.com/bamsammich/dirsync/internal/stats"
	"github.com/bamsammich/dirsync/internal/walker"
)

type listerState int

const (
	listerIdle listerState = iota
	listerListing
	listerDispatching
	listerDraining
	listerReporting
)

func (s listerState) String() string {
	switch s {
	case listerIdle:
		return "idle"
	case listerListing:
		return "listing"
	case listerDispatching:
		return "dispatching"
	case listerDraining:
		return "draining"
	case listerReporting:
		return "reporting"
	default:
		return "unknown"
	}
}

// lister walks one side's root, farms the probing out to that side's
// analyzers at most `analyzers` requests at a time, and reports the result
// to the orchestrator in traversal order.
type lister struct {
	bus       *bus.Bus
	filter    *filter.Chain
	stats     *stats.Collector
	events    chan<- event.Event
	logger    *slog.Logger
	deferred  []bus.Message
	id        int
	analyzers int
	role      Role
	state     listerState
}

func (l *lister) run(ctx context.Context) error {
	for {
		msg, err := l.next(ctx)
		if err != nil {
			return err
		}

		switch msg.Kind {
		case bus.AnalyzeDirectory:
			if err := l.list(ctx, msg.Path); err != nil {
				return err
			}
		case bus.Terminate:
			return l.bus.Send(ctx, bus.Orchestrator, bus.Message{Kind: bus.TerminateAck, Worker: l.id})
		default:
			l.logger.Warn("unexpected message", "kind", msg.Kind, "state", l.state,
				"error", ErrProtocolViolation)
		}
	}
}

// next replays deferred messages before reading the inbox.
func (l *lister) next(ctx context.Context) (bus.Message, error) {
	if len(l.deferred) > 0 {
		msg := l.deferred[0]
		l.deferred = l.deferred[1:]
		return msg, nil
	}
	return l.bus.Receive(ctx, l.role.Inbox())
}

// list runs one Listing → Dispatching ⇄ Draining → Reporting cycle. It only
// returns an error when the bus fails.
func (l *lister) list(ctx context.Context, root string) error {
	l.state = listerListing
	defer func() { l.state = listerIdle }()

	seq, err := walker.Walk(root, walker.WithFilter(l.filter))
	if err != nil {
		l.logger.Error("cannot list root", "path", root, "error", err)
		return l.bus.Send(ctx, bus.Orchestrator, bus.Message{Kind: l.role.completeKind(), Path: root, Err: err})
	}

	var paths []string
	for path, err := range seq {
		if err != nil {
			l.subtreeFailed(err)
			continue
		}
		paths = append(paths, path)
	}

	list := entry.NewList(root)
	for start := 0; start < len(paths); start += l.analyzers {
		batch := paths[start:min(start+l.analyzers, len(paths))]
		results, err := l.analyze(ctx, batch)
		if err != nil {
			return err
		}
		for _, e := range results {
			if e == nil {
				continue
			}
			if err := list.Append(*e); err != nil {
				l.logger.Warn("dropping entry", "path", e.Path, "error", err)
			}
		}
	}

	l.state = listerReporting
	for _, e := range list.Entries() {
		if err := l.bus.Send(ctx, bus.Orchestrator, bus.Message{Kind: l.role.foundKind(), Entry: e, Worker: l.id}); err != nil {
			return err
		}
	}
	l.logger.Debug("listing complete", "path", root, "entries", list.Len())
	return l.bus.Send(ctx, bus.Orchestrator, bus.Message{Kind: l.role.completeKind(), Path: root, Worker: l.id})
}

// analyze dispatches one AnalyzeFile per path and drains exactly as many
// FileAnalyzed replies. Results are indexed by Seq; failed probes leave nil.
func (l *lister) analyze(ctx context.Context, batch []string) ([]*entry.Entry, error) {
	l.state = listerDispatching
	for seq, path := range batch {
		msg := bus.Message{Kind: bus.AnalyzeFile, Path: path, Seq: seq, Worker: l.id}
		if err := l.bus.Send(ctx, l.role.Analyzers(), msg); err != nil {
			return nil, err
		}
	}

	l.state = listerDraining
	results := make([]*entry.Entry, len(batch))
	answered := make([]bool, len(batch))
	for remaining := len(batch); remaining > 0; {
		msg, err := l.bus.Receive(ctx, l.role.Inbox())
		if err != nil {
			return nil, err
		}
		if msg.Kind != bus.FileAnalyzed {
			l.logger.Warn("deferring message while busy", "kind", msg.Kind, "state", l.state,
				"error", ErrProtocolViolation)
			l.deferred = append(l.deferred, msg)
			continue
		}
		if msg.Seq < 0 || msg.Seq >= len(batch) || answered[msg.Seq] {
			l.logger.Warn("stray analysis reply", "seq", msg.Seq, "path", msg.Path,
				"error", ErrProtocolViolation)
			continue
		}
		answered[msg.Seq] = true
		remaining--

		if msg.Err != nil {
			l.failed("cannot analyze entry", msg.Path, msg.Err)
			continue
		}
		e := msg.Entry
		results[msg.Seq] = &e
	}
	return results, nil
}

func (l *lister) subtreeFailed(err error) {
	recordFailure(l.logger, l.stats, l.events, l.role.Side(), "skipping unreadable subtree", walkErrPath(err), err)
}

func (l *lister) failed(msg, path string, err error) {
	recordFailure(l.logger, l.stats, l.events, l.role.Side(), msg, path, err)
}
