package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bamsammich/dirsync/internal/bus"
	"github.com/bamsammich/dirsync/internal/entry"
	"github.com/bamsammich/dirsync/internal/event"
	"github.com/bamsammich/dirsync/internal/filter"
	"github.com/bamsammich/dirsync/internal/stats"
)

// workerSet records every spawned worker by id. Termination is complete
// when each of them has acknowledged exactly once.
type workerSet map[int]Role

func (s workerSet) count(r Role) int {
	var n int
	for _, role := range s {
		if role == r {
			n++
		}
	}
	return n
}

type poolConfig struct {
	Bus       *bus.Bus
	Filter    *filter.Chain
	Stats     *stats.Collector
	Events    chan<- event.Event
	Logger    *slog.Logger
	Prober    entry.Prober
	Analyzers int // per side
}

// pool owns the listers and analyzers of one parallel run.
type pool struct {
	ctx     context.Context //nolint:containedctx // group context shared by all workers
	bus     *bus.Bus
	group   *errgroup.Group
	workers workerSet
	logger  *slog.Logger
}

// startPool spawns one lister per side and cfg.Analyzers analyzers per side.
// Every worker runs until it receives Terminate or the context ends.
func startPool(ctx context.Context, cfg poolConfig) *pool {
	g, gctx := errgroup.WithContext(ctx)
	p := &pool{
		ctx:     gctx,
		bus:     cfg.Bus,
		group:   g,
		workers: make(workerSet),
		logger:  cfg.Logger,
	}

	analyzers := max(1, cfg.Analyzers)
	var id int
	for _, role := range []Role{SourceLister, DestinationLister} {
		l := &lister{
			id:        id,
			role:      role,
			bus:       cfg.Bus,
			analyzers: analyzers,
			filter:    cfg.Filter,
			stats:     cfg.Stats,
			events:    cfg.Events,
			logger:    cfg.Logger.With("worker", id, "role", role.String()),
		}
		p.spawn(id, role, l.run)
		id++
	}
	for _, role := range []Role{SourceAnalyzer, DestinationAnalyzer} {
		for range analyzers {
			a := &analyzer{
				id:     id,
				role:   role,
				bus:    cfg.Bus,
				prober: cfg.Prober,
				logger: cfg.Logger.With("worker", id, "role", role.String()),
			}
			p.spawn(id, role, a.run)
			id++
		}
	}

	p.logger.Debug("worker pool started", "workers", len(p.workers), "analyzers_per_side", analyzers)
	return p
}

func (p *pool) spawn(id int, role Role, run func(context.Context) error) {
	p.workers[id] = role
	p.group.Go(func() error {
		if err := run(p.ctx); err != nil {
			return fmt.Errorf("%s %d: %w", role, id, err)
		}
		return nil
	})
}

// shutdown sends one Terminate per spawned worker, blocks until every one of
// them has acknowledged, waits for the goroutines and finally closes the bus.
// It always closes the bus, even when the handshake fails.
func (p *pool) shutdown() error {
	var errs []error

	sent := 0
	for id, role := range p.workers {
		if err := p.bus.Send(p.ctx, role.Inbox(), bus.Message{Kind: bus.Terminate}); err != nil {
			errs = append(errs, fmt.Errorf("terminate %s %d: %w", role, id, err))
			break
		}
		sent++
	}
	if sent == len(p.workers) {
		if err := p.awaitAcks(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := p.group.Wait(); err != nil {
		errs = append(errs, err)
	}
	p.bus.Close()
	return errors.Join(errs...)
}

func (p *pool) awaitAcks() error {
	acked := make(map[int]bool, len(p.workers))
	for len(acked) < len(p.workers) {
		msg, err := p.bus.Receive(p.ctx, bus.Orchestrator)
		if err != nil {
			return fmt.Errorf("await termination (%d/%d acked): %w", len(acked), len(p.workers), err)
		}
		if msg.Kind != bus.TerminateAck {
			p.logger.Debug("discarding message during shutdown", "kind", msg.Kind)
			continue
		}

		role, known := p.workers[msg.Worker]
		switch {
		case !known:
			p.logger.Warn("termination ack from unknown worker", "worker", msg.Worker,
				"error", ErrProtocolViolation)
			continue
		case acked[msg.Worker]:
			p.logger.Warn("duplicate termination ack", "worker", msg.Worker,
				"error", ErrProtocolViolation)
			continue
		}
		acked[msg.Worker] = true
		p.logger.Debug("worker terminated", "worker", msg.Worker, "role", role.String())
	}
	return nil
}
