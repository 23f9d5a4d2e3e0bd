package engine

import (
	"context"
	"log/slog"

	"github.com/bamsammich/dirsync/internal/bus"
	"github.com/bamsammich/dirsync/internal/entry"
)

// analyzer probes one path per AnalyzeFile and answers its side's lister.
// It is Idle between requests and Processing while probing.
type analyzer struct {
	bus    *bus.Bus
	logger *slog.Logger
	prober entry.Prober
	id     int
	role   Role
}

func (a *analyzer) run(ctx context.Context) error {
	for {
		msg, err := a.bus.Receive(ctx, a.role.Inbox())
		if err != nil {
			return err
		}

		switch msg.Kind {
		case bus.AnalyzeFile:
			// Every request gets a reply, carrying the error on failure.
			e, err := a.prober.Probe(msg.Path)
			reply := bus.Message{
				Kind:   bus.FileAnalyzed,
				Path:   msg.Path,
				Seq:    msg.Seq,
				Entry:  e,
				Err:    err,
				Worker: a.id,
			}
			if err := a.bus.Send(ctx, a.role.ReplyTo(), reply); err != nil {
				return err
			}
		case bus.Terminate:
			return a.bus.Send(ctx, bus.Orchestrator, bus.Message{Kind: bus.TerminateAck, Worker: a.id})
		default:
			a.logger.Warn("unexpected message", "kind", msg.Kind, "error", ErrProtocolViolation)
		}
	}
}
