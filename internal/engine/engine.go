package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/dirsync/internal/bus"
	"github.com/bamsammich/dirsync/internal/entry"
	"github.com/bamsammich/dirsync/internal/event"
	"github.com/bamsammich/dirsync/internal/filter"
	"github.com/bamsammich/dirsync/internal/stats"
	"github.com/bamsammich/dirsync/internal/walker"
)

// ErrNestedRoots is returned when the destination lies inside the source.
var ErrNestedRoots = errors.New("destination is inside source")

// Config describes a sync run.
type Config struct {
	Filter      *filter.Chain
	Events      chan<- event.Event
	Stats       *stats.Collector
	Logger      *slog.Logger
	Src         string
	Dst         string
	Workers     int   // total, listers included
	BusCapacity int   // per-tag buffer, 0 = bus.DefaultCapacity
	BWLimit     int64 // bytes/sec, 0 = unlimited
	Parallel    bool
	Hash        bool
	DryRun      bool
	Verify      bool
}

// Result is the outcome of a sync run. Err is set only for fatal errors;
// per-entry failures are counted in Failures.
type Result struct {
	Err      error
	Diff     DiffSet
	Stats    stats.Snapshot
	Failures int64
}

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int {
	return min(runtime.NumCPU()*2, 32)
}

func (cfg Config) normalize() Config {
	for _, p := range []*string{&cfg.Src, &cfg.Dst} {
		if abs, err := filepath.Abs(*p); err == nil {
			*p = abs
		} else {
			*p = filepath.Clean(*p)
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.BusCapacity <= 0 {
		cfg.BusCapacity = bus.DefaultCapacity
	}
	// A lister's whole batch must fit in its analyzers' queue.
	cfg.BusCapacity = max(cfg.BusCapacity, AnalyzersPerSide(cfg.Workers)+1)
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// Run discovers both trees, diffs them and copies what the destination
// lacks, blocking until complete.
func Run(ctx context.Context, cfg Config) Result {
	cfg = cfg.normalize()
	logger := cfg.Logger

	dstExists, err := preflight(cfg)
	if err != nil {
		return Result{Stats: cfg.Stats.Snapshot(), Err: err}
	}

	var src, dst *entry.List
	if cfg.Parallel {
		src, dst, err = listParallel(ctx, cfg, dstExists)
	} else {
		src, dst, err = listSequential(ctx, cfg, dstExists)
	}
	if err != nil {
		return Result{Stats: cfg.Stats.Snapshot(), Err: err}
	}

	diff := Diff(src, dst, cfg.Hash)
	cfg.Stats.SetDiff(int64(len(diff)), diff.Bytes())
	event.Emit(cfg.Events, event.Event{Type: event.DiffFound, Total: int64(len(diff)), TotalSize: diff.Bytes()})
	logger.Info("diff computed",
		"source_entries", src.Len(), "destination_entries", dst.Len(),
		"entries", len(diff), "bytes", diff.Bytes())

	if cfg.DryRun {
		for _, e := range diff {
			rel, _ := entry.RelPath(cfg.Src, e.Path)
			event.Emit(cfg.Events, event.Event{Type: event.WouldCopy, Path: rel, Size: e.Size})
			logger.Info("would copy", "path", rel, "kind", e.Kind.String())
		}
		return result(cfg, diff, nil)
	}

	exec := NewExecutor(ExecutorConfig{
		BWLimit: cfg.BWLimit,
		Stats:   cfg.Stats,
		Events:  cfg.Events,
		Logger:  logger,
	})
	copied, err := exec.ApplyAll(ctx, diff, cfg.Src, cfg.Dst)
	if err != nil {
		return result(cfg, diff, fmt.Errorf("apply: %w", err))
	}

	if cfg.Verify && len(copied) > 0 {
		vr := Verify(ctx, VerifyConfig{
			SrcRoot: cfg.Src,
			DstRoot: cfg.Dst,
			Workers: cfg.Workers,
			Events:  cfg.Events,
			Stats:   cfg.Stats,
			Logger:  logger,
		}, copied)
		logger.Info("verification complete", "verified", vr.Verified, "failed", vr.Failed)
	}

	return result(cfg, diff, nil)
}

func result(cfg Config, diff DiffSet, err error) Result {
	snap := cfg.Stats.Snapshot()
	return Result{Stats: snap, Diff: diff, Failures: snap.Failures(), Err: err}
}

// preflight validates both roots. It reports whether the destination exists
// (it is created here unless this is a dry run).
func preflight(cfg Config) (bool, error) {
	info, err := os.Stat(cfg.Src)
	if err != nil {
		return false, fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("source %s: %w", cfg.Src, ErrNotDirectory)
	}
	if rel, err := entry.RelPath(cfg.Src, cfg.Dst); err == nil && rel != "." {
		return false, fmt.Errorf("%s: %w", cfg.Dst, ErrNestedRoots)
	}

	info, err = os.Stat(cfg.Dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if cfg.DryRun {
			return false, nil
		}
		if err := os.MkdirAll(cfg.Dst, 0o755); err != nil {
			return false, fmt.Errorf("create destination: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("destination: %w", err)
	case !info.IsDir():
		return false, fmt.Errorf("destination %s: %w", cfg.Dst, ErrNotDirectory)
	}

	if !cfg.DryRun {
		if err := unix.Access(cfg.Dst, unix.W_OK|unix.X_OK); err != nil {
			return false, fmt.Errorf("destination %s: %w: %w", cfg.Dst, ErrNotWritable, err)
		}
	}
	return true, nil
}

// listSequential discovers both trees inline, walking and probing on the
// calling goroutine. It stops between entries once ctx ends.
func listSequential(ctx context.Context, cfg Config, dstExists bool) (*entry.List, *entry.List, error) {
	src, err := listInline(ctx, cfg, cfg.Src, event.Source)
	if err != nil {
		return nil, nil, err
	}
	if !dstExists {
		return src, entry.NewList(cfg.Dst), nil
	}
	dst, err := listInline(ctx, cfg, cfg.Dst, event.Destination)
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

func listInline(ctx context.Context, cfg Config, root string, side event.Side) (*entry.List, error) {
	event.Emit(cfg.Events, event.Event{Type: event.ListStarted, Side: side, Path: root})

	seq, err := walker.Walk(root, walker.WithFilter(cfg.Filter))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", side, err)
	}

	prober := entry.Prober{Hash: cfg.Hash}
	list := entry.NewList(root)
	for path, err := range seq {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("list %s: %w", side, cerr)
		}
		if err != nil {
			recordFailure(cfg.Logger, cfg.Stats, cfg.Events, side, "skipping unreadable subtree", walkErrPath(err), err)
			continue
		}
		e, err := prober.Probe(path)
		if err != nil {
			recordFailure(cfg.Logger, cfg.Stats, cfg.Events, side, "cannot analyze entry", path, err)
			continue
		}
		if err := list.Append(e); err != nil {
			cfg.Logger.Warn("dropping entry", "path", path, "error", err)
		}
	}

	listed(cfg, side, list)
	return list, nil
}

// listParallel runs both listings over the bus. The pool is always shut
// down before it returns.
func listParallel(ctx context.Context, cfg Config, dstExists bool) (src, dst *entry.List, err error) {
	b := bus.New(cfg.BusCapacity)
	p := startPool(ctx, poolConfig{
		Bus:       b,
		Filter:    cfg.Filter,
		Stats:     cfg.Stats,
		Events:    cfg.Events,
		Logger:    cfg.Logger,
		Prober:    entry.Prober{Hash: cfg.Hash},
		Analyzers: AnalyzersPerSide(cfg.Workers),
	})

	src, dst, err = collectLists(p.ctx, cfg, b, dstExists)
	if serr := p.shutdown(); serr != nil {
		err = errors.Join(err, fmt.Errorf("shutdown: %w", serr))
	}
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// collectLists starts each lister and gathers entries until every started
// side has reported completion.
func collectLists(ctx context.Context, cfg Config, b *bus.Bus, dstExists bool) (*entry.List, *entry.List, error) {
	src := entry.NewList(cfg.Src)
	dst := entry.NewList(cfg.Dst)

	start := func(tag bus.Tag, side event.Side, root string) error {
		event.Emit(cfg.Events, event.Event{Type: event.ListStarted, Side: side, Path: root})
		if err := b.Send(ctx, tag, bus.Message{Kind: bus.AnalyzeDirectory, Path: root}); err != nil {
			return fmt.Errorf("start %s listing: %w", side, err)
		}
		return nil
	}

	if err := start(bus.SourceLister, event.Source, cfg.Src); err != nil {
		return nil, nil, err
	}
	pending := 1
	if dstExists {
		if err := start(bus.DestinationLister, event.Destination, cfg.Dst); err != nil {
			return nil, nil, err
		}
		pending++
	}

	var errs []error
	for pending > 0 {
		msg, err := b.Receive(ctx, bus.Orchestrator)
		if err != nil {
			return nil, nil, fmt.Errorf("collect listings: %w", err)
		}

		switch msg.Kind {
		case bus.SourceEntryFound, bus.DestinationEntryFound:
			list := src
			if msg.Kind == bus.DestinationEntryFound {
				list = dst
			}
			if err := list.Append(msg.Entry); err != nil {
				cfg.Logger.Warn("dropping entry", "path", msg.Entry.Path, "error", err)
			}
		case bus.SourceListComplete, bus.DestinationListComplete:
			pending--
			side, list := event.Source, src
			if msg.Kind == bus.DestinationListComplete {
				side, list = event.Destination, dst
			}
			if msg.Err != nil {
				errs = append(errs, fmt.Errorf("list %s: %w", side, msg.Err))
				continue
			}
			listed(cfg, side, list)
		default:
			cfg.Logger.Warn("unexpected message", "kind", msg.Kind, "error", ErrProtocolViolation)
		}
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return src, dst, nil
}

func listed(cfg Config, side event.Side, list *entry.List) {
	n := int64(list.Len())
	if side == event.Source {
		cfg.Stats.AddSourceEntries(n)
	} else {
		cfg.Stats.AddDestEntries(n)
	}
	event.Emit(cfg.Events, event.Event{Type: event.ListComplete, Side: side, Path: list.Root, Total: n})
	cfg.Logger.Debug("listed", "side", side.String(), "root", list.Root, "entries", n)
}

func recordFailure(
	logger *slog.Logger,
	collector *stats.Collector,
	events chan<- event.Event,
	side event.Side,
	msg, path string,
	err error,
) {
	logger.Warn(msg, "side", side.String(), "path", path, "error", err)
	collector.AddEntriesFailed(1)
	event.Emit(events, event.Event{Type: event.EntryFailed, Side: side, Path: path, Error: err})
}

func walkErrPath(err error) string {
	var werr *walker.Error
	if errors.As(err, &werr) {
		return werr.Path
	}
	return ""
}
