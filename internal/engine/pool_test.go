package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/dirsync/internal/bus"
	"github.com/bamsammich/dirsync/internal/entry"
	"github.com/bamsammich/dirsync/internal/stats"
	"github.com/bamsammich/dirsync/internal/walker"
)

var discard = slog.New(slog.DiscardHandler)

func receive(t *testing.T, b *bus.Bus, tag bus.Tag) bus.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := b.Receive(ctx, tag)
	require.NoError(t, err)
	return msg
}

func TestPoolShutdownAcksEveryWorker(t *testing.T) {
	for _, workers := range []int{1, 2, 4, 7, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			b := bus.New(0)
			k := AnalyzersPerSide(workers)
			p := startPool(context.Background(), poolConfig{
				Bus:       b,
				Stats:     stats.NewCollector(),
				Logger:    discard,
				Analyzers: k,
			})

			require.Len(t, p.workers, 2+2*k)
			assert.Equal(t, 1, p.workers.count(SourceLister))
			assert.Equal(t, 1, p.workers.count(DestinationLister))
			assert.Equal(t, k, p.workers.count(SourceAnalyzer))
			assert.Equal(t, k, p.workers.count(DestinationAnalyzer))

			require.NoError(t, p.shutdown())

			st := b.Stats()
			assert.Equal(t, int64(2+2*k), st[bus.Orchestrator].Sent, "one ack per worker")
			assert.Equal(t, int64(k), st[bus.SourceAnalyzers].Sent)
			assert.Equal(t, int64(k), st[bus.DestinationAnalyzers].Sent)
			assert.Equal(t, int64(1), st[bus.SourceLister].Sent)
			for _, tag := range bus.Tags() {
				assert.Equal(t, st[tag].Sent, st[tag].Received, "leaked messages on %s", tag)
			}

			// The bus is closed only after the handshake.
			err := b.Send(context.Background(), bus.Orchestrator, bus.Message{})
			assert.True(t, errors.Is(err, bus.ErrClosed))
		})
	}
}

func TestPoolShutdownOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := bus.New(0)
	p := startPool(ctx, poolConfig{Bus: b, Stats: stats.NewCollector(), Logger: discard, Analyzers: 2})

	cancel()
	done := make(chan error, 1)
	go func() { done <- p.shutdown() }()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown hung on cancelled context")
	}
}

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(n), 0o644))
	}
}

func newLister(b *bus.Bus, analyzers int) *lister {
	return &lister{
		id:        0,
		role:      SourceLister,
		bus:       b,
		analyzers: analyzers,
		stats:     stats.NewCollector(),
		logger:    discard,
	}
}

func TestListerDefersTerminateWhileDraining(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a", "b")

	b := bus.New(8)
	defer b.Close()
	ctx := context.Background()

	l := newLister(b, 1)
	runErr := make(chan error, 1)
	go func() { runErr <- l.run(ctx) }()

	require.NoError(t, b.Send(ctx, bus.SourceLister, bus.Message{Kind: bus.AnalyzeDirectory, Path: root}))

	// Act as the only analyzer. Terminate arrives mid-batch and must wait.
	prober := entry.Prober{}
	for i := range 2 {
		req := receive(t, b, bus.SourceAnalyzers)
		require.Equal(t, bus.AnalyzeFile, req.Kind)
		assert.Equal(t, 0, req.Seq)
		if i == 0 {
			require.NoError(t, b.Send(ctx, bus.SourceLister, bus.Message{Kind: bus.Terminate}))
		}
		e, err := prober.Probe(req.Path)
		require.NoError(t, err)
		require.NoError(t, b.Send(ctx, bus.SourceLister, bus.Message{Kind: bus.FileAnalyzed, Seq: req.Seq, Entry: e}))
	}

	var found []string
	for {
		msg := receive(t, b, bus.Orchestrator)
		if msg.Kind == bus.SourceListComplete {
			require.NoError(t, msg.Err)
			break
		}
		require.Equal(t, bus.SourceEntryFound, msg.Kind)
		found = append(found, filepath.Base(msg.Entry.Path))
	}
	assert.Equal(t, []string{"a", "b"}, found)

	ack := receive(t, b, bus.Orchestrator)
	assert.Equal(t, bus.TerminateAck, ack.Kind)
	assert.Equal(t, 0, ack.Worker)
	require.NoError(t, <-runErr)
}

func TestListerKeepsTraversalOrderAcrossReplies(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a", "b", "c")

	b := bus.New(8)
	defer b.Close()
	ctx := context.Background()

	l := newLister(b, 3)
	go func() { _ = l.run(ctx) }()
	require.NoError(t, b.Send(ctx, bus.SourceLister, bus.Message{Kind: bus.AnalyzeDirectory, Path: root}))

	reqs := make([]bus.Message, 0, 3)
	for range 3 {
		reqs = append(reqs, receive(t, b, bus.SourceAnalyzers))
	}
	// Answer in reverse; one probe fails.
	for i := len(reqs) - 1; i >= 0; i-- {
		reply := bus.Message{Kind: bus.FileAnalyzed, Seq: reqs[i].Seq, Path: reqs[i].Path}
		if filepath.Base(reqs[i].Path) == "b" {
			reply.Err = &entry.ProbeError{Kind: entry.ReadFailed, Path: reqs[i].Path, Err: os.ErrPermission}
		} else {
			reply.Entry = entry.Entry{Path: reqs[i].Path, Kind: entry.File}
		}
		require.NoError(t, b.Send(ctx, bus.SourceLister, reply))
	}

	var found []string
	for {
		msg := receive(t, b, bus.Orchestrator)
		if msg.Kind == bus.SourceListComplete {
			break
		}
		found = append(found, filepath.Base(msg.Entry.Path))
	}
	assert.Equal(t, []string{"a", "c"}, found)
	assert.Equal(t, int64(1), l.stats.Snapshot().EntriesFailed)
}

func TestListerRootUnreadable(t *testing.T) {
	b := bus.New(4)
	defer b.Close()
	ctx := context.Background()

	l := newLister(b, 1)
	go func() { _ = l.run(ctx) }()

	missing := filepath.Join(t.TempDir(), "missing")
	require.NoError(t, b.Send(ctx, bus.SourceLister, bus.Message{Kind: bus.AnalyzeDirectory, Path: missing}))

	msg := receive(t, b, bus.Orchestrator)
	assert.Equal(t, bus.SourceListComplete, msg.Kind)
	var werr *walker.Error
	require.True(t, errors.As(msg.Err, &werr))
	assert.Equal(t, walker.DirectoryUnreadable, werr.Kind)
}

func TestAnalyzerRepliesAndIgnoresStrays(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "f")

	b := bus.New(4)
	defer b.Close()
	ctx := context.Background()

	a := &analyzer{id: 7, role: DestinationAnalyzer, bus: b, prober: entry.Prober{Hash: true}, logger: discard}
	runErr := make(chan error, 1)
	go func() { runErr <- a.run(ctx) }()

	require.NoError(t, b.Send(ctx, bus.DestinationAnalyzers, bus.Message{Kind: bus.SourceEntryFound}))
	require.NoError(t, b.Send(ctx, bus.DestinationAnalyzers,
		bus.Message{Kind: bus.AnalyzeFile, Path: filepath.Join(dir, "f"), Seq: 3}))
	require.NoError(t, b.Send(ctx, bus.DestinationAnalyzers,
		bus.Message{Kind: bus.AnalyzeFile, Path: filepath.Join(dir, "gone"), Seq: 4}))
	require.NoError(t, b.Send(ctx, bus.DestinationAnalyzers, bus.Message{Kind: bus.Terminate}))

	ok := receive(t, b, bus.DestinationLister)
	assert.Equal(t, bus.FileAnalyzed, ok.Kind)
	assert.Equal(t, 3, ok.Seq)
	require.NoError(t, ok.Err)
	assert.True(t, ok.Entry.HasHash)
	assert.Equal(t, int64(1), ok.Entry.Size)

	failed := receive(t, b, bus.DestinationLister)
	assert.Equal(t, 4, failed.Seq)
	var perr *entry.ProbeError
	require.True(t, errors.As(failed.Err, &perr))
	assert.Equal(t, entry.StatFailed, perr.Kind)

	ack := receive(t, b, bus.Orchestrator)
	assert.Equal(t, bus.TerminateAck, ack.Kind)
	assert.Equal(t, 7, ack.Worker)
	require.NoError(t, <-runErr)
}
