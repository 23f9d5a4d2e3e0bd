package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bamsammich/dirsync/internal/entry"
	"github.com/bamsammich/dirsync/internal/event"
	"github.com/bamsammich/dirsync/internal/stats"
)

// VerifyConfig controls the post-copy verification pass.
type VerifyConfig struct {
	Events  chan<- event.Event
	Stats   *stats.Collector
	Logger  *slog.Logger
	SrcRoot string
	DstRoot string
	Workers int
}

// VerifyResult holds the outcome of a verification pass.
type VerifyResult struct {
	Errors   []VerifyError
	Verified int64
	Failed   int64
}

// VerifyError records a single checksum mismatch or unreadable file.
type VerifyError struct {
	Err     error
	Path    string
	SrcHash string
	DstHash string
}

// Verify re-hashes each copied file on both sides with BLAKE3 and compares
// the digests. It fans out to cfg.Workers goroutines.
func Verify(ctx context.Context, cfg VerifyConfig, files []entry.Entry) VerifyResult {
	event.Emit(cfg.Events, event.Event{Type: event.VerifyStarted, Total: int64(len(files))})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}

	var mu sync.Mutex
	var result VerifyResult
	record := func(ve *VerifyError, rel string) {
		mu.Lock()
		defer mu.Unlock()
		if ve == nil {
			result.Verified++
			collector.AddFilesVerified(1)
			event.Emit(cfg.Events, event.Event{Type: event.VerifyOK, Path: rel})
			return
		}
		result.Failed++
		result.Errors = append(result.Errors, *ve)
		collector.AddFilesVerifyFailed(1)
		logger.Warn("verification failed", "path", rel, "src", ve.SrcHash, "dst", ve.DstHash, "error", ve.Err)
		event.Emit(cfg.Events, event.Event{Type: event.VerifyFailed, Path: rel, Error: ve.Err})
	}

	var g errgroup.Group
	g.SetLimit(max(1, cfg.Workers))
	for _, e := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rel, ve := verifyOne(cfg.SrcRoot, cfg.DstRoot, e)
			record(ve, rel)
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func verifyOne(srcRoot, dstRoot string, e entry.Entry) (string, *VerifyError) {
	rel, err := entry.RelPath(srcRoot, e.Path)
	if err != nil {
		return e.Path, &VerifyError{Path: e.Path, SrcHash: "n/a", DstHash: "n/a", Err: err}
	}
	dstPath, err := entry.JoinPath(dstRoot, rel)
	if err != nil {
		return rel, &VerifyError{Path: rel, SrcHash: "n/a", DstHash: "n/a", Err: err}
	}

	srcHash, err := entry.HashFile(e.Path)
	if err != nil {
		// Source missing or unreadable: treat as mismatch.
		return rel, &VerifyError{Path: rel, SrcHash: "error", DstHash: "n/a", Err: err}
	}
	dstHash, err := entry.HashFile(dstPath)
	if err != nil {
		return rel, &VerifyError{Path: rel, SrcHash: srcHash.String(), DstHash: "error", Err: err}
	}
	if srcHash != dstHash {
		return rel, &VerifyError{Path: rel, SrcHash: srcHash.String(), DstHash: dstHash.String()}
	}
	return rel, nil
}
