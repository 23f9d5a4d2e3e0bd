package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/bamsammich/dirsync/internal/entry"
	"github.com/bamsammich/dirsync/internal/event"
	"github.com/bamsammich/dirsync/internal/platform"
	"github.com/bamsammich/dirsync/internal/stats"
)

const limitedBufSize = 256 << 10

var limitedBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, limitedBufSize)
		return &b
	},
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Stats   *stats.Collector
	Events  chan<- event.Event
	Logger  *slog.Logger
	BWLimit int64 // bytes/sec, 0 = unlimited
}

// Executor applies diff entries to the destination tree. It is not safe for
// concurrent use.
type Executor struct {
	stats   *stats.Collector
	events  chan<- event.Event
	logger  *slog.Logger
	limiter *rate.Limiter
	pending []dirMode
	held    map[string]bool
}

// dirMode is a directory mode withheld until Finish so the owner can still
// write children. Entry is zero for a parent this run had to unlock.
type dirMode struct {
	entry entry.Entry
	path  string
	mode  uint32
}

// NewExecutor creates an Executor. A nil Stats or Logger is replaced with a
// private collector or a discarding logger.
func NewExecutor(cfg ExecutorConfig) *Executor {
	x := &Executor{
		stats:  cfg.Stats,
		events: cfg.Events,
		logger: cfg.Logger,
		held:   make(map[string]bool),
	}
	if x.stats == nil {
		x.stats = stats.NewCollector()
	}
	if x.logger == nil {
		x.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.BWLimit > 0 {
		x.limiter = NewBWLimiter(cfg.BWLimit)
	}
	return x
}

// ApplyAll applies every entry in order, then calls Finish. A failed entry is
// logged, counted and skipped. It returns the regular files that were
// copied, stopping early only when ctx ends.
func (x *Executor) ApplyAll(ctx context.Context, diff DiffSet, srcRoot, dstRoot string) ([]entry.Entry, error) {
	defer x.Finish()

	var copied []entry.Entry
	for _, e := range diff {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		if err := x.Apply(ctx, e, srcRoot, dstRoot); err != nil {
			x.logger.Error("apply failed", "path", e.Path, "kind", e.Kind.String(), "error", err)
			continue
		}
		if !e.IsDir() {
			copied = append(copied, e)
		}
	}
	return copied, nil
}

// Apply makes the destination counterpart of e match it: a directory is
// created with e's mode, a file gets e's content, then its mtime, then its
// mode. A directory mode without owner write and search is held back until
// Finish. Any failure is a *CopyError.
func (x *Executor) Apply(ctx context.Context, e entry.Entry, srcRoot, dstRoot string) error {
	rel, err := entry.RelPath(srcRoot, e.Path)
	if err != nil {
		return x.fail(e, "", err)
	}
	dst, err := entry.JoinPath(dstRoot, rel)
	if err != nil {
		return x.fail(e, "", err)
	}

	if e.IsDir() {
		if err := x.applyDir(e, dst); err != nil {
			return x.fail(e, dst, err)
		}
		x.stats.AddDirsCreated(1)
		event.Emit(x.events, event.Event{Type: event.DirCreated, Path: rel})
		return nil
	}

	n, err := x.copyFile(ctx, e, dst)
	if err != nil {
		return x.fail(e, dst, err)
	}
	x.stats.AddFilesCopied(1)
	x.stats.AddBytesCopied(n)
	event.Emit(x.events, event.Event{Type: event.FileCopied, Path: rel, Size: n})
	return nil
}

func (x *Executor) fail(e entry.Entry, dst string, err error) error {
	if !e.IsDir() {
		x.stats.AddFilesFailed(1)
	} else {
		x.stats.AddEntriesFailed(1)
	}
	cerr := &CopyError{Kind: CopyFailed, Src: e.Path, Dst: dst, Err: err}
	event.Emit(x.events, event.Event{Type: event.FileFailed, Path: e.Path, Error: cerr})
	return cerr
}

func (x *Executor) applyDir(e entry.Entry, dst string) error {
	if err := os.MkdirAll(dst, os.FileMode(e.Mode).Perm()|0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dst, err)
	}
	mode := e.Mode
	if mode&0o300 != 0o300 {
		mode |= 0o700
		x.hold(dirMode{entry: e, path: dst, mode: e.Mode})
	}
	if err := unix.Chmod(dst, mode); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrAttrs, dst, err)
	}
	return nil
}

func (x *Executor) hold(d dirMode) {
	x.held[d.path] = true
	x.pending = append(x.pending, d)
}

// unlockParent makes an existing destination directory the owner cannot
// write into writable, and holds its old mode for Finish.
func (x *Executor) unlockParent(dir string) error {
	if x.held[dir] {
		return nil
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); !errors.Is(err, unix.EACCES) {
		return nil
	}
	var st unix.Stat_t
	if err := unix.Stat(dir, &st); err != nil {
		return fmt.Errorf("stat parent %s: %w", dir, err)
	}
	mode := uint32(st.Mode) & 0o7777
	if err := unix.Chmod(dir, mode|0o700); err != nil {
		return fmt.Errorf("unlock parent %s: %w", dir, err)
	}
	x.hold(dirMode{path: dir, mode: mode})
	return nil
}

// Finish applies the held directory modes, deepest first. Failures are
// logged and counted per directory.
func (x *Executor) Finish() {
	for i := len(x.pending) - 1; i >= 0; i-- {
		d := x.pending[i]
		err := unix.Chmod(d.path, d.mode)
		switch {
		case err == nil:
		case d.entry.Path != "":
			err = x.fail(d.entry, d.path, fmt.Errorf("%w: chmod %s: %w", ErrAttrs, d.path, err))
			x.logger.Error("apply failed", "path", d.entry.Path, "kind", d.entry.Kind.String(), "error", err)
		default:
			x.stats.AddEntriesFailed(1)
			x.logger.Error("cannot restore directory mode", "path", d.path, "error", err)
		}
	}
	x.pending = nil
	clear(x.held)
}

func (x *Executor) copyFile(ctx context.Context, e entry.Entry, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create parent dir: %w", err)
	}

	src, err := os.Open(e.Path)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	if err := x.unlockParent(filepath.Dir(dst)); err != nil {
		return 0, err
	}
	out, err := openDestination(dst, os.FileMode(e.Mode).Perm())
	if err != nil {
		return 0, fmt.Errorf("open destination: %w", err)
	}

	n, err := x.transfer(ctx, src, out, info.Size())
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("copy data: %w", err)
	}

	// mtime first, then mode. The data stays in place if either fails.
	var attrErr error
	if err := setModTime(out, e.ModTime); err != nil {
		attrErr = fmt.Errorf("%w: %w", ErrAttrs, err)
	} else if err := unix.Fchmod(int(out.Fd()), e.Mode); err != nil { //nolint:gosec // G115
		attrErr = fmt.Errorf("%w: fchmod: %w", ErrAttrs, err)
	}

	if err := out.Close(); err != nil {
		return n, errors.Join(fmt.Errorf("close destination: %w", err), attrErr)
	}
	return n, attrErr
}

// openDestination truncates dst for writing. A read-only file left by an
// earlier run is made writable first; fchmod sets the final mode after the
// copy.
func openDestination(dst string, perm os.FileMode) (*os.File, error) {
	const flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	out, err := os.OpenFile(dst, flags, perm)
	if !errors.Is(err, os.ErrPermission) {
		return out, err
	}
	if cerr := os.Chmod(dst, perm|0o600); cerr != nil {
		return nil, err
	}
	return os.OpenFile(dst, flags, perm)
}

func (x *Executor) transfer(ctx context.Context, src, dst *os.File, size int64) (int64, error) {
	if size == 0 {
		return 0, nil
	}
	if x.limiter == nil {
		res, err := platform.CopyFile(platform.CopyFileParams{Src: src, Dst: dst, Size: size})
		if err == nil {
			x.logger.Debug("copied", "path", src.Name(), "bytes", res.BytesWritten, "method", res.Method.String())
		}
		return res.BytesWritten, err
	}

	bufp := limitedBufPool.Get().(*[]byte)
	defer limitedBufPool.Put(bufp)
	return io.CopyBuffer(onlyWriter{dst}, newRateLimitedReader(ctx, src, x.limiter), *bufp)
}

// onlyWriter hides ReaderFrom so io.CopyBuffer goes through the limiter.
type onlyWriter struct{ w io.Writer }

func (o onlyWriter) Write(p []byte) (int, error) { return o.w.Write(p) }
