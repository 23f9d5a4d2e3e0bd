package ui

import (
	"io"
	"time"

	"github.com/bamsammich/dirsync/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      *stats.Collector
	SrcRoot    string
	DstRoot    string
	Interval   time.Duration // progress period, 0 = 5s
	Width      int           // terminal columns for the in-place progress line
	IsTTY      bool
	Quiet      bool
	Verbose    bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory returns one of several presenters
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{stats: cfg.Stats}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &plainPresenter{
		w:        cfg.Writer,
		errW:     cfg.ErrWriter,
		stats:    cfg.Stats,
		srcRoot:  cfg.SrcRoot,
		dstRoot:  cfg.DstRoot,
		interval: interval,
		progress: !cfg.NoProgress,
		inPlace:  cfg.IsTTY,
		width:    cfg.Width,
		verbose:  cfg.Verbose,
		styled:   cfg.IsTTY,
	}
}
