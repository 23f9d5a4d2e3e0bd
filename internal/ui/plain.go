package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/dirsync/internal/stats"
)

const progressBarWidth = 20

// plainPresenter outputs one line per copied file to stdout, and periodic
// progress to stderr. On a TTY the progress line is redrawn in place.
type plainPresenter struct {
	w        io.Writer
	errW     io.Writer
	stats    *stats.Collector
	srcRoot  string
	dstRoot  string
	interval time.Duration
	width    int
	progress bool
	inPlace  bool
	verbose  bool
	styled   bool
	drawn    bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	var tick <-chan time.Time
	if p.progress {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearProgress()
				return nil
			}
			p.handleEvent(ev)
		case <-tick:
			p.stats.Tick()
			p.printProgress()
		}
	}
}

func (p *plainPresenter) path(path string) string {
	return StripRoot(p.dstRoot, StripRoot(p.srcRoot, path))
}

func (p *plainPresenter) handleEvent(ev Event) {
	p.clearProgress()
	path := p.path(ev.Path)
	switch ev.Type {
	case FileCopied:
		speed := p.stats.RollingSpeed(5)
		fmt.Fprintf(p.w, "%s  %s  %s\n", path, FormatBytes(ev.Size), FormatRate(speed))
	case FileFailed, EntryFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s\n", path, errMsg)
	case WouldCopy:
		fmt.Fprintf(p.w, "would copy: %s\n", path)
	case DirCreated:
		if p.verbose {
			fmt.Fprintf(p.w, "%s/\n", path)
		}
	case DiffFound:
		if p.verbose {
			fmt.Fprintf(p.w, "diff: %s entries, %s\n", FormatCount(ev.Total), FormatBytes(ev.TotalSize))
		}
	case ListComplete:
		if p.verbose {
			fmt.Fprintf(p.w, "listed %s: %s entries\n", ev.Side, FormatCount(ev.Total))
		}
	case VerifyStarted:
		fmt.Fprintln(p.w, "verifying...")
	case VerifyFailed:
		fmt.Fprintf(p.w, "MISMATCH: %s\n", path)
	case ListStarted, VerifyOK:
		// silent in plain mode
	}
}

func (p *plainPresenter) progressLine() string {
	snap := p.stats.Snapshot()
	if snap.BytesTotal > 0 {
		frac := float64(snap.BytesCopied) / float64(snap.BytesTotal)
		return fmt.Sprintf("progress: %s %.0f%% %s/%s %s/%s entries %s eta %s",
			ProgressBar(frac, progressBarWidth),
			frac*100,
			FormatBytes(snap.BytesCopied), FormatBytes(snap.BytesTotal),
			FormatCount(snap.FilesCopied+snap.DirsCreated), FormatCount(snap.DiffEntries),
			FormatRate(p.stats.RollingSpeed(10)),
			FormatETA(p.stats.ETA()),
		)
	}
	if snap.DiffEntries == 0 && snap.FilesCopied == 0 {
		return fmt.Sprintf("progress: listing %s source, %s destination entries",
			FormatCount(snap.SourceEntries), FormatCount(snap.DestEntries))
	}
	return fmt.Sprintf("progress: %s copied %s files",
		FormatBytes(snap.BytesCopied),
		FormatCount(snap.FilesCopied),
	)
}

func (p *plainPresenter) printProgress() {
	line := p.progressLine()
	if p.inPlace {
		if p.width > 1 {
			line = truncate(line, p.width-1)
		}
		fmt.Fprintf(p.errW, "\r\033[K%s", line)
		p.drawn = true
		return
	}
	fmt.Fprintln(p.errW, line)
}

// truncate cuts s to at most n runes so a redrawn line never wraps.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// clearProgress erases an in-place progress line before other output.
func (p *plainPresenter) clearProgress() {
	if !p.drawn {
		return
	}
	fmt.Fprint(p.errW, "\r\033[K")
	p.drawn = false
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot(), p.styled)
}
