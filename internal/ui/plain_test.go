package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/dirsync/internal/event"
	"github.com/bamsammich/dirsync/internal/stats"
)

func runPlain(t *testing.T, p *plainPresenter, evs ...Event) {
	t.Helper()
	events := make(chan Event, len(evs))
	for _, ev := range evs {
		events <- ev
	}
	close(events)
	require.NoError(t, p.Run(events))
}

func newPlain(out, errOut *bytes.Buffer) *plainPresenter {
	return &plainPresenter{w: out, errW: errOut, stats: stats.NewCollector(), srcRoot: "/src", dstRoot: "/dst"}
}

func TestPlainPresenterFileCopied(t *testing.T) {
	var out, errOut bytes.Buffer
	p := newPlain(&out, &errOut)

	runPlain(t, p,
		Event{Type: event.FileCopied, Path: "dir/file.txt", Size: 1024},
		Event{Type: event.FileCopied, Path: "dir/big.bin", Size: 1024 * 1024 * 100},
	)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "dir/file.txt")
	assert.Contains(t, lines[0], "1.0 KiB")
	assert.Contains(t, lines[1], "dir/big.bin")
}

func TestPlainPresenterFailuresStripRoots(t *testing.T) {
	var out, errOut bytes.Buffer
	p := newPlain(&out, &errOut)

	runPlain(t, p,
		Event{Type: event.FileFailed, Path: "/src/fail.txt", Error: assert.AnError},
		Event{Type: event.EntryFailed, Path: "/dst/locked", Error: errors.New("permission denied")},
	)

	assert.Contains(t, out.String(), "fail.txt  "+assert.AnError.Error())
	assert.NotContains(t, out.String(), "/src/")
	assert.Contains(t, out.String(), "locked  permission denied")
}

func TestPlainPresenterWouldCopy(t *testing.T) {
	var out, errOut bytes.Buffer
	p := newPlain(&out, &errOut)

	runPlain(t, p, Event{Type: event.WouldCopy, Path: "new.txt"})
	assert.Contains(t, out.String(), "would copy: new.txt")
}

func TestPlainPresenterVerboseOnlyLines(t *testing.T) {
	evs := []Event{
		{Type: event.DirCreated, Path: "sub"},
		{Type: event.ListComplete, Side: event.Source, Total: 12},
		{Type: event.DiffFound, Total: 3, TotalSize: 2048},
	}

	var quiet, errOut bytes.Buffer
	runPlain(t, newPlain(&quiet, &errOut), evs...)
	assert.Empty(t, quiet.String())

	var loud bytes.Buffer
	p := newPlain(&loud, &errOut)
	p.verbose = true
	runPlain(t, p, evs...)
	assert.Contains(t, loud.String(), "sub/")
	assert.Contains(t, loud.String(), "listed source: 12 entries")
	assert.Contains(t, loud.String(), "diff: 3 entries, 2.0 KiB")
}

func TestPlainPresenterVerify(t *testing.T) {
	var out, errOut bytes.Buffer
	p := newPlain(&out, &errOut)

	runPlain(t, p,
		Event{Type: event.VerifyStarted},
		Event{Type: event.VerifyOK, Path: "good.txt"},
		Event{Type: event.VerifyFailed, Path: "bad/file.txt"},
	)
	assert.Contains(t, out.String(), "verifying...")
	assert.Contains(t, out.String(), "MISMATCH: bad/file.txt")
	assert.NotContains(t, out.String(), "good.txt")
}

func TestPlainPresenterProgressLine(t *testing.T) {
	p := newPlain(&bytes.Buffer{}, &bytes.Buffer{})

	p.stats.AddSourceEntries(10)
	assert.Contains(t, p.progressLine(), "listing 10 source")

	p.stats.SetDiff(4, 1000)
	p.stats.AddBytesCopied(500)
	p.stats.AddFilesCopied(2)
	line := p.progressLine()
	assert.Contains(t, line, "50%")
	assert.Contains(t, line, "2/4 entries")
}

func TestPlainPresenterTicksProgress(t *testing.T) {
	var out, errOut bytes.Buffer
	p := newPlain(&out, &errOut)
	p.progress = true
	p.interval = 10 * time.Millisecond

	events := make(chan Event)
	done := make(chan error, 1)
	go func() { done <- p.Run(events) }()

	time.Sleep(50 * time.Millisecond)
	close(events)
	require.NoError(t, <-done)
	assert.Contains(t, errOut.String(), "progress:")
}

func TestPlainPresenterInPlaceProgressIsCleared(t *testing.T) {
	var out, errOut bytes.Buffer
	p := newPlain(&out, &errOut)
	p.inPlace = true

	p.printProgress()
	assert.True(t, p.drawn)
	p.handleEvent(Event{Type: event.FileCopied, Path: "a"})
	assert.False(t, p.drawn)
	assert.True(t, strings.HasSuffix(errOut.String(), "\r\033[K"))
}

func TestPlainPresenterSummary(t *testing.T) {
	collector := stats.NewCollector()
	collector.AddFilesCopied(100)
	collector.AddBytesCopied(1024 * 1024)

	p := &plainPresenter{stats: collector}
	s := p.Summary()
	assert.Contains(t, s, "copied 100")
	assert.Contains(t, s, "errors 0")
}

func TestNewPresenter(t *testing.T) {
	collector := stats.NewCollector()

	q := NewPresenter(Config{Quiet: true, Stats: collector})
	assert.IsType(t, &quietPresenter{}, q)
	assert.Empty(t, q.Summary())

	p := NewPresenter(Config{Stats: collector, NoProgress: true})
	require.IsType(t, &plainPresenter{}, p)
	assert.False(t, p.(*plainPresenter).progress)
	assert.Equal(t, 5*time.Second, p.(*plainPresenter).interval)
}

func TestPlainPresenterTruncatesToWidth(t *testing.T) {
	var errOut bytes.Buffer
	p := newPlain(&bytes.Buffer{}, &errOut)
	p.inPlace = true
	p.width = 12

	p.printProgress()
	assert.Equal(t, "\r\033[Kprogress: l", errOut.String())
	assert.Equal(t, "héllo", truncate("héllo", 10))
	assert.Equal(t, "hé", truncate("héllo", 2))
}
