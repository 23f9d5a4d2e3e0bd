package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/dirsync/internal/stats"
)

// CompletionSummary builds the final summary line from a snapshot. When
// styled is set the icon and counters are colored with the active theme.
//
// Format: done ✓  copied 48,917  dirs 12  size 2.1 GiB  avg 641 MB/s  time 3m 17s  errors 0
func CompletionSummary(snap stats.Snapshot, styled bool) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesCopied) / snap.Elapsed.Seconds()
	}

	failures := snap.Failures()
	icon, iconStyle := "✓", styleIconDone
	if failures > 0 {
		icon, iconStyle = "✗", styleIconFailed
	}

	paint := func(s string, st lipgloss.Style) string {
		if !styled {
			return s
		}
		return st.Render(s)
	}

	base := fmt.Sprintf("done %s  copied %s  dirs %s  size %s  avg %s  time %s",
		paint(icon, iconStyle),
		paint(FormatCount(snap.FilesCopied), styleNumber),
		FormatCount(snap.DirsCreated),
		FormatBytes(snap.BytesCopied),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)

	if snap.FilesVerified > 0 || snap.FilesVerifyFailed > 0 {
		base += fmt.Sprintf("  verified %s", FormatCount(snap.FilesVerified))
	}

	errStyle := styleMuted
	if failures > 0 {
		errStyle = styleError
	}
	base += "  errors " + paint(fmt.Sprint(failures), errStyle)

	return base
}
