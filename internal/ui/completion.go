package ui

import (
	"fmt"

	"github.com/bamsammich/arc7/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  files 1,204  size 2.1 GiB  avg 641 MB/s  time 3m 17s
//
// Rejected entries turn the icon into ! and are counted at the end.
func CompletionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesTotal) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.FilesRejected > 0 {
		icon = "!"
	}

	base := fmt.Sprintf("done %s  files %s  size %s  avg %s  time %s",
		icon,
		FormatCount(snap.FilesDone),
		FormatBytes(snap.BytesTotal),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)
	if snap.FilesRejected > 0 {
		base += fmt.Sprintf("  rejected %s", FormatCount(snap.FilesRejected))
	}
	return base
}
