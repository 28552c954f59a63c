package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/dshills/dirrag/internal/indexer"
)

// progressObserver draws a progress bar over the files of a sync pass.
type progressObserver struct {
	out   io.Writer
	quiet bool
	bar   *progressbar.ProgressBar
}

func newProgressObserver(out io.Writer, quiet bool) *progressObserver {
	return &progressObserver{out: out, quiet: quiet}
}

func (p *progressObserver) OnPassStart(total int) {
	if p.quiet || total == 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("Syncing files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.out)
		}),
	)
}

func (p *progressObserver) OnFileDone(path string, outcome indexer.Outcome) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(fmt.Sprintf("%-8s %s", outcome, filepath.Base(path)))
	_ = p.bar.Add(1)
}

func (p *progressObserver) OnPassComplete(*indexer.Statistics) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

// printStatistics writes the summary of one pass.
func printStatistics(w io.Writer, stats *indexer.Statistics) {
	fmt.Fprintf(w, "✓ Sync complete in %.1fs\n", stats.Duration.Seconds())
	fmt.Fprintf(w, "  Files discovered: %d\n", stats.FilesDiscovered)
	fmt.Fprintf(w, "  Files processed:  %d\n", stats.FilesProcessed)
	fmt.Fprintf(w, "  Files skipped:    %d\n", stats.FilesSkipped)
	fmt.Fprintf(w, "  Files deleted:    %d\n", stats.FilesDeleted)
	fmt.Fprintf(w, "  Files failed:     %d\n", stats.FilesFailed)
	fmt.Fprintf(w, "  Chunks added:     %d\n", stats.ChunksAdded)
	fmt.Fprintf(w, "  Chunks removed:   %d\n", stats.ChunksRemoved)
	for _, msg := range stats.Errors {
		fmt.Fprintf(w, "  ! %s\n", msg)
	}
}
