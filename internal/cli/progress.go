package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rshade/cmsbulk/internal/engine/batch"
)

const progressBarWidth = 24

// progressPrinter shows job progress. On a terminal it redraws one line;
// otherwise it emits one log line per settled group.
type progressPrinter struct {
	w     io.Writer
	tty   bool
	drawn bool
}

func newProgressPrinter(w io.Writer, tty bool) *progressPrinter {
	return &progressPrinter{w: w, tty: tty}
}

// update is a batch.ProgressFunc.
func (p *progressPrinter) update(s batch.Snapshot) {
	if !p.tty {
		logger.Info().
			Str("job_id", s.JobID).
			Int("group", s.GroupsDone).
			Int("groups", s.Groups).
			Int("completed", s.Completed).
			Int("failed", s.Failed).
			Int("total", s.Total).
			Int("percent", s.Percentage).
			Msg("progress")
		return
	}

	_, _ = fmt.Fprintf(p.w, "\r\033[K%s %3d%%  %d/%d done, %d failed  (group %d/%d)",
		progressBar(s.Percentage, progressBarWidth), s.Percentage,
		s.Resolved(), s.Total, s.Failed, s.GroupsDone, s.Groups)
	p.drawn = true
}

// finish ends the redrawn line so the summary starts on a fresh one.
func (p *progressPrinter) finish() {
	if p.tty && p.drawn {
		_, _ = fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func progressBar(percent, width int) string {
	percent = max(0, min(percent, 100))
	filled := percent * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
