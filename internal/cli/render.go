package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rshade/cmsbulk/internal/bulk"
	"github.com/rshade/cmsbulk/internal/engine/batch"
	"github.com/rshade/cmsbulk/internal/ingest"
)

// Headline colors per classification (ANSI 256).
const (
	colorOK       = lipgloss.Color("42")
	colorPartial  = lipgloss.Color("214")
	colorFailed   = lipgloss.Color("196")
	colorCanceled = lipgloss.Color("245")
	colorSection  = lipgloss.Color("33")
)

// renderResult writes the outcome of a bulk action.
func renderResult(w io.Writer, res *bulk.Result) {
	renderParseErrors(w, res.ParseErrors)
	renderSkipped(w, res.Skipped)

	if res.DryRun {
		renderPlanned(w, res)
		return
	}

	_, _ = fmt.Fprintln(w, headlineStyle(res.Summary.Classification).Render(res.Summary.String()))
	_, _ = fmt.Fprintf(w, "job %s, %d%% resolved in %s\n", res.JobID, res.Summary.Percentage, res.Summary.Elapsed.Round(time.Millisecond))

	if len(res.Unresolved) == 0 {
		return
	}
	rows := make([][]string, len(res.Unresolved))
	for i, u := range res.Unresolved {
		status := "not attempted"
		if u.Status == batch.StatusFailed {
			status = "failed"
		}
		rows[i] = []string{strconv.Itoa(u.Sequence), u.Label, status, u.Error}
	}
	renderSection(w, "Needs resubmission", []string{"#", "Item", "Status", "Error"}, rows, 1)
}

func headlineStyle(c batch.Classification) lipgloss.Style {
	color := colorOK
	switch c {
	case batch.PartialFailure:
		color = colorPartial
	case batch.AllFailed:
		color = colorFailed
	case batch.Cancelled:
		color = colorCanceled
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

func renderPlanned(w io.Writer, res *bulk.Result) {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorSection)
	_, _ = fmt.Fprintln(w, title.Render(fmt.Sprintf("Dry run: %d %s mutation(s) planned, nothing submitted", len(res.Planned), res.Operation)))
	if len(res.Planned) == 0 {
		return
	}
	rows := make([][]string, len(res.Planned))
	for i, p := range res.Planned {
		rows[i] = []string{strconv.Itoa(p.Sequence), p.Label, p.Detail}
	}
	renderSection(w, "Planned", []string{"#", "Item", "Input"}, rows, 1)
}

func renderParseErrors(w io.Writer, errs []*ingest.ParseError) {
	if len(errs) == 0 {
		return
	}
	rows := make([][]string, len(errs))
	for i, e := range errs {
		rows[i] = []string{strconv.Itoa(e.LineNumber), e.Reason, e.Raw}
	}
	renderSection(w, "Rejected lines", []string{"Line", "Reason", "Input"}, rows, 1)
}

func renderSkipped(w io.Writer, skipped []bulk.Skip) {
	if len(skipped) == 0 {
		return
	}
	rows := make([][]string, len(skipped))
	for i, s := range skipped {
		rows[i] = []string{strconv.Itoa(s.LineNumber), s.Label, s.Reason.Error()}
	}
	renderSection(w, "Skipped", []string{"Line", "Item", "Reason"}, rows, 1)
}

// renderSection writes a titled rounded table. The first rightAligned
// columns are right-aligned.
func renderSection(w io.Writer, title string, headers []string, rows [][]string, rightAligned int) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(title)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < rightAligned {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)

	_, _ = fmt.Fprintln(w, tw.Render())
}
