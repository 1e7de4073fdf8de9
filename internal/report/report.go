// Package report renders run results as Markdown and HTML: the `report`
// command writes both to disk, and the daemon status page serves the HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/matrixci/internal/history"
	"git.home.luguber.info/inful/matrixci/internal/runner"
)

// Markdown renders a finished run as a Markdown summary.
func Markdown(r *runner.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s — %s\n\n", r.RunID, r.Outcome)
	fmt.Fprintf(&b, "- Pipeline: %s\n", r.Pipeline)
	fmt.Fprintf(&b, "- Trigger: %s\n", r.Trigger)
	fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n\n", r.Duration.Round(time.Millisecond))

	counts := r.Counts()
	fmt.Fprintf(&b, "%d entries: %d succeeded, %d failed, %d allowed failures, %d canceled, %d skipped\n\n",
		len(r.EntryResults()),
		counts[runner.OutcomeSuccess], counts[runner.OutcomeFailed],
		counts[runner.OutcomeAllowedFailure], counts[runner.OutcomeCanceled], counts[runner.OutcomeSkipped])

	for _, stage := range r.Stages {
		fmt.Fprintf(&b, "## %s — %s\n\n", stage.Stage, stage.Outcome)
		b.WriteString("| Entry | Runtime | Outcome | Failed phase | Duration |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, e := range stage.Entries {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				e.Entry, orDash(e.Runtime), e.Outcome, orDash(string(e.FailedPhase)), e.Duration.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RecordMarkdown renders a persisted run and its entry records as Markdown,
// used by the report command when the run came from the history store.
func RecordMarkdown(run history.RunRecord, entries []history.EntryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s — %s\n\n", run.RunID, run.Outcome)
	fmt.Fprintf(&b, "- Pipeline: %s\n", run.Pipeline)
	fmt.Fprintf(&b, "- Trigger: %s\n", run.Trigger)
	fmt.Fprintf(&b, "- Started: %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n\n", run.Duration.Round(time.Millisecond))

	if len(entries) == 0 {
		b.WriteString("No entry results recorded.\n")
		return b.String()
	}

	current := ""
	for _, e := range entries {
		if e.Stage != current {
			if current != "" {
				b.WriteString("\n")
			}
			current = e.Stage
			fmt.Fprintf(&b, "## %s\n\n", e.Stage)
			b.WriteString("| Entry | Outcome | Failed phase | Duration |\n")
			b.WriteString("|---|---|---|---|\n")
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			e.Entry, e.Outcome, orDash(e.FailedPhase), e.Duration.Round(time.Millisecond))
	}
	b.WriteString("\n")
	return b.String()
}

// HistoryMarkdown renders recent runs from the history store as Markdown.
func HistoryMarkdown(runs []history.RunRecord) string {
	var b strings.Builder
	b.WriteString("# Recent runs\n\n")
	if len(runs) == 0 {
		b.WriteString("No recorded runs.\n")
		return b.String()
	}
	b.WriteString("| Run | Pipeline | Trigger | Outcome | Finished | Duration |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			shortID(r.RunID), r.Pipeline, r.Trigger, r.Outcome,
			r.FinishedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	}
	return b.String()
}

// HTML renders Markdown into a standalone HTML page. Tables come from the
// GFM extension.
func HTML(title, markdown string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", title)
	page.WriteString("<style>body{font-family:sans-serif;max-width:60rem;margin:2rem auto;padding:0 1rem}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:0.3rem 0.6rem}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
