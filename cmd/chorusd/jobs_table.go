package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"chorus/internal/api"
)

var statusTitle = cases.Title(language.English)

// renderJobTable renders the queue listing. Status cells carry their
// lifecycle color when the terminal supports it; failed jobs surface the
// error detail in place of the last progress message.
func renderJobTable(jobs []api.JobStatus, colorize bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Job", "Status", "Progress", "Message", "Updated"})

	for _, job := range jobs {
		message := job.StatusMessage
		if job.ErrorDetail != "" {
			message = job.ErrorDetail
		}
		status := statusTitle.String(job.Status)
		if colorize {
			if color := statusPalette[jobStatusKind(job.Status)].color; color != "" {
				status = color + status + ansiReset
			}
		}
		tw.AppendRow(table.Row{
			shortID(job.JobID),
			status,
			fmt.Sprintf("%.0f%%", job.ProgressPercent),
			message,
			compactTime(job.UpdatedAt),
		})
	}

	// Progress reads as a gauge, so it aligns right; everything else is text.
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// compactTime trims stored RFC3339 timestamps to minute precision for the
// Updated column. Unparseable values pass through untouched.
func compactTime(value string) string {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return ts.UTC().Format("2006-01-02 15:04")
}
