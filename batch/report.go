package batch

import (
	"io"
	"time"

	"github.com/aluiziolira/go-scrape-apps/models"
	"github.com/jedib0t/go-pretty/v6/table"
)

// PrintReport renders the run summary as a table on w.
func PrintReport(w io.Writer, r *models.RunReport) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("Run summary: " + r.Name)

	status := "interrupted"
	if r.Completed {
		status = "completed"
	}
	t.AppendRows([]table.Row{
		{"Status", status},
		{"Items in list", r.TotalItems},
		{"Started at index", r.StartIndex},
		{"Items attempted", r.Attempted},
		{"Items with errors", r.ItemsWithErrors},
		{"Total errors", r.TotalErrors},
		{"Duration", r.Duration().Round(time.Millisecond).String()},
	})
	t.Render()
}
