package scenario

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Render writes the step log and the final pair states as tables.
func (r *Report) Render(w io.Writer) {
	steps := table.NewWriter()
	steps.SetOutputMirror(w)
	steps.SetStyle(table.StyleLight)
	if r.Name != "" {
		steps.SetTitle(r.Name)
	}
	steps.AppendHeader(table.Row{"#", "Op", "Result", "Status"})
	for _, s := range r.Steps {
		status := "ok"
		if s.Err != nil {
			status = s.Err.Error()
		}
		steps.AppendRow(table.Row{s.Index, s.Op, s.Detail, status})
	}
	steps.Render()

	if len(r.Pairs) == 0 {
		_, _ = fmt.Fprintln(w, "(0 pairs)")
		return
	}
	pairs := table.NewWriter()
	pairs.SetOutputMirror(w)
	pairs.SetStyle(table.StyleLight)
	pairs.AppendHeader(table.Row{"Pair", "Token 0", "Reserve 0", "Token 1", "Reserve 1", "Shares"})
	for _, p := range r.Pairs {
		pairs.AppendRow(table.Row{
			p.Name, p.Token0, p.Reserve0.Dec(), p.Token1, p.Reserve1.Dec(), p.Shares.Dec(),
		})
	}
	pairs.Render()
}
