package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/samcharles93/seqwin/internal/lod"
	"github.com/samcharles93/seqwin/internal/tensor"
)

const maxPrintCols = 12

// renderRows prints m as a table with one line per row, tagged with the
// sequence it belongs to.  Columns past maxPrintCols are elided.
func renderRows(w io.Writer, title string, layout lod.Layout, m tensor.Mat) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)

	cols := min(m.C, maxPrintCols)
	header := table.Row{"seq", "row"}
	for j := range cols {
		header = append(header, strconv.Itoa(j))
	}
	if cols < m.C {
		header = append(header, "...")
	}
	t.AppendHeader(header)

	for i, span := range layout.All() {
		for r := span.Begin; r < span.End; r++ {
			row := table.Row{i, r}
			for _, v := range m.Row(r)[:cols] {
				row = append(row, strconv.FormatFloat(float64(v), 'g', 5, 32))
			}
			if cols < m.C {
				row = append(row, fmt.Sprintf("+%d", m.C-cols))
			}
			t.AppendRow(row)
		}
		if i < layout.NumSeq()-1 && span.Len() > 0 {
			t.AppendSeparator()
		}
	}
	t.Render()
}
