// Package render turns query results into the fenced table and chart
// blocks the chat front end draws.
package render

import (
	"errors"
	"unicode/utf8"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

const (
	minColumnChars   = 10
	pixelsPerChar    = 8
	maxColumnWidthPx = 200
)

// ErrEmptyResult is returned when there are no rows to render.
var ErrEmptyResult = errors.New("render: result has no rows")

// TableColumn describes one rendered column.
type TableColumn struct {
	Label string
	Prop  string
	Width int
}

// TableSpec is the typed form of a ```table block. Rows hold cell values in
// column order.
type TableSpec struct {
	Columns []TableColumn
	Rows    [][]any
}

// NewTableSpec builds a table from query rows. Nil cells become empty strings.
func NewTableSpec(columns []string, rows []models.Row) TableSpec {
	spec := TableSpec{
		Columns: make([]TableColumn, len(columns)),
		Rows:    make([][]any, len(rows)),
	}

	for i, row := range rows {
		cells := make([]any, len(columns))
		for j, col := range columns {
			v := row[col]
			if v == nil {
				v = ""
			}
			cells[j] = v
		}
		spec.Rows[i] = cells
	}

	for j, col := range columns {
		chars := utf8.RuneCountInString(col)
		for _, cells := range spec.Rows {
			if n := utf8.RuneCountInString(displayString(cells[j])); n > chars {
				chars = n
			}
		}
		chars = max(chars, minColumnChars)
		spec.Columns[j] = TableColumn{
			Label: col,
			Prop:  col,
			Width: min(chars*pixelsPerChar, maxColumnWidthPx),
		}
	}

	return spec
}

// ColumnNames returns the column props in order.
func (t TableSpec) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Prop
	}
	return names
}

// Records converts the rows back into keyed records.
func (t TableSpec) Records() []models.Row {
	records := make([]models.Row, len(t.Rows))
	for i, cells := range t.Rows {
		row := make(models.Row, len(t.Columns))
		for j, c := range t.Columns {
			if j < len(cells) {
				row[c.Prop] = cells[j]
			}
		}
		records[i] = row
	}
	return records
}

// Encode writes the table as a ```table fenced block.
func (t TableSpec) Encode() string {
	var w literalWriter
	w.line(0, "option = {")
	w.line(1, "columns: [")
	for _, c := range t.Columns {
		w.line(2, "{")
		w.line(3, "label: %s,", quoteString(c.Label))
		w.line(3, "prop: %s,", quoteString(c.Prop))
		w.line(3, "width: %d,", c.Width)
		w.line(2, "},")
	}
	w.line(1, "],")
	w.line(1, "data: [")
	for _, cells := range t.Rows {
		w.line(2, "{")
		for j, c := range t.Columns {
			var v any
			if j < len(cells) {
				v = cells[j]
			}
			w.line(3, "%s: %s,", formatKey(c.Prop), formatScalar(v, false))
		}
		w.line(2, "},")
	}
	w.line(1, "],")
	w.line(0, "}")
	return fence("table", w.String())
}
