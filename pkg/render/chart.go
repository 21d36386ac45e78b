package render

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

// ErrNoYAxis is returned when no column can be plotted against the X axis.
var ErrNoYAxis = errors.New("render: no column available for the y axis")

// Series is one plotted column. Nil points are values that are not numbers.
type Series struct {
	Name string
	Data []*float64
}

// Axis describes a chart axis.
type Axis struct {
	Type string
	Data []string
}

// ChartSpec is the typed form of a ```chart block.
type ChartSpec struct {
	Type   string
	Series []Series
	XAxis  Axis
	YAxis  Axis
}

// ChartOptions controls axis selection.
type ChartOptions struct {
	Type string
	// XCandidates are matched as substrings of lowercase column names.
	XCandidates []string
	// A column is plotted when at least MinNumeric of the first SampleRows
	// values are numeric.
	MinNumeric int
	SampleRows int
	// FallbackColumns is how many non-X columns to plot when none are numeric.
	FallbackColumns int
}

// BuildChart selects axes from the result and builds the chart.
func BuildChart(columns []string, rows []models.Row, opts ChartOptions) (ChartSpec, error) {
	if len(rows) == 0 || len(columns) == 0 {
		return ChartSpec{}, ErrEmptyResult
	}

	xKey := pickXAxis(columns, opts.XCandidates)
	yKeys := pickYAxes(columns, rows, xKey, opts)
	if len(yKeys) == 0 {
		return ChartSpec{}, ErrNoYAxis
	}

	spec := ChartSpec{
		Type:  opts.Type,
		XAxis: Axis{Type: "category", Data: make([]string, len(rows))},
		YAxis: Axis{Type: "value"},
	}
	if spec.Type == "" {
		spec.Type = "line"
	}

	for i, row := range rows {
		spec.XAxis.Data[i] = displayString(row[xKey])
	}

	for _, key := range yKeys {
		series := Series{Name: key, Data: make([]*float64, len(rows))}
		for i, row := range rows {
			series.Data[i] = toNumber(row[key])
		}
		spec.Series = append(spec.Series, series)
	}

	return spec, nil
}

func pickXAxis(columns []string, candidates []string) string {
	for _, col := range columns {
		lower := strings.ToLower(col)
		for _, c := range candidates {
			if strings.Contains(lower, c) {
				return col
			}
		}
	}
	return columns[0]
}

func pickYAxes(columns []string, rows []models.Row, xKey string, opts ChartOptions) []string {
	var others []string
	for _, col := range columns {
		if col != xKey {
			others = append(others, col)
		}
	}

	sample := rows
	if opts.SampleRows > 0 && len(sample) > opts.SampleRows {
		sample = sample[:opts.SampleRows]
	}

	var numeric []string
	for _, col := range others {
		count := 0
		for _, row := range sample {
			if looksNumeric(row[col]) {
				count++
			}
		}
		if count >= opts.MinNumeric {
			numeric = append(numeric, col)
		}
	}
	if len(numeric) > 0 {
		return numeric
	}

	if opts.FallbackColumns > 0 && len(others) > opts.FallbackColumns {
		return others[:opts.FallbackColumns]
	}
	return others
}

// looksNumeric accepts numbers and strings made of digits once '.' and '-'
// are removed.
func looksNumeric(v any) bool {
	switch val := v.(type) {
	case int, int32, int64, uint64, float32, float64:
		return true
	case string:
		stripped := strings.NewReplacer(".", "", "-", "").Replace(val)
		if stripped == "" {
			return false
		}
		for _, r := range stripped {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func toNumber(v any) *float64 {
	var f float64
	switch val := v.(type) {
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint64:
		f = float64(val)
	case float32:
		f = float64(val)
	case float64:
		f = val
	case bool:
		if val {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

// Encode writes the chart as a ```chart fenced block.
func (c ChartSpec) Encode() string {
	var w literalWriter
	w.line(0, "option = {")
	w.line(1, "type: %s,", quoteString(c.Type))
	w.line(1, "data: [")
	for _, s := range c.Series {
		points := make([]string, len(s.Data))
		for i, p := range s.Data {
			if p == nil {
				points[i] = formatScalar(nil, true)
			} else {
				points[i] = formatScalar(*p, true)
			}
		}
		w.line(2, "{")
		w.line(3, "name: %s,", quoteString(s.Name))
		w.line(3, "data: [%s],", strings.Join(points, ", "))
		w.line(2, "},")
	}
	w.line(1, "],")
	w.line(1, "xAxis: {")
	w.line(2, "type: %s,", quoteString(c.XAxis.Type))
	labels := make([]string, len(c.XAxis.Data))
	for i, l := range c.XAxis.Data {
		labels[i] = quoteString(l)
	}
	w.line(2, "data: [%s],", strings.Join(labels, ", "))
	w.line(1, "},")
	w.line(1, "yAxis: {")
	w.line(2, "type: %s,", quoteString(c.YAxis.Type))
	w.line(1, "},")
	w.line(0, "}")
	return fence("chart", w.String())
}
