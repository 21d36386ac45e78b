package render

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/rules"
)

const (
	// ResultHeaderMarker starts the rendered result section of an answer.
	ResultHeaderMarker   = "**查詢結果：**"
	visualizationHeading = "\n\n**數據可視化：**\n\n"
)

// Renderer composes the result section of an answer from rows.
type Renderer struct {
	rules  *rules.Rules
	logger *zap.Logger
}

// NewRenderer creates a Renderer driven by the given rules.
func NewRenderer(r *rules.Rules, logger *zap.Logger) *Renderer {
	return &Renderer{rules: r, logger: logger.Named("render")}
}

// ResultHeader is the line introducing a result of n rows.
func ResultHeader(n int) string {
	return fmt.Sprintf("\n\n%s 共 %d 條記錄\n\n", ResultHeaderMarker, n)
}

// ShouldChart reports whether a chart is drawn for a result of the given
// shape. Single-column and oversized results never are.
func (r *Renderer) ShouldChart(question string, columnCount, rowCount int) bool {
	return r.rules.WantsVisualization(question) && r.chartFits(columnCount, rowCount)
}

func (r *Renderer) chartFits(columnCount, rowCount int) bool {
	return columnCount >= 2 && rowCount >= 1 && rowCount <= r.rules.ChartMaxRows
}

func (r *Renderer) chartOptions(question string) ChartOptions {
	return ChartOptions{
		Type:            r.rules.ChartTypeFor(question),
		XCandidates:     r.rules.XAxisCandidates,
		MinNumeric:      r.rules.YAxisMinNumeric,
		SampleRows:      r.rules.YAxisSampleRows,
		FallbackColumns: r.rules.YAxisFallbackColumns,
	}
}

// Result renders header, table and, when the question asks for one, a
// chart. An empty result renders nothing.
func (r *Renderer) Result(question string, columns []string, rows []models.Row) string {
	return r.render(question, columns, rows, r.rules.WantsVisualization(question))
}

// Rechart renders a stored table again for a chart-change request. The
// request itself named a chart, so only the shape limits apply.
func (r *Renderer) Rechart(question string, table TableSpec) string {
	return r.render(question, table.ColumnNames(), table.Records(), true)
}

func (r *Renderer) render(question string, columns []string, rows []models.Row, wantChart bool) string {
	if len(rows) == 0 {
		return ""
	}

	content := ResultHeader(len(rows)) + NewTableSpec(columns, rows).Encode()

	if wantChart && r.chartFits(len(columns), len(rows)) {
		chart, err := BuildChart(columns, rows, r.chartOptions(question))
		if err != nil {
			r.logger.Warn("Chart rendering skipped", zap.Error(err))
			return content
		}
		content += visualizationHeading + chart.Encode()
	}

	return content
}
