// Package rules holds the declarative keyword tables that drive intent
// classification, chart rendering and table matching.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// ChartTypeRule maps keywords to a chart type.
type ChartTypeRule struct {
	Type     string   `yaml:"type"`
	Keywords []string `yaml:"keywords"`
}

// Synonym translates a question term into the word used in table names.
type Synonym struct {
	Term        string `yaml:"term"`
	Translation string `yaml:"translation"`
}

// Rules is the full rule set. Slices are ordered where order matters.
type Rules struct {
	ChartKeywords          []string        `yaml:"chart_keywords"`
	ExpansionMaxLength     int             `yaml:"expansion_max_length"`
	VisualizationKeywords  []string        `yaml:"visualization_keywords"`
	ChartTypes             []ChartTypeRule `yaml:"chart_types"`
	DefaultChartType       string          `yaml:"default_chart_type"`
	XAxisCandidates        []string        `yaml:"x_axis_candidates"`
	YAxisMinNumeric        int             `yaml:"y_axis_min_numeric"`
	YAxisSampleRows        int             `yaml:"y_axis_sample_rows"`
	YAxisFallbackColumns   int             `yaml:"y_axis_fallback_columns"`
	ChartMaxRows           int             `yaml:"chart_max_rows"`
	Synonyms               []Synonym       `yaml:"synonyms"`
	CorePrefixes           []string        `yaml:"core_prefixes"`
	NotFoundMarkers        []string        `yaml:"not_found_markers"`
	StatusOnlyExplanations []string        `yaml:"status_only_explanations"`
	SQLKeywords            []string        `yaml:"sql_keywords"`
	TableSkipKeywords      []string        `yaml:"table_skip_keywords"`
}

// Default returns the built-in rule set.
func Default() *Rules {
	r := &Rules{}
	if err := yaml.Unmarshal(defaultRulesYAML, r); err != nil {
		panic(fmt.Sprintf("rules: embedded defaults are invalid: %v", err))
	}
	return r
}

// Load returns the built-in rules overlaid with the YAML file at path.
// An empty path returns the defaults.
func Load(path string) (*Rules, error) {
	r := Default()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return r, nil
}

func (r *Rules) validate() error {
	if r.ExpansionMaxLength < 0 {
		return fmt.Errorf("expansion_max_length must not be negative")
	}
	if r.DefaultChartType == "" {
		return fmt.Errorf("default_chart_type is required")
	}
	if r.ChartMaxRows <= 0 || r.YAxisSampleRows <= 0 {
		return fmt.Errorf("chart_max_rows and y_axis_sample_rows must be positive")
	}
	if len(r.SQLKeywords) == 0 {
		return fmt.Errorf("sql_keywords must not be empty")
	}
	for _, ct := range r.ChartTypes {
		if ct.Type == "" || len(ct.Keywords) == 0 {
			return fmt.Errorf("chart_types entries need a type and keywords")
		}
	}
	return nil
}

// ContainsAny reports whether text contains any keyword, ignoring ASCII case.
func ContainsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// IsChartRequest reports whether the question only asks to re-chart a previous result.
func (r *Rules) IsChartRequest(question string) bool {
	return ContainsAny(question, r.ChartKeywords)
}

// WantsVisualization reports whether the question asks for a chart.
func (r *Rules) WantsVisualization(question string) bool {
	return ContainsAny(question, r.VisualizationKeywords)
}

// ChartTypeFor picks the chart type for a question.
func (r *Rules) ChartTypeFor(question string) string {
	for _, ct := range r.ChartTypes {
		if ContainsAny(question, ct.Keywords) {
			return ct.Type
		}
	}
	return r.DefaultChartType
}

// IsStatusOnly reports whether an explanation merely reports status.
func (r *Rules) IsStatusOnly(explanation string) bool {
	trimmed := strings.TrimSpace(explanation)
	for _, s := range r.StatusOnlyExplanations {
		if trimmed == s {
			return true
		}
	}
	return false
}

// IsSkipKeyword reports whether word can never be a table name.
func (r *Rules) IsSkipKeyword(word string) bool {
	for _, kw := range r.TableSkipKeywords {
		if strings.EqualFold(kw, word) {
			return true
		}
	}
	return false
}
