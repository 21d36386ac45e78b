package models

// Row is one result record keyed by column name.
type Row map[string]any

// QueryResult is the outcome of one pipeline run.
// Either Result and Explanation are set, or Error is. SQL is nil for chart
// regeneration turns and for failures that happened before any SQL existed.
type QueryResult struct {
	SQL         *string  `json:"sql"`
	Columns     []string `json:"columns,omitempty"`
	Result      []Row    `json:"result"`
	Explanation *string  `json:"explanation"`
	Error       *string  `json:"error"`
}

// NewErrorResult builds a failed result. Pass an empty sql when none was produced.
func NewErrorResult(sql, message string) *QueryResult {
	r := &QueryResult{Error: &message}
	if sql != "" {
		r.SQL = &sql
	}
	return r
}

// NewSuccessResult builds a successful result. A nil rows slice is normalized to empty.
func NewSuccessResult(sql string, columns []string, rows []Row, explanation string) *QueryResult {
	if rows == nil {
		rows = []Row{}
	}
	r := &QueryResult{
		Columns:     columns,
		Result:      rows,
		Explanation: &explanation,
	}
	if sql != "" {
		r.SQL = &sql
	}
	return r
}

// Failed reports whether the run ended in an error.
func (r *QueryResult) Failed() bool {
	return r.Error != nil
}

// SQLText returns the SQL or an empty string.
func (r *QueryResult) SQLText() string {
	if r.SQL == nil {
		return ""
	}
	return *r.SQL
}

// ErrorText returns the error message or an empty string.
func (r *QueryResult) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// ExplanationText returns the explanation or an empty string.
func (r *QueryResult) ExplanationText() string {
	if r.Explanation == nil {
		return ""
	}
	return *r.Explanation
}
