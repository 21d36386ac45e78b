// Package jsonutil tolerates the loosely typed JSON that language models
// return, where a field meant to be a string may arrive as a number or bool.
package jsonutil

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexibleString decodes from any JSON scalar. Objects and arrays keep their
// raw text; null and missing values decode to "".
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	*f = FlexibleString(StringValue(data))
	return nil
}

// StringValue renders a raw JSON value as a string. Whole numbers drop their
// fractional part so a model answering 2024 for a label yields "2024".
func StringValue(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}

	return trimmed
}

// StringMap flattens a map of flexible values, dropping blank entries.
// The result is never nil.
func StringMap(m map[string]FlexibleString) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s := strings.TrimSpace(string(v)); s != "" {
			out[k] = s
		}
	}
	return out
}
