package render

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The front end consumes fenced blocks holding a JavaScript object literal:
// unquoted keys, single-quoted strings and trailing commas. literalWriter is
// the one place that text is produced.

var identPattern = regexp.MustCompile(`^[\p{L}_$][\p{L}\p{N}_$]*$`)

// Backticks are hex-escaped so cell text can never close the enclosing fence.
var singleQuoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "`", `\x60`)

type literalWriter struct {
	b strings.Builder
}

func (w *literalWriter) line(indent int, format string, args ...any) {
	w.b.WriteString(strings.Repeat("  ", indent))
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *literalWriter) String() string {
	return w.b.String()
}

func quoteString(s string) string {
	return "'" + singleQuoteEscaper.Replace(s) + "'"
}

// formatKey leaves identifier-like keys bare and quotes everything else.
func formatKey(key string) string {
	if identPattern.MatchString(key) {
		return key
	}
	return quoteString(key)
}

// formatScalar renders a cell value. nullLiteral decides whether nil is
// written as null or as an empty string.
func formatScalar(v any, nullLiteral bool) string {
	switch val := v.(type) {
	case nil:
		if nullLiteral {
			return "null"
		}
		return "''"
	case string:
		return quoteString(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return formatFloat(float64(val), nullLiteral)
	case float64:
		return formatFloat(val, nullLiteral)
	default:
		return quoteString(fmt.Sprint(val))
	}
}

func formatFloat(f float64, nullLiteral bool) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return formatScalar(nil, nullLiteral)
	}
	// keep a fractional part so integral floats decode back as floats
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// displayString is the text a cell shows, used for column widths.
func displayString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatFloat(val, false)
	default:
		return fmt.Sprint(val)
	}
}

func fence(kind, body string) string {
	return "```" + kind + "\n" + body + "```"
}
