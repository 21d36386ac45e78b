package sql

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	sqlFencePattern = regexp.MustCompile("(?s)```sql\\s*(.*?)\\s*```")
	// An info word (e.g. "mysql") is only dropped when it sits alone on the opening line.
	bareFencePattern = regexp.MustCompile("(?s)```(?:[\\w+-]*[ \\t]*\\r?\\n)?\\s*(.*?)\\s*```")
)

// ExtractFencedSQL unwraps generator output from a markdown code fence.
// A sql-tagged fence is preferred, then the first other fence. Text without
// fences is returned trimmed.
func ExtractFencedSQL(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}
	if m := sqlFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// FirstSQLBlock returns the body of the first ```sql fence in text, if any.
func FirstSQLBlock(text string) (string, bool) {
	m := sqlFencePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// StripComments removes -- and /* */ comments that are not inside literals.
func StripComments(sqlText string) string {
	tokens := Tokenize(sqlText)

	var b strings.Builder
	last := 0
	for _, tok := range tokens {
		if tok.Kind != TokenComment {
			continue
		}
		b.WriteString(sqlText[last:tok.Start])
		if strings.HasPrefix(tok.Text, "/*") {
			b.WriteByte(' ')
		}
		last = tok.End
	}
	b.WriteString(sqlText[last:])

	return strings.TrimSpace(b.String())
}

// HasKeyword reports whether any of keywords appears as a bare word token.
// A word mixing ASCII and other scripts, such as 查詢SELECT, is also matched
// per script run.
func HasKeyword(sqlText string, keywords []string) bool {
	for _, tok := range Tokenize(sqlText) {
		if tok.Kind != TokenWord {
			continue
		}
		for _, part := range scriptRuns(tok.Text) {
			for _, kw := range keywords {
				if strings.EqualFold(part, kw) {
					return true
				}
			}
		}
	}
	return false
}

// scriptRuns returns word followed by its maximal ASCII and non-ASCII runs
// when it holds both.
func scriptRuns(word string) []string {
	runs := []string{word}
	start := 0
	for i, r := range word {
		if i > 0 && (r < utf8.RuneSelf) != (rune(word[start]) < utf8.RuneSelf) {
			runs = append(runs, word[start:i])
			start = i
		}
	}
	if start > 0 {
		runs = append(runs, word[start:])
	}
	return runs
}

var commentMarkers = strings.NewReplacer("--", " ", "/*", " ", "*/", " ")

// LooksLikeSQL checks the comment-stripped text for a SQL keyword and falls
// back to the raw text, comments included, when that fails.
func LooksLikeSQL(sqlText string, keywords []string) bool {
	if HasKeyword(StripComments(sqlText), keywords) {
		return true
	}
	return HasKeyword(commentMarkers.Replace(sqlText), keywords)
}
