package sql

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// TableRef is one table identifier occurrence in a statement. For
// schema-qualified names only the last part is recorded.
type TableRef struct {
	Name  string // unquoted identifier
	Start int    // byte offset of the token, quotes included
	End   int
	Quote byte // 0, '`' or '"'
}

// clauseWords end an optional table alias.
var clauseWords = map[string]bool{
	"where": true, "join": true, "on": true, "using": true, "left": true, "right": true,
	"inner": true, "outer": true, "cross": true, "full": true, "natural": true,
	"group": true, "order": true, "having": true, "limit": true, "offset": true,
	"union": true, "except": true, "intersect": true, "set": true, "values": true,
	"window": true, "for": true, "lock": true, "straight_join": true, "select": true,
	"into": true, "returning": true, "fetch": true,
}

// TableReferences returns the identifiers in table position: after FROM,
// JOIN, UPDATE and INTO, plus comma-continued FROM lists. Words for which
// skip returns true are ignored, as are CTE names and FROM inside function
// calls such as EXTRACT(YEAR FROM d).
func TableReferences(sqlText string, skip func(string) bool) []TableRef {
	tokens := significant(Tokenize(sqlText))
	ctes := cteNames(tokens)

	var refs []TableRef
	// parens records, per open parenthesis, whether it starts a subquery.
	var parens []bool

	inExpression := func() bool {
		return len(parens) > 0 && !parens[len(parens)-1]
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok.IsPunct('('):
			sub := i+1 < len(tokens) && (tokens[i+1].IsWord("select") || tokens[i+1].IsWord("with"))
			parens = append(parens, sub)
			continue
		case tok.IsPunct(')'):
			if len(parens) > 0 {
				parens = parens[:len(parens)-1]
			}
			continue
		}

		if tok.Kind != TokenWord || inExpression() {
			continue
		}

		lower := strings.ToLower(tok.Text)
		switch lower {
		case "from", "join", "into":
		case "update":
			// ON DUPLICATE KEY UPDATE col = ...
			if i > 0 && tokens[i-1].IsWord("key") {
				continue
			}
		default:
			continue
		}

		j := i + 1
		for {
			ref, next, ok := parseTableName(tokens, j)
			if !ok {
				break
			}
			if !skip(ref.Name) && !ctes[strings.ToLower(ref.Name)] {
				refs = append(refs, ref)
			}
			j = next
			if lower != "from" {
				break
			}
			j = skipAlias(tokens, j)
			if j < len(tokens) && tokens[j].IsPunct(',') {
				j++
				continue
			}
			break
		}
	}

	return refs
}

// parseTableName reads [schema.]name starting at tokens[i].
func parseTableName(tokens []Token, i int) (TableRef, int, bool) {
	if i >= len(tokens) || !isIdentifier(tokens[i]) {
		return TableRef{}, i, false
	}

	last := tokens[i]
	i++
	for i+1 < len(tokens) && tokens[i].IsPunct('.') && isIdentifier(tokens[i+1]) {
		last = tokens[i+1]
		i += 2
	}

	ref := TableRef{Name: last.Value(), Start: last.Start, End: last.End}
	if last.Kind == TokenQuotedIdent {
		ref.Quote = last.Text[0]
	}
	return ref, i, true
}

func skipAlias(tokens []Token, i int) int {
	if i < len(tokens) && tokens[i].IsWord("as") {
		i++
		if i < len(tokens) && isIdentifier(tokens[i]) {
			i++
		}
		return i
	}
	if i < len(tokens) && isIdentifier(tokens[i]) && !clauseWords[strings.ToLower(tokens[i].Text)] {
		i++
	}
	return i
}

func isIdentifier(t Token) bool {
	return t.Kind == TokenWord || t.Kind == TokenQuotedIdent
}

// cteNames collects the names a leading WITH clause defines.
func cteNames(tokens []Token) map[string]bool {
	names := make(map[string]bool)
	if len(tokens) == 0 || !tokens[0].IsWord("with") {
		return names
	}

	i := 1
	if i < len(tokens) && tokens[i].IsWord("recursive") {
		i++
	}
	for i < len(tokens) && isIdentifier(tokens[i]) {
		names[strings.ToLower(tokens[i].Value())] = true
		i++
		// skip an optional column list, then AS, then the body
		for k := 0; k < 2 && i < len(tokens); k++ {
			if tokens[i].IsWord("as") {
				i++
			}
			if i < len(tokens) && tokens[i].IsPunct('(') {
				i = skipParens(tokens, i)
			}
		}
		if i < len(tokens) && tokens[i].IsPunct(',') {
			i++
			continue
		}
		break
	}
	return names
}

// skipParens returns the index after the parenthesis group opening at i.
func skipParens(tokens []Token, i int) int {
	depth := 0
	for ; i < len(tokens); i++ {
		switch {
		case tokens[i].IsPunct('('):
			depth++
		case tokens[i].IsPunct(')'):
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

// MatchTable finds the existing table a generated identifier most likely
// means: exact case-insensitive match, then name±"s", then inflection's
// singular and plural forms.
func MatchTable(name string, tables []string) (string, bool) {
	lower := strings.ToLower(name)
	if lower == "" {
		return "", false
	}

	candidates := []string{lower, lower + "s"}
	if strings.HasSuffix(lower, "s") {
		candidates = append(candidates, strings.TrimSuffix(lower, "s"))
	}
	candidates = append(candidates, inflection.Singular(lower), inflection.Plural(lower))

	for _, c := range candidates {
		for _, t := range tables {
			if strings.ToLower(t) == c {
				return t, true
			}
		}
	}
	return "", false
}
