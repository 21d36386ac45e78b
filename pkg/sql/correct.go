package sql

import (
	"sort"
	"strings"
)

// Correction records one rewritten identifier.
type Correction struct {
	From string
	To   string
}

// CorrectionResult is the outcome of CorrectTableNames.
type CorrectionResult struct {
	SQL         string
	Corrections []Correction
	// Unresolved lists identifiers with no matching table, deduplicated.
	Unresolved []string
}

// CorrectTableNames rewrites every table identifier to the canonical name
// of the existing table it matches. Only the identifier's own byte span is
// replaced and its quoting is kept. Identifiers that match nothing are left
// alone so the database reports the real error. Running it twice yields
// the same statement.
func CorrectTableNames(sqlText string, tables []string, skipWords []string) CorrectionResult {
	result := CorrectionResult{SQL: sqlText}
	if len(tables) == 0 {
		return result
	}

	skip := func(word string) bool {
		for _, w := range skipWords {
			if strings.EqualFold(w, word) {
				return true
			}
		}
		return false
	}

	refs := TableReferences(sqlText, skip)
	type edit struct {
		ref TableRef
		to  string
	}
	var edits []edit
	seenUnresolved := make(map[string]bool)

	for _, ref := range refs {
		match, ok := MatchTable(ref.Name, tables)
		if !ok {
			key := strings.ToLower(ref.Name)
			if !seenUnresolved[key] {
				seenUnresolved[key] = true
				result.Unresolved = append(result.Unresolved, ref.Name)
			}
			continue
		}
		if match == ref.Name {
			continue
		}
		edits = append(edits, edit{ref: ref, to: match})
		result.Corrections = append(result.Corrections, Correction{From: ref.Name, To: match})
	}

	if len(edits) == 0 {
		return result
	}

	// apply back to front so earlier offsets stay valid
	sort.Slice(edits, func(i, j int) bool { return edits[i].ref.Start > edits[j].ref.Start })
	out := sqlText
	for _, e := range edits {
		out = out[:e.ref.Start] + quoteIdent(e.to, e.ref.Quote) + out[e.ref.End:]
	}
	result.SQL = out
	return result
}

func quoteIdent(name string, quote byte) string {
	if quote == 0 {
		return name
	}
	q := string(quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}
