package sql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenWord        TokenKind = iota // bare identifier or keyword
	TokenQuotedIdent                  // `name` or "name"
	TokenString                       // 'literal'
	TokenNumber
	TokenComment // -- line or /* block */
	TokenPunct   // any other single rune
)

// Token is a lexical unit with its byte span in the source text.
type Token struct {
	Kind  TokenKind
	Text  string // raw text, including quotes
	Start int
	End   int
}

// Value returns the identifier text without surrounding quotes.
func (t Token) Value() string {
	if t.Kind != TokenQuotedIdent || len(t.Text) < 2 {
		return t.Text
	}
	q := t.Text[:1]
	inner := t.Text[1:]
	inner = strings.TrimSuffix(inner, q)
	return strings.ReplaceAll(inner, q+q, q)
}

// IsWord reports whether the token is the bare word w, ignoring case.
func (t Token) IsWord(w string) bool {
	return t.Kind == TokenWord && strings.EqualFold(t.Text, w)
}

// IsPunct reports whether the token is the punctuation rune r.
func (t Token) IsPunct(r byte) bool {
	return t.Kind == TokenPunct && len(t.Text) == 1 && t.Text[0] == r
}

// Tokenize splits SQL text into tokens, dropping whitespace.
// Unterminated strings, identifiers and comments run to the end of input.
func Tokenize(sqlText string) []Token {
	var tokens []Token
	i := 0
	n := len(sqlText)

	for i < n {
		r, size := utf8.DecodeRuneInString(sqlText[i:])
		start := i

		switch {
		case unicode.IsSpace(r):
			i += size
			continue

		case r == '-' && strings.HasPrefix(sqlText[i:], "--"):
			end := strings.IndexByte(sqlText[i:], '\n')
			if end < 0 {
				i = n
			} else {
				i += end
			}
			tokens = append(tokens, Token{Kind: TokenComment, Text: sqlText[start:i], Start: start, End: i})

		case r == '/' && strings.HasPrefix(sqlText[i:], "/*"):
			end := strings.Index(sqlText[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += 2 + end + 2
			}
			tokens = append(tokens, Token{Kind: TokenComment, Text: sqlText[start:i], Start: start, End: i})

		case r == '\'':
			i = scanQuoted(sqlText, i, '\'', true)
			tokens = append(tokens, Token{Kind: TokenString, Text: sqlText[start:i], Start: start, End: i})

		case r == '"' || r == '`':
			i = scanQuoted(sqlText, i, byte(r), false)
			tokens = append(tokens, Token{Kind: TokenQuotedIdent, Text: sqlText[start:i], Start: start, End: i})

		case r >= '0' && r <= '9':
			for i < n && (isDigit(sqlText[i]) || sqlText[i] == '.') {
				i++
			}
			kind := TokenNumber
			// MySQL allows identifiers such as 2fa_codes.
			if i < n && (sqlText[i] == '_' || unicode.IsLetter(rune(sqlText[i]))) && !strings.Contains(sqlText[start:i], ".") {
				kind = TokenWord
				for i < n {
					r2, s2 := utf8.DecodeRuneInString(sqlText[i:])
					if !isWordPart(r2) {
						break
					}
					i += s2
				}
			}
			tokens = append(tokens, Token{Kind: kind, Text: sqlText[start:i], Start: start, End: i})

		case isWordStart(r):
			i += size
			for i < n {
				r2, s2 := utf8.DecodeRuneInString(sqlText[i:])
				if !isWordPart(r2) {
					break
				}
				i += s2
			}
			tokens = append(tokens, Token{Kind: TokenWord, Text: sqlText[start:i], Start: start, End: i})

		default:
			i += size
			tokens = append(tokens, Token{Kind: TokenPunct, Text: sqlText[start:i], Start: start, End: i})
		}
	}

	return tokens
}

// scanQuoted returns the index just past the closing quote starting at pos.
// A doubled quote is an escaped quote; backslash escapes apply to string literals.
func scanQuoted(s string, pos int, quote byte, backslash bool) int {
	i := pos + 1
	for i < len(s) {
		c := s[i]
		if backslash && c == '\\' {
			i += 2
			continue
		}
		if c == quote {
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isWordPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// significant drops comment tokens.
func significant(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind != TokenComment {
			out = append(out, t)
		}
	}
	return out
}
