package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// thinkTagPattern matches <think>...</think> tags that reasoning models put before the answer.
	thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)
	// codeFencePattern matches a ```json or bare ``` fenced block.
	codeFencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")
)

// StripCodeFence returns the body of the first fenced block, or the
// trimmed response when it has none.
func StripCodeFence(response string) string {
	if m := codeFencePattern.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}

// ExtractJSON pulls the first balanced JSON object or array out of an LLM
// response that may carry <think> tags, code fences or surrounding prose.
func ExtractJSON(response string) (string, error) {
	cleaned := StripCodeFence(thinkTagPattern.ReplaceAllString(response, ""))

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if s, ok := balancedJSON(cleaned, '{', '}'); ok && json.Valid([]byte(s)) {
			return s, nil
		}
	}

	if arrStart >= 0 {
		if s, ok := balancedJSON(cleaned, '[', ']'); ok && json.Valid([]byte(s)) {
			return s, nil
		}
	}

	if json.Valid([]byte(cleaned)) && cleaned != "" {
		return cleaned, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// balancedJSON returns the first span opened by open and closed at depth zero,
// ignoring brackets inside JSON strings.
func balancedJSON(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into the target.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
