package services

import (
	"strings"
	"unicode/utf8"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/rules"
)

// Intent is what the pipeline does with a question.
type Intent string

const (
	// IntentChartChange re-renders the previous result as a different chart.
	IntentChartChange Intent = "chart_change"
	// IntentExpand rewrites a short follow-up into a complete question first.
	IntentExpand Intent = "expand"
	// IntentQuery passes the question to the generator as is.
	IntentQuery Intent = "query"
)

type intentRule struct {
	name    string
	matches func(question, context string) bool
	intent  Intent
}

// IntentClassifier evaluates an ordered rule table; the first match wins.
type IntentClassifier struct {
	rules []intentRule
}

// NewIntentClassifier builds the rule table from r.
func NewIntentClassifier(r *rules.Rules) *IntentClassifier {
	return &IntentClassifier{
		rules: []intentRule{
			{
				name:    "chart_keyword",
				matches: func(q, _ string) bool { return r.IsChartRequest(q) },
				intent:  IntentChartChange,
			},
			{
				name: "short_follow_up",
				matches: func(q, ctx string) bool {
					return ctx != "" && utf8.RuneCountInString(strings.TrimSpace(q)) <= r.ExpansionMaxLength
				},
				intent: IntentExpand,
			},
		},
	}
}

// Classify returns the intent for question given the conversation context.
func (c *IntentClassifier) Classify(question, context string) Intent {
	for _, rule := range c.rules {
		if rule.matches(question, context) {
			return rule.intent
		}
	}
	return IntentQuery
}
