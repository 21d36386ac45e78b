package generator

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{Han}|[a-z0-9_]+`)

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		set[tok] = true
	}
	return set
}

// overlapScore counts distinct query tokens that appear in text.
func overlapScore(query map[string]bool, text string) float64 {
	if len(query) == 0 {
		return 0
	}
	score := 0
	for tok := range tokenSet(text) {
		if query[tok] {
			score++
		}
	}
	return float64(score)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// searchText is the text an item is matched on.
func searchText(item StoredItem) string {
	if item.Question != "" {
		return item.Question + "\n" + item.Content
	}
	return item.Content
}

// rankItems orders items by relevance to the query and keeps the best n.
// With a query embedding, embedded items rank by cosine similarity ahead of
// items without one; otherwise token overlap decides. Ties keep store order.
func rankItems(items []StoredItem, question string, queryEmbedding []float32, n int) []StoredItem {
	type scored struct {
		item     StoredItem
		embedded bool
		score    float64
	}

	query := tokenSet(question)
	list := make([]scored, 0, len(items))
	for _, item := range items {
		s := scored{item: item}
		if len(queryEmbedding) > 0 && len(item.Embedding) == len(queryEmbedding) {
			s.embedded = true
			s.score = cosineSimilarity(queryEmbedding, item.Embedding)
		} else {
			s.score = overlapScore(query, searchText(item))
		}
		list = append(list, s)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].embedded != list[j].embedded {
			return list[i].embedded
		}
		return list[i].score > list[j].score
	})

	if n > 0 && len(list) > n {
		list = list[:n]
	}
	out := make([]StoredItem, len(list))
	for i, s := range list {
		out[i] = s.item
	}
	return out
}
