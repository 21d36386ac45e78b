package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

func item(id, content string, embedding ...float32) StoredItem {
	return StoredItem{TrainingItem: models.TrainingItem{ID: id, Content: content}, Embedding: embedding}
}

func ids(items []StoredItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestRankItems_TokenOverlap(t *testing.T) {
	items := []StoredItem{
		item("a", "CREATE TABLE products (id INT)"),
		item("b", "CREATE TABLE orders (id INT, user_id INT)"),
		item("c", "CREATE TABLE users (id INT, name TEXT)"),
	}

	got := rankItems(items, "show users and their orders", nil, 2)
	assert.Equal(t, []string{"b", "c"}, ids(got))
}

func TestRankItems_CJKTokens(t *testing.T) {
	items := []StoredItem{
		item("a", "訂單資料表"),
		item("b", "用戶資料表"),
	}
	got := rankItems(items, "顯示所有用戶", nil, 1)
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestRankItems_EmbeddingsFirst(t *testing.T) {
	items := []StoredItem{
		item("plain", "users users users"),
		item("far", "x", 0, 1),
		item("near", "y", 1, 0.1),
	}
	got := rankItems(items, "users", []float32{1, 0}, 0)
	assert.Equal(t, []string{"near", "far", "plain"}, ids(got))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
