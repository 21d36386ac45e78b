package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examples.yaml")
	content := `- documentation: "orders.amount is stored in cents"
- question: "每個用戶的訂單數量"
  sql: "SELECT user_id, COUNT(*) FROM orders GROUP BY user_id"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	examples, err := loadExamples(path)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, "orders.amount is stored in cents", examples[0].Documentation)
	assert.Equal(t, "每個用戶的訂單數量", examples[1].Question)
	assert.Equal(t, "SELECT user_id, COUNT(*) FROM orders GROUP BY user_id", examples[1].SQL)
}

func TestLoadExamples_Errors(t *testing.T) {
	_, err := loadExamples(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("question: [unclosed"), 0o600))
	_, err = loadExamples(path)
	assert.Error(t, err)
}
