package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvisorAnalyze(t *testing.T) {
	advisor := NewQueryAdvisor(16)

	t.Run("select star", func(t *testing.T) {
		advice := advisor.Analyze("SELECT * FROM posts LIMIT 10")
		require.NotEmpty(t, advice.Suggestions)
		assert.Contains(t, advice.Suggestions[0], "SELECT *")
	})

	t.Run("missing limit", func(t *testing.T) {
		advice := advisor.Analyze("SELECT id FROM posts")
		assert.Contains(t, advice.Suggestions, "add a LIMIT clause to bound the result set")
	})

	t.Run("join cost scales with join count", func(t *testing.T) {
		one := advisor.Analyze("SELECT a.id FROM a JOIN b ON a.id = b.a_id LIMIT 1")
		two := advisor.Analyze("SELECT a.id FROM a JOIN b ON a.id = b.a_id JOIN c ON b.id = c.b_id LIMIT 1")
		assert.Greater(t, two.EstimatedCost, one.EstimatedCost)
	})

	t.Run("order by and where add cost", func(t *testing.T) {
		plain := advisor.Analyze("SELECT id FROM posts LIMIT 5")
		filtered := advisor.Analyze("SELECT id FROM posts WHERE status = $1 ORDER BY created_at LIMIT 5")
		assert.Greater(t, filtered.EstimatedCost, plain.EstimatedCost)
	})

	t.Run("deterministic select is cacheable", func(t *testing.T) {
		advice := advisor.Analyze("SELECT id FROM posts WHERE slug = $1 LIMIT 1")
		assert.True(t, advice.CacheRecommendation)
	})

	t.Run("nondeterministic select is not cacheable", func(t *testing.T) {
		advice := advisor.Analyze("SELECT id FROM posts WHERE created_at > NOW() - interval '1 day' LIMIT 10")
		assert.False(t, advice.CacheRecommendation)
	})

	t.Run("writes are not cacheable", func(t *testing.T) {
		advice := advisor.Analyze("UPDATE posts SET views = views + 1 WHERE id = $1")
		assert.False(t, advice.CacheRecommendation)
	})
}

func TestAdvisorMemoizes(t *testing.T) {
	advisor := NewQueryAdvisor(16)

	query := "SELECT id, title FROM posts WHERE author_id = $1 LIMIT 20"
	first := advisor.Analyze(query)
	second := advisor.Analyze(query)
	assert.Same(t, first, second)

	other := advisor.Analyze("SELECT id FROM authors LIMIT 1")
	assert.NotSame(t, first, other)
}
