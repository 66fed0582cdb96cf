package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitScriptRuns(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"milvus 向量检索", []string{"milvus", "向量检索"}},
		{"检索engine测试", []string{"检索", "engine", "测试"}},
		{"a,b;c", []string{"a", "b", "c"}},
		{"   ", nil},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, splitScriptRuns(tc.in), "input: %q", tc.in)
	}
}

func TestRuleExtractKeywords(t *testing.T) {
	t.Run("strips question phrases", func(t *testing.T) {
		kws := ruleExtractKeywords("什么是向量数据库")
		assert.Equal(t, []string{"向量数据库"}, kws)
	})

	t.Run("drops short tokens", func(t *testing.T) {
		kws := ruleExtractKeywords("go gc 调优实践")
		assert.NotContains(t, kws, "go")
		assert.NotContains(t, kws, "gc")
		assert.Contains(t, kws, "调优实践")
	})

	t.Run("dedupes case-insensitively", func(t *testing.T) {
		kws := ruleExtractKeywords("Milvus milvus MILVUS")
		assert.Len(t, kws, 1)
	})

	t.Run("empty query", func(t *testing.T) {
		assert.Empty(t, ruleExtractKeywords("  "))
	})
}

func TestKeywordScore(t *testing.T) {
	t.Run("zero on no content or no keywords", func(t *testing.T) {
		assert.Zero(t, keywordScore("", []string{"a"}))
		assert.Zero(t, keywordScore("content", nil))
	})

	t.Run("zero when nothing matches", func(t *testing.T) {
		assert.Zero(t, keywordScore("完全无关的文本", []string{"milvus"}))
	})

	t.Run("bounded in unit interval", func(t *testing.T) {
		score := keywordScore("milvus milvus milvus milvus 向量 向量 向量", []string{"milvus", "向量"})
		assert.Greater(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	})

	t.Run("full coverage beats partial coverage", func(t *testing.T) {
		content := "milvus 支持向量检索"
		full := keywordScore(content, []string{"milvus", "向量"})
		partial := keywordScore(content, []string{"milvus", "不存在"})
		assert.Greater(t, full, partial)
	})

	t.Run("earlier match scores higher", func(t *testing.T) {
		early := keywordScore("关键词出现在开头的一段比较长的文本内容", []string{"关键词"})
		late := keywordScore("一段比较长的文本内容最后才出现关键词", []string{"关键词"})
		assert.Greater(t, early, late)
	})
}

func TestMatchedKeywords(t *testing.T) {
	matched := matchedKeywords("Milvus 是向量数据库", []string{"milvus", "向量", "redis"})
	require.Equal(t, []string{"milvus", "向量"}, matched)

	assert.Empty(t, matchedKeywords("内容", nil))
}
