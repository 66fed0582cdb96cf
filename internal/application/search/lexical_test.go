package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLexicalFixture(results []*VectorSearchResult, llm *stubLLM) (*LexicalSearcher, *stubLLM) {
	if llm == nil {
		llm = &stubLLM{}
	}
	semantic := NewSemanticSearcher(&stubEmbedder{}, &stubVectorStore{results: results}, nil, nil, testOptions())
	return NewLexicalSearcher(semantic, llm, testOptions()), llm
}

func TestLexicalSearch_InvalidInput(t *testing.T) {
	s, _ := newLexicalFixture(nil, nil)

	_, err := s.Search(context.Background(), "", nil, "kb-1", 10)
	require.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Search(context.Background(), "查询", nil, "kb-1", 0)
	require.ErrorIs(t, err, ErrInvalidLimit)
}

func TestLexicalSearch_BlendWithoutKeywordMatch(t *testing.T) {
	results := []*VectorSearchResult{
		vectorResult("seg-1", "doc-1", 0, "这段内容与关键词毫无关系", 0.6),
	}
	s, llm := newLexicalFixture(results, nil)

	segments, err := s.Search(context.Background(), "测试查询", []string{"milvus"}, "kb-1", 10)
	require.NoError(t, err)
	require.Len(t, segments, 1)

	// 关键词零命中时混合分退化为语义分乘以 (1-KeywordBoost)。
	assert.InDelta(t, 0.6*0.8, segments[0].Score, 1e-6)

	st, _ := segments[0].Meta(MetaSearchType)
	assert.Equal(t, "keyword", st)
	kwScore, ok := segments[0].Meta(MetaKeywordScore)
	require.True(t, ok)
	assert.Equal(t, "0", kwScore)
	_, ok = segments[0].Meta(MetaMatchedKeywords)
	assert.False(t, ok)

	// 显式传入关键词时不触发 LLM 提取。
	assert.Equal(t, 0, llm.callCount())
}

func TestLexicalSearch_KeywordEvidenceRerank(t *testing.T) {
	results := []*VectorSearchResult{
		vectorResult("seg-nomatch", "doc-1", 0, "完全无关的段落文本", 0.62),
		vectorResult("seg-match", "doc-2", 0, "milvus 向量数据库支持近邻检索", 0.6),
	}
	s, _ := newLexicalFixture(results, nil)

	segments, err := s.Search(context.Background(), "milvus 用法", []string{"milvus"}, "kb-1", 10)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	// 关键词命中的片段在混合加权后反超语义分更高的片段。
	assert.Equal(t, "seg-match", segments[0].SegmentID)
	matched, ok := segments[0].Meta(MetaMatchedKeywords)
	require.True(t, ok)
	assert.Equal(t, "milvus", matched)
}

func TestExtractKeywords_LLMPath(t *testing.T) {
	llm := &stubLLM{responses: []string{`["向量检索", "milvus"]`}}
	s, _ := newLexicalFixture(nil, llm)

	kws := s.ExtractKeywords(context.Background(), "介绍一下 milvus 的向量检索")
	assert.Equal(t, []string{"向量检索", "milvus"}, kws)
}

func TestExtractKeywords_LLMFailureUsesRules(t *testing.T) {
	llm := &stubLLM{err: fmt.Errorf("llm unavailable")}
	s, _ := newLexicalFixture(nil, llm)

	kws := s.ExtractKeywords(context.Background(), "什么是向量检索引擎")
	require.NotEmpty(t, kws)
	assert.Contains(t, kws, "向量检索引擎")
}

func TestExtractKeywords_EmptyResponseUsesRules(t *testing.T) {
	llm := &stubLLM{responses: []string{"   "}}
	s, _ := newLexicalFixture(nil, llm)

	kws := s.ExtractKeywords(context.Background(), "kubernetes 部署流程说明")
	require.NotEmpty(t, kws)
	assert.Contains(t, kws, "kubernetes")
}
