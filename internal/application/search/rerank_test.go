package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rerankInput() []Segment {
	return []Segment{
		{SegmentID: "seg-1", DocumentID: "doc-1", Content: "向量检索基础介绍", Score: 0.8},
		{SegmentID: "seg-2", DocumentID: "doc-1", Content: "milvus 索引参数调优", Score: 0.5},
	}
}

func TestRerank_PassthroughOnSmallInput(t *testing.T) {
	llm := &stubLLM{}
	r := NewReranker(llm, testOptions())
	ctx := context.Background()

	assert.Empty(t, r.Rerank(ctx, nil, "查询"))

	single := []Segment{{SegmentID: "seg-1", Score: 0.9}}
	out := r.Rerank(ctx, single, "查询")
	require.Len(t, out, 1)
	assert.Equal(t, "seg-1", out[0].SegmentID)
	assert.Equal(t, 0, llm.callCount())
}

func TestAIRerank_BlendAndReorder(t *testing.T) {
	llm := &stubLLM{responses: []string{`[{"index":1,"score":0.2},{"index":2,"score":0.9}]`}}
	r := NewReranker(llm, testOptions())

	out, err := r.AIRerank(context.Background(), rerankInput(), "milvus 调优")
	require.NoError(t, err)
	require.Len(t, out, 2)

	// final = orig*(1-0.7) + rerank*0.7
	assert.Equal(t, "seg-2", out[0].SegmentID)
	assert.InDelta(t, 0.5*0.3+0.9*0.7, out[0].Score, 1e-9)
	assert.Equal(t, "seg-1", out[1].SegmentID)
	assert.InDelta(t, 0.8*0.3+0.2*0.7, out[1].Score, 1e-9)

	method, _ := out[0].Meta(MetaRerankMethod)
	assert.Equal(t, "ai", method)
	reranked, _ := out[0].Meta(MetaReranked)
	assert.Equal(t, "true", reranked)
	orig, ok := out[1].Meta(MetaOriginalScore)
	require.True(t, ok)
	assert.Equal(t, "0.8", orig)
}

func TestAIRerank_MissingIndexKeepsOriginalScore(t *testing.T) {
	llm := &stubLLM{responses: []string{`[{"index":2,"score":0.9}]`}}
	r := NewReranker(llm, testOptions())

	out, err := r.AIRerank(context.Background(), rerankInput(), "查询")
	require.NoError(t, err)
	require.Len(t, out, 2)

	// seg-1 未被打分，重排分沿用原分，混合后分数不变。
	var seg1 Segment
	for _, seg := range out {
		if seg.SegmentID == "seg-1" {
			seg1 = seg
		}
	}
	assert.InDelta(t, 0.8, seg1.Score, 1e-9)
	rs, _ := seg1.Meta(MetaRerankScore)
	assert.Equal(t, "0.8", rs)
}

func TestAIRerank_OriginalScoreWrittenOnce(t *testing.T) {
	r := NewReranker(&stubLLM{responses: []string{`[{"index":1,"score":0.9},{"index":2,"score":0.9}]`}}, testOptions())

	first, err := r.AIRerank(context.Background(), rerankInput(), "查询")
	require.NoError(t, err)

	r2 := NewReranker(&stubLLM{responses: []string{`[{"index":1,"score":0.1},{"index":2,"score":0.1}]`}}, testOptions())
	second, err := r2.AIRerank(context.Background(), first, "查询")
	require.NoError(t, err)

	for _, seg := range second {
		orig, ok := seg.Meta(MetaOriginalScore)
		require.True(t, ok)
		// 两轮重排后 originalScore 仍是最初的检索分。
		assert.Contains(t, []string{"0.8", "0.5"}, orig)
	}
}

func TestCrossEncoderRerank(t *testing.T) {
	llm := &stubLLM{responses: []string{"0.2", "0.9"}}
	r := NewReranker(llm, testOptions())

	out, err := r.CrossEncoderRerank(context.Background(), rerankInput(), "查询")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "seg-2", out[0].SegmentID)
	method, _ := out[0].Meta(MetaRerankMethod)
	assert.Equal(t, "cross_encoder", method)
	assert.Equal(t, 2, llm.callCount())
}

func TestRerank_DegradesThroughChain(t *testing.T) {
	t.Run("ai parse failure falls to cross encoder", func(t *testing.T) {
		llm := &stubLLM{responses: []string{"无法打分", "0.9", "0.2"}}
		r := NewReranker(llm, testOptions())

		out := r.Rerank(context.Background(), rerankInput(), "查询")
		require.Len(t, out, 2)
		method, _ := out[0].Meta(MetaRerankMethod)
		assert.Equal(t, "cross_encoder", method)
	})

	t.Run("llm down falls to simple", func(t *testing.T) {
		llm := &stubLLM{err: fmt.Errorf("llm unavailable")}
		r := NewReranker(llm, testOptions())

		out := r.Rerank(context.Background(), rerankInput(), "milvus 索引")
		require.Len(t, out, 2)
		method, _ := out[0].Meta(MetaRerankMethod)
		assert.Equal(t, "simple", method)
		// 规则打分不依赖 LLM，关键词命中的片段排前。
		assert.Equal(t, "seg-2", out[0].SegmentID)
	})
}

func TestRerankWithStrategy(t *testing.T) {
	r := NewReranker(&stubLLM{}, testOptions())
	ctx := context.Background()

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := r.RerankWithStrategy(ctx, rerankInput(), "查询", "bm25")
		require.ErrorIs(t, err, ErrUnknownRerankStrategy)
	})

	t.Run("simple never fails", func(t *testing.T) {
		out, err := r.RerankWithStrategy(ctx, rerankInput(), "查询", "simple")
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := r.RerankWithStrategy(ctx, nil, "查询", "ai")
		require.ErrorIs(t, err, ErrNoSegments)
	})
}

func TestRerank_DoesNotMutateInput(t *testing.T) {
	r := NewReranker(&stubLLM{err: fmt.Errorf("down")}, testOptions())
	in := rerankInput()

	_ = r.Rerank(context.Background(), in, "milvus")

	assert.InDelta(t, 0.8, in[0].Score, 1e-9)
	assert.Nil(t, in[0].Metadata)
}
