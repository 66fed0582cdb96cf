package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONValue(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced object", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"leading prose", `好的，结果如下：[{"index":1,"score":0.9}]`, `[{"index":1,"score":0.9}]`},
		{"object before array", `{"a":[1,2]} 其余文本`, `{"a":[1,2]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSONValue(tc.in))
		})
	}
}

func TestParseKeywordList(t *testing.T) {
	t.Run("json array", func(t *testing.T) {
		kws := parseKeywordList(`["向量检索", "milvus", "向量检索"]`)
		assert.Equal(t, []string{"向量检索", "milvus"}, kws)
	})

	t.Run("line separated fallback", func(t *testing.T) {
		kws := parseKeywordList("向量检索\nmilvus\n索引")
		assert.Equal(t, []string{"向量检索", "milvus", "索引"}, kws)
	})

	t.Run("comma separated fallback", func(t *testing.T) {
		kws := parseKeywordList("向量检索, milvus")
		assert.Equal(t, []string{"向量检索", "milvus"}, kws)
	})

	t.Run("caps at ten keywords", func(t *testing.T) {
		kws := parseKeywordList("k1,k2,k3,k4,k5,k6,k7,k8,k9,k10,k11,k12")
		assert.Len(t, kws, 10)
	})

	t.Run("blank input", func(t *testing.T) {
		assert.Empty(t, parseKeywordList("   "))
	})
}

func TestParseLabelResponse(t *testing.T) {
	t.Run("intent json", func(t *testing.T) {
		label, conf, err := parseLabelResponse(`{"intent":"Definition","confidence":0.85}`)
		require.NoError(t, err)
		assert.Equal(t, "definition", label)
		assert.InDelta(t, 0.85, conf, 1e-9)
	})

	t.Run("strategy json", func(t *testing.T) {
		label, _, err := parseLabelResponse(`{"strategy":"hybrid","confidence":0.9}`)
		require.NoError(t, err)
		assert.Equal(t, "hybrid", label)
	})

	t.Run("missing confidence defaults to full", func(t *testing.T) {
		_, conf, err := parseLabelResponse(`{"intent":"factual"}`)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, conf, 1e-9)
	})

	t.Run("bare label fallback", func(t *testing.T) {
		label, conf, err := parseLabelResponse("semantic")
		require.NoError(t, err)
		assert.Equal(t, "semantic", label)
		assert.InDelta(t, 1.0, conf, 1e-9)
	})

	t.Run("multi-word response is rejected", func(t *testing.T) {
		_, _, err := parseLabelResponse("我认为应该选 semantic")
		require.Error(t, err)
	})

	t.Run("empty response is rejected", func(t *testing.T) {
		_, _, err := parseLabelResponse("  ")
		require.Error(t, err)
	})
}

func TestParseRerankScores(t *testing.T) {
	t.Run("valid entries", func(t *testing.T) {
		scores, err := parseRerankScores(`[{"index":1,"score":0.9},{"index":2,"score":0.4}]`, 2)
		require.NoError(t, err)
		assert.InDelta(t, 0.9, scores[1], 1e-9)
		assert.InDelta(t, 0.4, scores[2], 1e-9)
	})

	t.Run("out-of-range indexes are dropped", func(t *testing.T) {
		scores, err := parseRerankScores(`[{"index":0,"score":0.5},{"index":3,"score":0.5},{"index":1,"score":0.7}]`, 2)
		require.NoError(t, err)
		require.Len(t, scores, 1)
		assert.InDelta(t, 0.7, scores[1], 1e-9)
	})

	t.Run("score clamps to unit interval", func(t *testing.T) {
		scores, err := parseRerankScores(`[{"index":1,"score":1.8}]`, 1)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, scores[1], 1e-9)
	})

	t.Run("no valid entries", func(t *testing.T) {
		_, err := parseRerankScores(`[{"index":9,"score":0.5}]`, 2)
		require.Error(t, err)
	})

	t.Run("non-json response", func(t *testing.T) {
		_, err := parseRerankScores("抱歉无法打分", 2)
		require.Error(t, err)
	})
}

func TestParseFloatScore(t *testing.T) {
	t.Run("bare number", func(t *testing.T) {
		v, err := parseFloatScore("0.85")
		require.NoError(t, err)
		assert.InDelta(t, 0.85, v, 1e-9)
	})

	t.Run("number inside prose", func(t *testing.T) {
		v, err := parseFloatScore("相关性分数为 0.6 分")
		require.NoError(t, err)
		assert.InDelta(t, 0.6, v, 1e-9)
	})

	t.Run("clamps above one", func(t *testing.T) {
		v, err := parseFloatScore("95")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, v, 1e-9)
	})

	t.Run("no number", func(t *testing.T) {
		_, err := parseFloatScore("无法判断")
		require.Error(t, err)
	})
}

func TestBuildAIRerankPrompt(t *testing.T) {
	segments := []Segment{
		{Content: "第一段内容"},
		{Content: "第二段内容"},
	}
	prompt := buildAIRerankPrompt("查询词", segments)

	// 候选按 1 起始编号列出。
	assert.Contains(t, prompt, "[1] 第一段内容")
	assert.Contains(t, prompt, "[2] 第二段内容")
	assert.Contains(t, prompt, "查询词")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "短文本", truncateRunes("短文本", 10))
	assert.Equal(t, "", truncateRunes("任何内容", 0))

	out := truncateRunes(strings.Repeat("长", 300), 100)
	assert.True(t, strings.HasSuffix(out, "…"))
	assert.LessOrEqual(t, len([]rune(out)), 101)
}

func TestCompactOneLine(t *testing.T) {
	assert.Equal(t, "a b c", compactOneLine("a\r\nb\n  c  "))
}
