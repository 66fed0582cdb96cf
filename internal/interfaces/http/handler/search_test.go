package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-retrieval-api/internal/application/search"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for range texts {
		out = append(out, []float64{0.1, 0.2})
	}
	return out, nil
}

type fakeVectorStore struct {
	results []*search.VectorSearchResult
}

func (fakeVectorStore) EnsureKnowledgeSegmentsCollection(context.Context) error { return nil }

func (s fakeVectorStore) SearchSegments(context.Context, *search.VectorSearchParams) ([]*search.VectorSearchResult, error) {
	return s.results, nil
}

func (fakeVectorStore) InsertSegments(context.Context, string, []*search.VectorSegment) error {
	return nil
}

func (fakeVectorStore) DeleteSegmentsByDocument(context.Context, string, string) error { return nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	opts := search.Options{EmbeddingModel: "test-embedding"}
	store := fakeVectorStore{results: []*search.VectorSearchResult{
		{ID: "seg-1", DocumentID: "doc-1", TextContent: "检索结果内容", Score: 0.8},
	}}
	reranker := search.NewReranker(nil, opts)
	semantic := search.NewSemanticSearcher(fakeEmbedder{}, store, reranker, nil, opts)
	lexical := search.NewLexicalSearcher(semantic, nil, opts)
	hybrid := search.NewHybridSearcher(semantic, lexical, reranker, opts)
	structured := search.NewStructuredSearcher(semantic, opts)
	detector := search.NewIntentDetector(nil, nil, opts)
	intelligent := search.NewIntelligentSearcher(semantic, lexical, hybrid, detector, opts)

	h := NewSearchHandler(semantic, lexical, hybrid, structured, intelligent, reranker, 10)

	r := gin.New()
	v1 := r.Group("/v1")
	v1.POST("/search", h.Search)
	v1.POST("/search/semantic", h.SemanticSearch)
	v1.POST("/rerank", h.Rerank)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearchEndpoint(t *testing.T) {
	r := newTestRouter(t)

	t.Run("missing query is rejected", func(t *testing.T) {
		w := postJSON(t, r, "/v1/search", map[string]any{"knowledge_base_ids": []string{"kb-1"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative limit is rejected", func(t *testing.T) {
		w := postJSON(t, r, "/v1/search", map[string]any{
			"query":              "查询",
			"knowledge_base_ids": []string{"kb-1"},
			"limit":              -5,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty knowledge base list returns empty result", func(t *testing.T) {
		w := postJSON(t, r, "/v1/search", map[string]any{"query": "查询"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				Segments []json.RawMessage `json:"segments"`
				Metadata struct {
					Total int `json:"total"`
				} `json:"metadata"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Data.Segments)
		assert.Zero(t, resp.Data.Metadata.Total)
	})
}

func TestSemanticSearchEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/v1/search/semantic", map[string]any{
		"query":             "语义查询",
		"knowledge_base_id": "kb-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int `json:"code"`
		Data struct {
			Segments []struct {
				SegmentID string  `json:"segment_id"`
				Score     float64 `json:"score"`
			} `json:"segments"`
			Metadata struct {
				Strategy string `json:"strategy"`
				Total    int    `json:"total"`
			} `json:"metadata"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 200, resp.Code)
	require.Len(t, resp.Data.Segments, 1)
	assert.Equal(t, "seg-1", resp.Data.Segments[0].SegmentID)
	assert.Equal(t, "semantic", resp.Data.Metadata.Strategy)
	assert.Equal(t, 1, resp.Data.Metadata.Total)
}

func TestRerankEndpoint(t *testing.T) {
	r := newTestRouter(t)

	segments := []map[string]any{
		{"segment_id": "seg-1", "content": "milvus 索引调优", "score": 0.4},
		{"segment_id": "seg-2", "content": "无关内容", "score": 0.6},
	}

	t.Run("simple method", func(t *testing.T) {
		w := postJSON(t, r, "/v1/rerank", map[string]any{
			"query":    "milvus",
			"method":   "simple",
			"segments": segments,
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				Segments []struct {
					SegmentID string `json:"segment_id"`
				} `json:"segments"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data.Segments, 2)
		// 关键词命中的片段经规则重排后排前。
		assert.Equal(t, "seg-1", resp.Data.Segments[0].SegmentID)
	})

	t.Run("unknown method is rejected", func(t *testing.T) {
		w := postJSON(t, r, "/v1/rerank", map[string]any{
			"query":    "milvus",
			"method":   "bm25",
			"segments": segments,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing segments is rejected", func(t *testing.T) {
		w := postJSON(t, r, "/v1/rerank", map[string]any{"query": "milvus"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
