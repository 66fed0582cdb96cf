package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"

	"kb-retrieval-api/pkg/logger"
	"kb-retrieval-api/pkg/metrics"
)

// SemanticSearcher 语义检索：查询向量化 + 近邻召回。所有上层策略最终都落到这里。
type SemanticSearcher struct {
	embedder embedding.Embedder
	vector   VectorStore
	reranker *Reranker
	cache    QueryCache
	opts     Options
}

// NewSemanticSearcher 创建语义搜索器。cache 允许为 nil。
func NewSemanticSearcher(embedder embedding.Embedder, vector VectorStore, reranker *Reranker, cache QueryCache, opts Options) *SemanticSearcher {
	return &SemanticSearcher{
		embedder: embedder,
		vector:   vector,
		reranker: reranker,
		cache:    cache,
		opts:     opts.withDefaults(),
	}
}

// Search 基础语义检索，不触发重排。
func (s *SemanticSearcher) Search(ctx context.Context, query, knowledgeBaseID string, limit int, threshold float64) ([]Segment, error) {
	return s.SemanticSearch(ctx, query, knowledgeBaseID, s.opts.EmbeddingModel, limit, threshold, false)
}

// SemanticSearch 语义检索主入口。
// 先按 limit*2 过召回，按阈值过滤并降序排序；rerank=true 且结果多于 1 条时先重排再截断。
// 向量/Embedding 依赖失败时不向调用方抛错，而是返回带 fallback 标记的降级结果。
func (s *SemanticSearcher) SemanticSearch(ctx context.Context, query, knowledgeBaseID, embeddingModel string, limit int, threshold float64, rerank bool) ([]Segment, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	limit = s.opts.capLimit(limit)
	threshold = s.opts.thresholdOrDefault(threshold)
	if embeddingModel == "" {
		embeddingModel = s.opts.EmbeddingModel
	}

	vec, err := s.embedQuery(ctx, query, embeddingModel)
	if err != nil {
		logger.Warn(ctx, "embedding failed, returning fallback segments",
			"knowledge_base_id", knowledgeBaseID,
			"query", truncateRunes(query, 100),
			"error", err.Error(),
		)
		metrics.FallbackTotal.WithLabelValues("embedding").Inc()
		return s.fallbackSegments(query, knowledgeBaseID, "embedding"), nil
	}

	results, err := s.vector.SearchSegments(ctx, &VectorSearchParams{
		KnowledgeBaseID: knowledgeBaseID,
		QueryVector:     vec,
		TopK:            limit * 2,
	})
	if err != nil {
		logger.Warn(ctx, "vector search failed, returning fallback segments",
			"knowledge_base_id", knowledgeBaseID,
			"query", truncateRunes(query, 100),
			"error", err.Error(),
		)
		metrics.FallbackTotal.WithLabelValues("vector").Inc()
		return s.fallbackSegments(query, knowledgeBaseID, "vector"), nil
	}

	segments := make([]Segment, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		score := float64(r.Score)
		if score < threshold {
			continue
		}
		seg := Segment{
			SegmentID:       strings.TrimSpace(r.ID),
			DocumentID:      strings.TrimSpace(r.DocumentID),
			KnowledgeBaseID: knowledgeBaseID,
			Content:         r.TextContent,
			Title:           strings.TrimSpace(r.Title),
			Source:          strings.TrimSpace(r.Source),
			DocumentType:    strings.TrimSpace(r.DocumentType),
			Position:        int(r.Position),
			Length:          len(r.TextContent),
			Score:           score,
			Tags:            r.Tags,
		}
		seg.SetMeta(MetaSearchType, "semantic")
		seg.SetMeta(MetaEmbeddingModel, embeddingModel)
		segments = append(segments, seg)
	}

	sortByScoreDesc(segments)

	if rerank && len(segments) > 1 && s.reranker != nil {
		segments = s.reranker.Rerank(ctx, segments, query)
	}

	return truncateSegments(segments, limit), nil
}

// embedQuery 查询向量化，命中缓存时跳过 Embedding 调用。
func (s *SemanticSearcher) embedQuery(ctx context.Context, query, model string) ([]float32, error) {
	if s.embedder == nil || s.vector == nil {
		return nil, ErrVectorDisabled
	}

	if s.cache != nil {
		if vec, ok := s.cache.GetEmbedding(ctx, model, query); ok {
			metrics.CacheHitTotal.WithLabelValues("embedding", "hit").Inc()
			return vec, nil
		}
		metrics.CacheHitTotal.WithLabelValues("embedding", "miss").Inc()
	}

	v64, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(v64) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	vec := make([]float32, 0, len(v64[0]))
	for _, x := range v64[0] {
		vec = append(vec, float32(x))
	}

	if s.cache != nil {
		s.cache.SetEmbedding(ctx, model, query, vec)
	}
	return vec, nil
}

// fallbackSegments 本地合成的低置信降级结果；通过 Metadata 与正常结果区分。
func (s *SemanticSearcher) fallbackSegments(query, knowledgeBaseID, stage string) []Segment {
	seg := Segment{
		SegmentID:       "fallback-" + uuid.New().String(),
		KnowledgeBaseID: knowledgeBaseID,
		Content:         truncateRunes(query, 200),
		Title:           "degraded result",
		Source:          "fallback",
		DocumentType:    "fallback",
		Score:           0.1,
	}
	seg.Length = len(seg.Content)
	seg.SetMeta(MetaSearchType, "semantic")
	seg.SetMeta(MetaFallback, "true")
	seg.SetMeta(MetaFallbackStage, stage)
	return []Segment{seg}
}
