package search

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"kb-retrieval-api/pkg/logger"
)

// HybridParams 混合检索参数。KeywordWeight 与 SemanticWeight 均为 0 时使用配置默认值。
type HybridParams struct {
	Query           string
	KnowledgeBaseID string
	Keywords        []string
	KeywordWeight   float64
	SemanticWeight  float64
	EnableRerank    bool
	Limit           int
	Threshold       float64
}

// HybridSearcher 混合检索:关键词与语义两路并行召回,按权重加性融合。
type HybridSearcher struct {
	semantic *SemanticSearcher
	lexical  *LexicalSearcher
	reranker *Reranker
	opts     Options
}

func NewHybridSearcher(semantic *SemanticSearcher, lexical *LexicalSearcher, reranker *Reranker, opts Options) *HybridSearcher {
	return &HybridSearcher{
		semantic: semantic,
		lexical:  lexical,
		reranker: reranker,
		opts:     opts.withDefaults(),
	}
}

// Search 混合检索主入口。两路各自失败时按空贡献继续,全失败时返回空结果而非错误。
func (s *HybridSearcher) Search(ctx context.Context, params HybridParams) ([]Segment, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if params.Limit <= 0 {
		return nil, ErrInvalidLimit
	}
	limit := s.opts.capLimit(params.Limit)

	kwWeight, semWeight := params.KeywordWeight, params.SemanticWeight
	if kwWeight == 0 && semWeight == 0 {
		kwWeight, semWeight = s.opts.KeywordWeight, s.opts.SemanticWeight
	}

	var lexicalHits, semanticHits []Segment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.lexical.Search(gctx, query, params.Keywords, params.KnowledgeBaseID, limit*2)
		if err != nil {
			logger.Warn(gctx, "hybrid: lexical leg failed, continuing with semantic only",
				"knowledge_base_id", params.KnowledgeBaseID, "error", err.Error())
			return nil
		}
		lexicalHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := s.semantic.SemanticSearch(gctx, query, params.KnowledgeBaseID, s.opts.EmbeddingModel, limit*2, params.Threshold, false)
		if err != nil {
			logger.Warn(gctx, "hybrid: semantic leg failed, continuing with lexical only",
				"knowledge_base_id", params.KnowledgeBaseID, "error", err.Error())
			return nil
		}
		semanticHits = hits
		return nil
	})
	_ = g.Wait()

	fused := fuseSegments(lexicalHits, semanticHits, kwWeight, semWeight)

	if params.EnableRerank && len(fused) > 1 && s.reranker != nil {
		fused = s.reranker.Rerank(ctx, fused, query)
	}

	// 阈值作用于融合（及重排）后的最终分数，加权可能把单路命中压到阈值之下
	fused = filterByThreshold(fused, s.opts.thresholdOrDefault(params.Threshold))

	sortByScoreDesc(fused)
	return truncateSegments(fused, limit), nil
}

// fuseSegments 加性加权融合。两路都命中的片段分数相加并标记 fusion,总分截断到 1.0。
func fuseSegments(lexicalHits, semanticHits []Segment, kwWeight, semWeight float64) []Segment {
	merged := make(map[string]*Segment, len(lexicalHits)+len(semanticHits))
	order := make([]string, 0, len(lexicalHits)+len(semanticHits))

	for _, hit := range lexicalHits {
		seg := hit.Clone()
		seg.Score = seg.Score * kwWeight
		seg.SetMeta(MetaSearchType, "hybrid")
		merged[seg.SegmentID] = &seg
		order = append(order, seg.SegmentID)
	}
	for _, hit := range semanticHits {
		if existing, ok := merged[hit.SegmentID]; ok {
			existing.Score = clamp01(existing.Score + hit.Score*semWeight)
			existing.SetMeta(MetaFusion, "lexical+semantic")
			continue
		}
		seg := hit.Clone()
		seg.Score = clamp01(seg.Score * semWeight)
		seg.SetMeta(MetaSearchType, "hybrid")
		merged[seg.SegmentID] = &seg
		order = append(order, seg.SegmentID)
	}

	out := make([]Segment, 0, len(order))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	return out
}
