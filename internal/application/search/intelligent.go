package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"kb-retrieval-api/pkg/logger"
	"kb-retrieval-api/pkg/metrics"
)

// IntelligentParams 智能检索参数。StrategyHint 非空时跳过意图识别直接用指定策略。
type IntelligentParams struct {
	Query            string
	KnowledgeBaseIDs []string
	StrategyHint     string
	Limit            int
	Threshold        float64
}

// IntelligentSearcher 智能检索编排:意图识别选策略,多知识库并行检索后加权合并。
type IntelligentSearcher struct {
	semantic *SemanticSearcher
	detector *IntentDetector
	registry map[StrategyName]Strategy
	opts     Options
}

func NewIntelligentSearcher(semantic *SemanticSearcher, lexical *LexicalSearcher, hybrid *HybridSearcher, detector *IntentDetector, opts Options) *IntelligentSearcher {
	opts = opts.withDefaults()
	registry := map[StrategyName]Strategy{
		StrategySemantic: strategyFunc(func(ctx context.Context, p StrategyParams) ([]Segment, error) {
			return semantic.SemanticSearch(ctx, p.Query, p.KnowledgeBaseID, opts.EmbeddingModel, p.Limit, p.Threshold, true)
		}),
		StrategyKeyword: strategyFunc(func(ctx context.Context, p StrategyParams) ([]Segment, error) {
			return lexical.Search(ctx, p.Query, nil, p.KnowledgeBaseID, p.Limit)
		}),
		StrategyHybrid: strategyFunc(func(ctx context.Context, p StrategyParams) ([]Segment, error) {
			return hybrid.Search(ctx, HybridParams{
				Query:           p.Query,
				KnowledgeBaseID: p.KnowledgeBaseID,
				KeywordWeight:   opts.KeywordWeight,
				SemanticWeight:  opts.SemanticWeight,
				Limit:           p.Limit,
				Threshold:       p.Threshold,
			})
		}),
		// 结构化过滤尚未接入编排参数,先按语义检索执行。
		StrategyStructured: strategyFunc(func(ctx context.Context, p StrategyParams) ([]Segment, error) {
			return semantic.SemanticSearch(ctx, p.Query, p.KnowledgeBaseID, opts.EmbeddingModel, p.Limit, p.Threshold, false)
		}),
	}
	return &IntelligentSearcher{
		semantic: semantic,
		detector: detector,
		registry: registry,
		opts:     opts,
	}
}

// Search 智能检索主入口。知识库列表为空时直接返回空结果,不触达任何下游依赖。
// 编排层自身出错时降级为单库语义检索,结果打上 degraded 标记。
func (s *IntelligentSearcher) Search(ctx context.Context, params IntelligentParams) ([]Segment, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if params.Limit <= 0 {
		return nil, ErrInvalidLimit
	}
	limit := s.opts.capLimit(params.Limit)

	kbIDs := dedupeNonEmpty(params.KnowledgeBaseIDs)
	if len(kbIDs) == 0 {
		return []Segment{}, nil
	}

	intent, strategy := s.resolveStrategy(ctx, query, params.StrategyHint)
	logger.Info(ctx, "intelligent search dispatch",
		"intent", string(intent),
		"strategy", string(strategy),
		"knowledge_bases", len(kbIDs),
	)

	perKB, err := s.searchAll(ctx, query, kbIDs, strategy, limit, params.Threshold)
	if err != nil {
		logger.Error(ctx, "intelligent search orchestration failed, degrading to semantic", err)
		metrics.FallbackTotal.WithLabelValues("strategy_select").Inc()
		return s.fallbackSearch(ctx, query, kbIDs[0], limit, params.Threshold)
	}

	merged := mergeKnowledgeBaseResults(perKB, limit)
	for i := range merged {
		merged[i].SetMeta(MetaIntent, string(intent))
		merged[i].SetMeta(MetaStrategy, string(strategy))
	}
	sortByScoreDesc(merged)
	return merged, nil
}

// resolveStrategy 确定检索策略。显式 hint 优先;未知 hint 记告警后按 hybrid 执行。
func (s *IntelligentSearcher) resolveStrategy(ctx context.Context, query, hint string) (Intent, StrategyName) {
	if hint != "" {
		name, err := ParseStrategy(hint)
		if err != nil {
			logger.Warn(ctx, "unknown strategy hint, falling back to hybrid", "hint", hint)
			return IntentGeneralQA, StrategyHybrid
		}
		if name != StrategyIntelligent {
			return IntentGeneralQA, name
		}
	}
	intent := s.detector.Detect(ctx, query)
	return intent, s.detector.SelectStrategy(ctx, query, intent)
}

// searchAll 对每个知识库并行执行选定策略。单库超时或失败记空贡献,不影响其它库;
// 策略未注册属于编排级错误,交由调用方降级。
func (s *IntelligentSearcher) searchAll(ctx context.Context, query string, kbIDs []string, strategy StrategyName, limit int, threshold float64) (map[string][]Segment, error) {
	impl, ok := s.registry[strategy]
	if !ok {
		return nil, fmt.Errorf("strategy %q not registered", strategy)
	}

	var mu sync.Mutex
	perKB := make(map[string][]Segment, len(kbIDs))

	g, gctx := errgroup.WithContext(ctx)
	for _, kbID := range kbIDs {
		g.Go(func() error {
			kbCtx, cancel := context.WithTimeout(gctx, s.opts.PerKBTimeout)
			defer cancel()

			hits, err := impl.Search(kbCtx, StrategyParams{
				Query:           query,
				KnowledgeBaseID: kbID,
				Limit:           limit,
				Threshold:       threshold,
			})
			if err != nil {
				logger.Warn(gctx, "knowledge base search failed, contributing empty result",
					"knowledge_base_id", kbID, "strategy", string(strategy), "error", err.Error())
				metrics.FallbackTotal.WithLabelValues("knowledge_base").Inc()
				hits = nil
			}
			mu.Lock()
			perKB[kbID] = hits
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perKB, nil
}

// fallbackSearch 编排级降级:仅用首个知识库做语义检索,分数减半并打 degraded 标记。
func (s *IntelligentSearcher) fallbackSearch(ctx context.Context, query, kbID string, limit int, threshold float64) ([]Segment, error) {
	hits, err := s.semantic.SemanticSearch(ctx, query, kbID, s.opts.EmbeddingModel, limit, threshold, false)
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Score = hits[i].Score * 0.5
		hits[i].SetMeta(MetaDegraded, "true")
	}
	return hits, nil
}

// mergeKnowledgeBaseResults 多库结果合并。
// 库权重取各自结果的平均分,按权重降序轮转取数;documentId+position 去重保留高分,够 limit 即止。
func mergeKnowledgeBaseResults(perKB map[string][]Segment, limit int) []Segment {
	type kbBucket struct {
		id       string
		weight   float64
		segments []Segment
	}

	buckets := make([]kbBucket, 0, len(perKB))
	for id, segments := range perKB {
		if len(segments) == 0 {
			continue
		}
		var total float64
		for _, seg := range segments {
			total += seg.Score
		}
		buckets = append(buckets, kbBucket{
			id:       id,
			weight:   total / float64(len(segments)),
			segments: segments,
		})
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].weight > buckets[j].weight })

	best := make(map[string]Segment, limit)
	order := make([]string, 0, limit)
	for round := 0; len(best) < limit; round++ {
		progressed := false
		for _, bucket := range buckets {
			if round >= len(bucket.segments) {
				continue
			}
			progressed = true
			seg := bucket.segments[round]
			key := strings.TrimSpace(seg.DocumentID) + "#" + strconv.Itoa(seg.Position)
			if existing, ok := best[key]; ok {
				if seg.Score > existing.Score {
					best[key] = seg
				}
				continue
			}
			if len(best) >= limit {
				break
			}
			best[key] = seg
			order = append(order, key)
		}
		if !progressed {
			break
		}
	}

	out := make([]Segment, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func dedupeNonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
