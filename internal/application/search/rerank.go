package search

import (
	"context"
	"fmt"
	"time"

	"kb-retrieval-api/pkg/logger"
	"kb-retrieval-api/pkg/metrics"
)

const (
	rerankMethodAI           = "ai"
	rerankMethodCrossEncoder = "cross_encoder"
	rerankMethodSimple       = "simple"
)

// Reranker 三级重排器：AI 批量打分 -> 逐条交叉打分 -> 规则打分。
// 前两级依赖 LLM,任一级失败自动降级到下一级;simple 永不失败,因此 Rerank 总能返回结果。
type Reranker struct {
	llm  LanguageModel
	opts Options
}

func NewReranker(llm LanguageModel, opts Options) *Reranker {
	return &Reranker{llm: llm, opts: opts.withDefaults()}
}

// Rerank 按降级链重排。输入为空或单条时原样返回。
func (r *Reranker) Rerank(ctx context.Context, segments []Segment, query string) []Segment {
	if len(segments) <= 1 {
		return segments
	}

	if out, err := r.AIRerank(ctx, segments, query); err == nil {
		return out
	} else {
		logger.Warn(ctx, "ai rerank failed, falling back to cross encoder", "error", err.Error())
		metrics.FallbackTotal.WithLabelValues("rerank").Inc()
	}

	if out, err := r.CrossEncoderRerank(ctx, segments, query); err == nil {
		return out
	} else {
		logger.Warn(ctx, "cross encoder rerank failed, falling back to simple", "error", err.Error())
		metrics.FallbackTotal.WithLabelValues("rerank").Inc()
	}

	return r.SimpleRerank(segments, query)
}

// RerankWithStrategy 指定方法重排,不走降级链。
func (r *Reranker) RerankWithStrategy(ctx context.Context, segments []Segment, query, method string) ([]Segment, error) {
	switch method {
	case rerankMethodAI:
		return r.AIRerank(ctx, segments, query)
	case rerankMethodCrossEncoder:
		return r.CrossEncoderRerank(ctx, segments, query)
	case rerankMethodSimple:
		return r.SimpleRerank(segments, query), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRerankStrategy, method)
	}
}

// AIRerank 一次 LLM 调用对全部候选打分。响应缺失的条目保留原分作为重排分。
func (r *Reranker) AIRerank(ctx context.Context, segments []Segment, query string) ([]Segment, error) {
	if r.llm == nil {
		return nil, fmt.Errorf("language model unavailable")
	}
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	start := time.Now()
	raw, err := r.llm.Complete(ctx, buildAIRerankPrompt(query, segments))
	if err != nil {
		metrics.RerankTotal.WithLabelValues(rerankMethodAI, "error").Inc()
		return nil, fmt.Errorf("ai rerank completion: %w", err)
	}
	scores, err := parseRerankScores(raw, len(segments))
	if err != nil {
		metrics.RerankTotal.WithLabelValues(rerankMethodAI, "error").Inc()
		return nil, fmt.Errorf("ai rerank parse: %w", err)
	}

	out := cloneSegments(segments)
	for i := range out {
		rerankScore, ok := scores[i+1]
		if !ok {
			rerankScore = out[i].Score
		}
		r.applyRerankScore(&out[i], rerankMethodAI, clamp01(rerankScore))
	}
	sortByScoreDesc(out)

	metrics.RerankTotal.WithLabelValues(rerankMethodAI, "success").Inc()
	metrics.RerankDuration.WithLabelValues(rerankMethodAI).Observe(time.Since(start).Seconds())
	return out, nil
}

// CrossEncoderRerank 逐条构造(查询,片段)对让 LLM 打分。任一条失败则整级失败。
func (r *Reranker) CrossEncoderRerank(ctx context.Context, segments []Segment, query string) ([]Segment, error) {
	if r.llm == nil {
		return nil, fmt.Errorf("language model unavailable")
	}
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	start := time.Now()
	out := cloneSegments(segments)
	for i := range out {
		raw, err := r.llm.Complete(ctx, buildPairScorePrompt(query, out[i]))
		if err != nil {
			metrics.RerankTotal.WithLabelValues(rerankMethodCrossEncoder, "error").Inc()
			return nil, fmt.Errorf("cross encoder completion: %w", err)
		}
		score, err := parseFloatScore(raw)
		if err != nil {
			metrics.RerankTotal.WithLabelValues(rerankMethodCrossEncoder, "error").Inc()
			return nil, fmt.Errorf("cross encoder parse: %w", err)
		}
		r.applyRerankScore(&out[i], rerankMethodCrossEncoder, clamp01(score))
	}
	sortByScoreDesc(out)

	metrics.RerankTotal.WithLabelValues(rerankMethodCrossEncoder, "success").Inc()
	metrics.RerankDuration.WithLabelValues(rerankMethodCrossEncoder).Observe(time.Since(start).Seconds())
	return out, nil
}

// SimpleRerank 终端兜底:规则关键词匹配打分,不依赖任何外部服务。
func (r *Reranker) SimpleRerank(segments []Segment, query string) []Segment {
	start := time.Now()
	keywords := ruleExtractKeywords(query)

	out := cloneSegments(segments)
	for i := range out {
		score := keywordScore(out[i].Content, keywords)
		r.applyRerankScore(&out[i], rerankMethodSimple, score)
	}
	sortByScoreDesc(out)

	metrics.RerankTotal.WithLabelValues(rerankMethodSimple, "success").Inc()
	metrics.RerankDuration.WithLabelValues(rerankMethodSimple).Observe(time.Since(start).Seconds())
	return out
}

// applyRerankScore 把重排分与原始分按权重混合,并印上重排元数据。
// originalScore 只写一次,多轮重排时保留最初的检索分。
func (r *Reranker) applyRerankScore(seg *Segment, method string, rerankScore float64) {
	if _, ok := seg.Meta(MetaOriginalScore); !ok {
		seg.SetMeta(MetaOriginalScore, formatScore(seg.Score))
	}
	blend := r.opts.RerankBlendWeight
	seg.Score = clamp01(seg.Score*(1-blend) + rerankScore*blend)
	seg.SetMeta(MetaReranked, "true")
	seg.SetMeta(MetaRerankMethod, method)
	seg.SetMeta(MetaRerankScore, formatScore(rerankScore))
	seg.SetMeta(MetaRerankTimestamp, time.Now().UTC().Format(time.RFC3339))
}
