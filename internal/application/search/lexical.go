package search

import (
	"context"
	"strings"

	"kb-retrieval-api/pkg/logger"
	"kb-retrieval-api/pkg/metrics"
)

// LexicalSearcher 关键词检索：语义召回候选池 + 关键词匹配分加权重排。
// 没有独立的倒排索引，召回依赖语义搜索，关键词只影响排序。
type LexicalSearcher struct {
	semantic *SemanticSearcher
	llm      LanguageModel
	opts     Options
}

func NewLexicalSearcher(semantic *SemanticSearcher, llm LanguageModel, opts Options) *LexicalSearcher {
	return &LexicalSearcher{
		semantic: semantic,
		llm:      llm,
		opts:     opts.withDefaults(),
	}
}

// Search 关键词检索。keywords 为空时先做关键词提取。
func (s *LexicalSearcher) Search(ctx context.Context, query string, keywords []string, knowledgeBaseID string, limit int) ([]Segment, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	limit = s.opts.capLimit(limit)

	keywords = normalizeKeywords(keywords)
	if len(keywords) == 0 {
		keywords = s.ExtractKeywords(ctx, query)
	}

	// 候选池阈值放宽到一半，避免语义分偏低但关键词命中的片段被提前过滤。
	pool, err := s.semantic.SemanticSearch(ctx, query, knowledgeBaseID, s.opts.EmbeddingModel, limit*2, s.opts.DefaultThreshold/2, false)
	if err != nil {
		return nil, err
	}

	for i := range pool {
		kwScore := keywordScore(pool[i].Content, keywords)
		blended := pool[i].Score*(1-s.opts.KeywordBoost) + kwScore*s.opts.KeywordBoost
		pool[i].Score = clamp01(blended)
		pool[i].SetMeta(MetaSearchType, "keyword")
		pool[i].SetMeta(MetaKeywordScore, formatScore(kwScore))
		if matched := matchedKeywords(pool[i].Content, keywords); len(matched) > 0 {
			pool[i].SetMeta(MetaMatchedKeywords, strings.Join(matched, ","))
		}
	}

	sortByScoreDesc(pool)
	return truncateSegments(pool, limit), nil
}

// ExtractKeywords 关键词提取：优先走 LLM，失败时回退到规则分词。永不失败。
func (s *LexicalSearcher) ExtractKeywords(ctx context.Context, query string) []string {
	if s.llm != nil {
		raw, err := s.llm.Complete(ctx, buildKeywordPrompt(query))
		if err == nil {
			if kws := parseKeywordList(raw); len(kws) > 0 {
				return kws
			}
		} else {
			logger.Warn(ctx, "llm keyword extraction failed, using rule-based fallback",
				"query", truncateRunes(query, 100),
				"error", err.Error(),
			)
		}
		metrics.FallbackTotal.WithLabelValues("keyword_extract").Inc()
	}
	return ruleExtractKeywords(query)
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
