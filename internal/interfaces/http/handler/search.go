// Package handler 提供 HTTP 请求处理器
package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"kb-retrieval-api/internal/application/search"
	"kb-retrieval-api/internal/interfaces/http/dto"
	"kb-retrieval-api/pkg/logger"
	"kb-retrieval-api/pkg/metrics"
)

// SearchHandler 检索处理器
type SearchHandler struct {
	semantic    *search.SemanticSearcher
	lexical     *search.LexicalSearcher
	hybrid      *search.HybridSearcher
	structured  *search.StructuredSearcher
	intelligent *search.IntelligentSearcher
	reranker    *search.Reranker

	defaultLimit int
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(
	semantic *search.SemanticSearcher,
	lexical *search.LexicalSearcher,
	hybrid *search.HybridSearcher,
	structured *search.StructuredSearcher,
	intelligent *search.IntelligentSearcher,
	reranker *search.Reranker,
	defaultLimit int,
) *SearchHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &SearchHandler{
		semantic:     semantic,
		lexical:      lexical,
		hybrid:       hybrid,
		structured:   structured,
		intelligent:  intelligent,
		reranker:     reranker,
		defaultLimit: defaultLimit,
	}
}

// Search 智能检索
// @Summary 智能检索
// @Description 意图识别选择策略，跨知识库检索并合并结果
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/search [post]
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	start := time.Now()

	segments, err := h.intelligent.Search(ctx, search.IntelligentParams{
		Query:            req.Query,
		KnowledgeBaseIDs: req.KBIDs(),
		StrategyHint:     req.Strategy,
		Limit:            h.limitOrDefault(req.Limit),
		Threshold:        req.Threshold,
	})
	h.respond(c, "intelligent", segments, err, start)
}

// SemanticSearch 语义检索
// @Summary 语义检索
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Router /v1/search/semantic [post]
func (h *SearchHandler) SemanticSearch(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	start := time.Now()

	segments, err := h.semantic.SemanticSearch(ctx, req.Query, req.FirstKBID(), "",
		h.limitOrDefault(req.Limit), req.Threshold, req.EnableRerank)
	h.respond(c, "semantic", segments, err, start)
}

// KeywordSearch 关键词检索
// @Summary 关键词检索
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Router /v1/search/keyword [post]
func (h *SearchHandler) KeywordSearch(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	start := time.Now()

	segments, err := h.lexical.Search(ctx, req.Query, req.Keywords, req.FirstKBID(), h.limitOrDefault(req.Limit))
	h.respond(c, "keyword", segments, err, start)
}

// HybridSearch 混合检索
// @Summary 混合检索
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Router /v1/search/hybrid [post]
func (h *SearchHandler) HybridSearch(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	start := time.Now()

	segments, err := h.hybrid.Search(ctx, search.HybridParams{
		Query:           req.Query,
		KnowledgeBaseID: req.FirstKBID(),
		Keywords:        req.Keywords,
		KeywordWeight:   req.KeywordWeight,
		SemanticWeight:  req.SemanticWeight,
		EnableRerank:    req.EnableRerank,
		Limit:           h.limitOrDefault(req.Limit),
		Threshold:       req.Threshold,
	})
	h.respond(c, "hybrid", segments, err, start)
}

// StructuredSearch 结构化检索
// @Summary 结构化检索
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Router /v1/search/structured [post]
func (h *SearchHandler) StructuredSearch(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	start := time.Now()

	segments, err := h.structured.Search(ctx, search.StructuredParams{
		Query:           req.Query,
		KnowledgeBaseID: req.FirstKBID(),
		Filters:         req.Filters,
		RequiredFields:  req.RequiredFields,
		SortBy:          req.SortBy,
		SortOrder:       req.SortOrder,
		Limit:           h.limitOrDefault(req.Limit),
		Threshold:       req.Threshold,
	})
	h.respond(c, "structured", segments, err, start)
}

// Rerank 重排
// @Summary 对给定片段重排
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.RerankRequest true "重排请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Router /v1/rerank [post]
func (h *SearchHandler) Rerank(c *gin.Context) {
	var req dto.RerankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	segments := dto.ToSearchSegments(req.Segments)

	if req.Method == "" {
		out := h.reranker.Rerank(ctx, segments, req.Query)
		dto.Success(c, dto.SearchResponse{
			Segments: dto.ToSegmentResponses(out),
			Metadata: &dto.SearchMeta{Total: len(out)},
		})
		return
	}

	out, err := h.reranker.RerankWithStrategy(ctx, segments, req.Query, req.Method)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	dto.Success(c, dto.SearchResponse{
		Segments: dto.ToSegmentResponses(out),
		Metadata: &dto.SearchMeta{Total: len(out)},
	})
}

func (h *SearchHandler) limitOrDefault(limit int) int {
	if limit == 0 {
		return h.defaultLimit
	}
	return limit
}

// respond 统一出口：校验类错误 400，其余 500；顺带记录策略级指标。
func (h *SearchHandler) respond(c *gin.Context, strategy string, segments []search.Segment, err error, start time.Time) {
	duration := time.Since(start)
	metrics.SearchDuration.WithLabelValues(strategy).Observe(duration.Seconds())

	if err != nil {
		metrics.SearchTotal.WithLabelValues(strategy, "error").Inc()
		if search.IsInvalidInput(err) {
			dto.BadRequest(c, err.Error())
			return
		}
		logger.Error(c.Request.Context(), "search failed", err, "strategy", strategy)
		dto.InternalError(c, "search failed")
		return
	}

	metrics.SearchTotal.WithLabelValues(strategy, "success").Inc()
	metrics.SearchResultCount.WithLabelValues(strategy).Observe(float64(len(segments)))

	meta := &dto.SearchMeta{
		Strategy:   strategy,
		Total:      len(segments),
		DurationMs: duration.Milliseconds(),
	}
	if len(segments) > 0 {
		if intent, ok := segments[0].Meta(search.MetaIntent); ok {
			meta.Intent = intent
		}
		if applied, ok := segments[0].Meta(search.MetaStrategy); ok {
			meta.Strategy = applied
		}
	}

	dto.Success(c, dto.SearchResponse{
		Segments: dto.ToSegmentResponses(segments),
		Metadata: meta,
	})
}
