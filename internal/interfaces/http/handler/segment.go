// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"kb-retrieval-api/internal/application/search"
	"kb-retrieval-api/internal/interfaces/http/dto"
	"kb-retrieval-api/pkg/logger"
)

// SegmentHandler 片段入库处理器
type SegmentHandler struct {
	indexer *search.Indexer
}

// NewSegmentHandler 创建片段入库处理器
func NewSegmentHandler(indexer *search.Indexer) *SegmentHandler {
	return &SegmentHandler{indexer: indexer}
}

// Index 片段入库
// @Summary 批量写入知识库片段
// @Tags Segment
// @Accept json
// @Produce json
// @Param body body dto.IndexSegmentsRequest true "入库请求"
// @Success 201 {object} dto.Response[dto.IndexSegmentsResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/segments [post]
func (h *SegmentHandler) Index(c *gin.Context) {
	var req dto.IndexSegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	inputs := make([]search.IndexSegmentInput, 0, len(req.Segments))
	for _, seg := range req.Segments {
		if seg == nil {
			continue
		}
		inputs = append(inputs, search.IndexSegmentInput{
			SegmentID:    seg.SegmentID,
			DocumentID:   seg.DocumentID,
			Content:      seg.Content,
			Title:        seg.Title,
			Source:       seg.Source,
			DocumentType: seg.DocumentType,
			Position:     seg.Position,
			Tags:         seg.Tags,
		})
	}

	ctx := c.Request.Context()
	indexed, err := h.indexer.IndexSegments(ctx, req.KnowledgeBaseID, inputs)
	if err != nil {
		logger.Error(ctx, "segment indexing failed", err,
			"knowledge_base_id", req.KnowledgeBaseID,
		)
		dto.InternalError(c, "segment indexing failed")
		return
	}

	dto.Created(c, dto.IndexSegmentsResponse{Indexed: indexed})
}

// DeleteDocument 删除文档片段
// @Summary 删除某文档在知识库下的全部片段
// @Tags Segment
// @Accept json
// @Produce json
// @Param documentId path string true "文档 ID"
// @Param body body dto.DeleteDocumentRequest true "删除请求"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/segments/{documentId} [delete]
func (h *SegmentHandler) DeleteDocument(c *gin.Context) {
	documentID := c.Param("documentId")
	if documentID == "" {
		dto.BadRequest(c, "document id is required")
		return
	}

	var req dto.DeleteDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.indexer.DeleteDocument(ctx, req.KnowledgeBaseID, documentID); err != nil {
		logger.Error(ctx, "document deletion failed", err,
			"knowledge_base_id", req.KnowledgeBaseID,
			"document_id", documentID,
		)
		dto.InternalError(c, "document deletion failed")
		return
	}

	dto.NoContent(c)
}
