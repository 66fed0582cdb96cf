// Package dto 提供 HTTP 层数据传输对象
package dto

// IndexSegmentsRequest 片段入库请求
type IndexSegmentsRequest struct {
	KnowledgeBaseID string          `json:"knowledge_base_id" binding:"required"`
	Segments        []*IndexSegment `json:"segments" binding:"required"`
}

// IndexSegment 待入库片段
type IndexSegment struct {
	SegmentID    string   `json:"segment_id,omitempty"`
	DocumentID   string   `json:"document_id" binding:"required"`
	Content      string   `json:"content" binding:"required"`
	Title        string   `json:"title,omitempty"`
	Source       string   `json:"source,omitempty"`
	DocumentType string   `json:"document_type,omitempty"`
	Position     int      `json:"position"`
	Tags         []string `json:"tags,omitempty"`
}

// IndexSegmentsResponse 片段入库响应
type IndexSegmentsResponse struct {
	Indexed int `json:"indexed"`
}

// DeleteDocumentRequest 文档删除请求
type DeleteDocumentRequest struct {
	KnowledgeBaseID string `json:"knowledge_base_id" binding:"required"`
}
