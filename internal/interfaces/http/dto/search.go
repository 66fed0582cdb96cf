// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"kb-retrieval-api/internal/application/search"
)

// SearchRequest 检索请求
type SearchRequest struct {
	Query            string   `json:"query" binding:"required,max=5000"`
	KnowledgeBaseIDs []string `json:"knowledge_base_ids"`
	KnowledgeBaseID  string   `json:"knowledge_base_id"`
	Strategy         string   `json:"strategy,omitempty"`
	Limit            int      `json:"limit,omitempty"`
	Threshold        float64  `json:"threshold,omitempty"`

	// 关键词/混合检索选项
	Keywords       []string `json:"keywords,omitempty"`
	KeywordWeight  float64  `json:"keyword_weight,omitempty"`
	SemanticWeight float64  `json:"semantic_weight,omitempty"`
	EnableRerank   bool     `json:"enable_rerank,omitempty"`

	// 结构化检索选项
	Filters        map[string]string `json:"filters,omitempty"`
	RequiredFields []string          `json:"required_fields,omitempty"`
	SortBy         string            `json:"sort_by,omitempty"`
	SortOrder      string            `json:"sort_order,omitempty"`
}

// KBIDs 返回去重前的知识库列表；兼容单数字段。
func (r *SearchRequest) KBIDs() []string {
	if len(r.KnowledgeBaseIDs) > 0 {
		return r.KnowledgeBaseIDs
	}
	if r.KnowledgeBaseID != "" {
		return []string{r.KnowledgeBaseID}
	}
	return nil
}

// FirstKBID 返回首个知识库 ID。
func (r *SearchRequest) FirstKBID() string {
	ids := r.KBIDs()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// RerankRequest 重排请求
type RerankRequest struct {
	Query    string            `json:"query" binding:"required,max=5000"`
	Method   string            `json:"method,omitempty"`
	Segments []*SegmentPayload `json:"segments" binding:"required"`
}

// SegmentPayload 重排输入片段
type SegmentPayload struct {
	SegmentID  string  `json:"segment_id"`
	DocumentID string  `json:"document_id,omitempty"`
	Content    string  `json:"content" binding:"required"`
	Title      string  `json:"title,omitempty"`
	Score      float64 `json:"score"`
}

// SegmentResponse 检索结果片段
type SegmentResponse struct {
	SegmentID       string            `json:"segment_id"`
	DocumentID      string            `json:"document_id,omitempty"`
	KnowledgeBaseID string            `json:"knowledge_base_id,omitempty"`
	Content         string            `json:"content"`
	Title           string            `json:"title,omitempty"`
	Source          string            `json:"source,omitempty"`
	DocumentType    string            `json:"document_type,omitempty"`
	Position        int               `json:"position"`
	Length          int               `json:"length"`
	Score           float64           `json:"score"`
	Tags            []string          `json:"tags,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// SearchMeta 检索元数据
type SearchMeta struct {
	Strategy   string `json:"strategy,omitempty"`
	Intent     string `json:"intent,omitempty"`
	Total      int    `json:"total"`
	DurationMs int64  `json:"duration_ms"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Segments []*SegmentResponse `json:"segments"`
	Metadata *SearchMeta        `json:"metadata,omitempty"`
}

// ToSegmentResponses 转换应用层结果为响应片段
func ToSegmentResponses(segments []search.Segment) []*SegmentResponse {
	out := make([]*SegmentResponse, 0, len(segments))
	for i := range segments {
		seg := segments[i]
		out = append(out, &SegmentResponse{
			SegmentID:       seg.SegmentID,
			DocumentID:      seg.DocumentID,
			KnowledgeBaseID: seg.KnowledgeBaseID,
			Content:         seg.Content,
			Title:           seg.Title,
			Source:          seg.Source,
			DocumentType:    seg.DocumentType,
			Position:        seg.Position,
			Length:          seg.Length,
			Score:           seg.Score,
			Tags:            seg.Tags,
			Metadata:        seg.Metadata,
		})
	}
	return out
}

// ToSearchSegments 转换重排输入为应用层片段
func ToSearchSegments(payloads []*SegmentPayload) []search.Segment {
	out := make([]search.Segment, 0, len(payloads))
	for _, p := range payloads {
		if p == nil {
			continue
		}
		out = append(out, search.Segment{
			SegmentID:  p.SegmentID,
			DocumentID: p.DocumentID,
			Content:    p.Content,
			Title:      p.Title,
			Length:     len(p.Content),
			Score:      p.Score,
		})
	}
	return out
}
