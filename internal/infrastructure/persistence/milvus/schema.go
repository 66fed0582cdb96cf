// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"encoding/json"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionKnowledgeSegments 知识库片段集合
	CollectionKnowledgeSegments = "knowledge_segments"

	// VectorDimension 向量维度
	VectorDimension = 1024
)

// KnowledgeSegmentsSchema 知识库片段 Collection Schema
func KnowledgeSegmentsSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionKnowledgeSegments,
		Description:    "Knowledge base content segments for semantic search",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "1024",
				},
			},
			{
				Name:     "kb_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "document_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "position",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "text_content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// KnowledgeSegment 知识库片段数据结构
type KnowledgeSegment struct {
	ID              string    `json:"id"`
	Vector          []float32 `json:"vector"`
	KnowledgeBaseID string    `json:"kb_id"`
	DocumentID      string    `json:"document_id"`
	DocumentType    string    `json:"document_type"`
	Position        int64     `json:"position"`
	TextContent     string    `json:"text_content"`
}

// PartitionName 生成分区名称
func PartitionName(knowledgeBaseID string) string {
	return "kb_" + knowledgeBaseID
}

const segmentMetaPrefix = "@@meta:"

// SegmentMeta 是写入到 Milvus text_content 的结构化元信息。
// 约定：仅用于读写自家写入的段落；不存在时应安全降级。
type SegmentMeta struct {
	Title  string   `json:"title,omitempty"`
	Source string   `json:"source,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

func encodeSegmentText(meta SegmentMeta, text string) string {
	b, _ := json.Marshal(meta)
	var sb strings.Builder
	sb.Grow(len(segmentMetaPrefix) + len(b) + 1 + len(text))
	sb.WriteString(segmentMetaPrefix)
	sb.Write(b)
	sb.WriteByte('\n')
	sb.WriteString(text)
	return sb.String()
}

func decodeSegmentText(textContent string) (SegmentMeta, string) {
	raw := strings.TrimSpace(textContent)
	if !strings.HasPrefix(raw, segmentMetaPrefix) {
		return SegmentMeta{}, raw
	}
	rest := strings.TrimPrefix(raw, segmentMetaPrefix)
	line, body, ok := strings.Cut(rest, "\n")
	if !ok {
		return SegmentMeta{}, raw
	}
	var meta SegmentMeta
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &meta); err != nil {
		return SegmentMeta{}, strings.TrimSpace(body)
	}
	return meta, strings.TrimSpace(body)
}
