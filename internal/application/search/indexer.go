package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"

	"kb-retrieval-api/pkg/logger"
)

// IndexSegmentInput 待入库的片段。SegmentID 为空时自动生成。
type IndexSegmentInput struct {
	SegmentID    string
	DocumentID   string
	Content      string
	Title        string
	Source       string
	DocumentType string
	Position     int
	Tags         []string
}

// Indexer 片段索引器:批量向量化后写入向量库。
type Indexer struct {
	embedder  embedding.Embedder
	vector    VectorStore
	batchSize int
}

func NewIndexer(embedder embedding.Embedder, vector VectorStore, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Indexer{embedder: embedder, vector: vector, batchSize: batchSize}
}

// IndexSegments 分批向量化并写入。返回成功写入的片段数。
func (idx *Indexer) IndexSegments(ctx context.Context, knowledgeBaseID string, inputs []IndexSegmentInput) (int, error) {
	if idx.embedder == nil || idx.vector == nil {
		return 0, ErrVectorDisabled
	}
	if strings.TrimSpace(knowledgeBaseID) == "" {
		return 0, fmt.Errorf("knowledge base id is required")
	}

	valid := make([]IndexSegmentInput, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in.Content) == "" {
			continue
		}
		if strings.TrimSpace(in.SegmentID) == "" {
			in.SegmentID = uuid.New().String()
		}
		valid = append(valid, in)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	if err := idx.vector.EnsureKnowledgeSegmentsCollection(ctx); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}

	indexed := 0
	for start := 0; start < len(valid); start += idx.batchSize {
		end := min(start+idx.batchSize, len(valid))
		batch := valid[start:end]

		texts := make([]string, 0, len(batch))
		for _, in := range batch {
			texts = append(texts, in.Content)
		}
		vectors, err := idx.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return indexed, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch))
		}

		segments := make([]*VectorSegment, 0, len(batch))
		for i, in := range batch {
			vec := make([]float32, 0, len(vectors[i]))
			for _, x := range vectors[i] {
				vec = append(vec, float32(x))
			}
			segments = append(segments, &VectorSegment{
				ID:           in.SegmentID,
				DocumentID:   in.DocumentID,
				Title:        in.Title,
				Source:       in.Source,
				DocumentType: in.DocumentType,
				Position:     int64(in.Position),
				Tags:         in.Tags,
				TextContent:  in.Content,
				Vector:       vec,
			})
		}
		if err := idx.vector.InsertSegments(ctx, knowledgeBaseID, segments); err != nil {
			return indexed, fmt.Errorf("insert batch: %w", err)
		}
		indexed += len(batch)
	}

	logger.Info(ctx, "segments indexed",
		"knowledge_base_id", knowledgeBaseID,
		"count", indexed,
	)
	return indexed, nil
}

// DeleteDocument 删除某文档在指定知识库下的全部片段。
func (idx *Indexer) DeleteDocument(ctx context.Context, knowledgeBaseID, documentID string) error {
	if idx.vector == nil {
		return ErrVectorDisabled
	}
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("document id is required")
	}
	return idx.vector.DeleteSegmentsByDocument(ctx, knowledgeBaseID, documentID)
}
