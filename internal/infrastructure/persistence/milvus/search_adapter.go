package milvus

import (
	"context"

	"kb-retrieval-api/internal/application/search"
)

// SearchVectorStore 把向量仓储适配为检索应用层的 VectorStore 端口。
// 元信息（标题/来源/标签）编码在 text_content 前缀里，读出时还原。
type SearchVectorStore struct {
	repo *Repository
}

func NewSearchVectorStore(repo *Repository) *SearchVectorStore {
	return &SearchVectorStore{repo: repo}
}

var _ search.VectorStore = (*SearchVectorStore)(nil)

func (s *SearchVectorStore) EnsureKnowledgeSegmentsCollection(ctx context.Context) error {
	if s == nil || s.repo == nil {
		return search.ErrVectorDisabled
	}
	return s.repo.EnsureKnowledgeSegmentsCollection(ctx)
}

func (s *SearchVectorStore) SearchSegments(ctx context.Context, params *search.VectorSearchParams) ([]*search.VectorSearchResult, error) {
	if s == nil || s.repo == nil {
		return nil, search.ErrVectorDisabled
	}
	if params == nil {
		return nil, nil
	}

	out, err := s.repo.SearchSegments(ctx, &SearchParams{
		KnowledgeBaseID: params.KnowledgeBaseID,
		QueryVector:     params.QueryVector,
		TopK:            params.TopK,
		DocumentTypes:   params.DocumentTypes,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*search.VectorSearchResult, 0, len(out))
	for i := range out {
		v := out[i]
		if v == nil {
			continue
		}
		meta, text := decodeSegmentText(v.TextContent)
		results = append(results, &search.VectorSearchResult{
			ID:           v.ID,
			DocumentID:   v.DocumentID,
			Title:        meta.Title,
			Source:       meta.Source,
			DocumentType: v.DocumentType,
			Position:     v.Position,
			Tags:         meta.Tags,
			TextContent:  text,
			Score:        1 - v.Score, // 将“距离”转换为更直观的相似度（COSINE: distance=1-cos）
		})
	}
	return results, nil
}

func (s *SearchVectorStore) InsertSegments(ctx context.Context, knowledgeBaseID string, segments []*search.VectorSegment) error {
	if s == nil || s.repo == nil {
		return search.ErrVectorDisabled
	}
	if len(segments) == 0 {
		return nil
	}

	out := make([]*KnowledgeSegment, 0, len(segments))
	for i := range segments {
		seg := segments[i]
		if seg == nil {
			continue
		}
		text := encodeSegmentText(SegmentMeta{
			Title:  seg.Title,
			Source: seg.Source,
			Tags:   seg.Tags,
		}, seg.TextContent)
		out = append(out, &KnowledgeSegment{
			ID:              seg.ID,
			Vector:          seg.Vector,
			KnowledgeBaseID: knowledgeBaseID,
			DocumentID:      seg.DocumentID,
			DocumentType:    seg.DocumentType,
			Position:        seg.Position,
			TextContent:     text,
		})
	}
	return s.repo.InsertSegments(ctx, knowledgeBaseID, out)
}

func (s *SearchVectorStore) DeleteSegmentsByDocument(ctx context.Context, knowledgeBaseID, documentID string) error {
	if s == nil || s.repo == nil {
		return search.ErrVectorDisabled
	}
	return s.repo.DeleteSegmentsByDocument(ctx, knowledgeBaseID, documentID)
}
