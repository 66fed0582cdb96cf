package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSegments(t *testing.T) {
	ctx := context.Background()

	t.Run("missing knowledge base id", func(t *testing.T) {
		idx := NewIndexer(&stubEmbedder{}, &stubVectorStore{}, 0)
		_, err := idx.IndexSegments(ctx, "  ", []IndexSegmentInput{{Content: "内容"}})
		require.Error(t, err)
	})

	t.Run("empty content is skipped", func(t *testing.T) {
		store := &stubVectorStore{}
		idx := NewIndexer(&stubEmbedder{}, store, 0)

		n, err := idx.IndexSegments(ctx, "kb-1", []IndexSegmentInput{
			{SegmentID: "seg-1", DocumentID: "doc-1", Content: "有效内容"},
			{SegmentID: "seg-2", DocumentID: "doc-1", Content: "   "},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.Len(t, store.inserted, 1)
		assert.Equal(t, "seg-1", store.inserted[0].ID)
		assert.True(t, store.ensureCalled)
	})

	t.Run("all empty inputs index nothing", func(t *testing.T) {
		store := &stubVectorStore{}
		idx := NewIndexer(&stubEmbedder{}, store, 0)

		n, err := idx.IndexSegments(ctx, "kb-1", []IndexSegmentInput{{Content: ""}})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.False(t, store.ensureCalled)
	})

	t.Run("blank segment id gets generated", func(t *testing.T) {
		store := &stubVectorStore{}
		idx := NewIndexer(&stubEmbedder{}, store, 0)

		_, err := idx.IndexSegments(ctx, "kb-1", []IndexSegmentInput{
			{DocumentID: "doc-1", Content: "内容"},
		})
		require.NoError(t, err)
		require.Len(t, store.inserted, 1)
		assert.NotEmpty(t, store.inserted[0].ID)
	})

	t.Run("batches respect batch size", func(t *testing.T) {
		emb := &stubEmbedder{}
		store := &stubVectorStore{}
		idx := NewIndexer(emb, store, 2)

		inputs := make([]IndexSegmentInput, 5)
		for i := range inputs {
			inputs[i] = IndexSegmentInput{DocumentID: "doc-1", Content: fmt.Sprintf("片段 %d", i)}
		}
		n, err := idx.IndexSegments(ctx, "kb-1", inputs)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		// 5 条按批大小 2 分三批向量化。
		assert.Equal(t, 3, emb.callCount())
		assert.Len(t, store.inserted, 5)
	})

	t.Run("embed failure stops with partial count", func(t *testing.T) {
		emb := &stubEmbedder{err: fmt.Errorf("embedding down")}
		idx := NewIndexer(emb, &stubVectorStore{}, 0)

		n, err := idx.IndexSegments(ctx, "kb-1", []IndexSegmentInput{{Content: "内容"}})
		require.Error(t, err)
		assert.Zero(t, n)
	})
}

func TestDeleteDocument(t *testing.T) {
	store := &stubVectorStore{}
	idx := NewIndexer(&stubEmbedder{}, store, 0)

	require.NoError(t, idx.DeleteDocument(context.Background(), "kb-1", "doc-1"))
	assert.Equal(t, []string{"doc-1"}, store.deletedDocs)

	require.Error(t, idx.DeleteDocument(context.Background(), "kb-1", "  "))
}
