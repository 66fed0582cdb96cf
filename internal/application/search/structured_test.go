package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesFilters(t *testing.T) {
	seg := Segment{
		SegmentID:    "seg-1",
		DocumentType: "markdown",
		Source:       "docs/guide/setup.md",
		Score:        0.75,
		Length:       120,
		Tags:         []string{"安装", "入门"},
		Metadata:     map[string]string{"lang": "zh"},
	}

	t.Run("documentType exact match", func(t *testing.T) {
		assert.True(t, matchesFilters(seg, map[string]string{"documentType": "markdown"}))
		assert.False(t, matchesFilters(seg, map[string]string{"documentType": "pdf"}))
	})

	t.Run("score range", func(t *testing.T) {
		assert.True(t, matchesFilters(seg, map[string]string{"minScore": "0.5", "maxScore": "0.8"}))
		assert.False(t, matchesFilters(seg, map[string]string{"minScore": "0.8"}))
	})

	t.Run("unparsable numeric filter is ignored", func(t *testing.T) {
		assert.True(t, matchesFilters(seg, map[string]string{"minScore": "很高"}))
		assert.True(t, matchesFilters(seg, map[string]string{"minLength": "abc"}))
	})

	t.Run("length range", func(t *testing.T) {
		assert.True(t, matchesFilters(seg, map[string]string{"minLength": "100", "maxLength": "200"}))
		assert.False(t, matchesFilters(seg, map[string]string{"maxLength": "100"}))
	})

	t.Run("tags require all", func(t *testing.T) {
		assert.True(t, matchesFilters(seg, map[string]string{"tags": "安装, 入门"}))
		assert.False(t, matchesFilters(seg, map[string]string{"tags": "安装, 进阶"}))
	})

	t.Run("source substring", func(t *testing.T) {
		assert.True(t, matchesFilters(seg, map[string]string{"source": "guide"}))
		assert.False(t, matchesFilters(seg, map[string]string{"source": "api"}))
	})

	t.Run("unknown key matches metadata exactly", func(t *testing.T) {
		assert.True(t, matchesFilters(seg, map[string]string{"lang": "zh"}))
		assert.False(t, matchesFilters(seg, map[string]string{"lang": "en"}))
		assert.False(t, matchesFilters(seg, map[string]string{"missing": "x"}))
	})

	t.Run("conditions combine with AND", func(t *testing.T) {
		assert.False(t, matchesFilters(seg, map[string]string{
			"documentType": "markdown",
			"source":       "api",
		}))
	})
}

func TestValidateRequiredFields(t *testing.T) {
	full := Segment{SegmentID: "full", Title: "标题", Source: "来源", Content: "正文", Metadata: map[string]string{"author": "张三"}}
	noTitle := Segment{SegmentID: "no-title", Source: "来源", Content: "正文"}

	out := validateRequiredFields([]Segment{full, noTitle}, []string{"title"})
	require.Len(t, out, 1)
	assert.Equal(t, "full", out[0].SegmentID)

	out = validateRequiredFields([]Segment{full, noTitle}, []string{"author"})
	require.Len(t, out, 1)
	assert.Equal(t, "full", out[0].SegmentID)

	out = validateRequiredFields([]Segment{full, noTitle}, nil)
	assert.Len(t, out, 2)
}

func TestSortDocuments(t *testing.T) {
	t.Run("position ascending", func(t *testing.T) {
		segs := []Segment{{SegmentID: "c", Position: 3}, {SegmentID: "a", Position: 1}, {SegmentID: "b", Position: 2}}
		sortDocuments(segs, "position", "asc")
		assert.Equal(t, "a", segs[0].SegmentID)
		assert.Equal(t, "c", segs[2].SegmentID)
	})

	t.Run("position descending by default", func(t *testing.T) {
		segs := []Segment{{SegmentID: "a", Position: 1}, {SegmentID: "c", Position: 3}}
		sortDocuments(segs, "position", "")
		assert.Equal(t, "c", segs[0].SegmentID)
	})

	t.Run("missing sort key goes last even descending", func(t *testing.T) {
		segs := []Segment{
			{SegmentID: "untitled"},
			{SegmentID: "titled", Title: "架构说明"},
		}
		sortDocuments(segs, "title", "desc")
		assert.Equal(t, "titled", segs[0].SegmentID)
		assert.Equal(t, "untitled", segs[1].SegmentID)
	})

	t.Run("score ascending reverses default order", func(t *testing.T) {
		segs := []Segment{{SegmentID: "hi", Score: 0.9}, {SegmentID: "lo", Score: 0.2}}
		sortDocuments(segs, "score", "asc")
		assert.Equal(t, "lo", segs[0].SegmentID)
	})

	t.Run("numeric keys compare numerically", func(t *testing.T) {
		segs := []Segment{{SegmentID: "a", Length: 9}, {SegmentID: "b", Length: 100}}
		sortDocuments(segs, "length", "desc")
		assert.Equal(t, "b", segs[0].SegmentID)
	})
}

func TestStructuredSearch(t *testing.T) {
	results := []*VectorSearchResult{
		{ID: "seg-1", DocumentID: "doc-1", DocumentType: "markdown", Position: 2, TextContent: "正文一", Score: 0.9},
		{ID: "seg-2", DocumentID: "doc-1", DocumentType: "pdf", Position: 1, TextContent: "正文二", Score: 0.8},
		{ID: "seg-3", DocumentID: "doc-2", DocumentType: "markdown", Position: 0, TextContent: "正文三", Score: 0.7},
	}
	semantic := NewSemanticSearcher(&stubEmbedder{}, &stubVectorStore{results: results}, nil, nil, testOptions())
	s := NewStructuredSearcher(semantic, testOptions())

	t.Run("invalid input", func(t *testing.T) {
		_, err := s.Search(context.Background(), StructuredParams{Query: "", Limit: 10})
		require.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("filter then sort then truncate", func(t *testing.T) {
		segments, err := s.Search(context.Background(), StructuredParams{
			Query:           "结构化查询",
			KnowledgeBaseID: "kb-1",
			Filters:         map[string]string{"documentType": "markdown"},
			SortBy:          "position",
			SortOrder:       "asc",
			Limit:           10,
		})
		require.NoError(t, err)
		require.Len(t, segments, 2)

		assert.Equal(t, "seg-3", segments[0].SegmentID)
		assert.Equal(t, "seg-1", segments[1].SegmentID)
		st, _ := segments[0].Meta(MetaSearchType)
		assert.Equal(t, "structured", st)
	})
}

func TestApplyFilters_Idempotent(t *testing.T) {
	segments := []Segment{
		{SegmentID: "seg-1", DocumentType: "markdown", Score: 0.9, Length: 120},
		{SegmentID: "seg-2", DocumentType: "pdf", Score: 0.7, Length: 80},
		{SegmentID: "seg-3", DocumentType: "markdown", Score: 0.3, Length: 200},
	}
	filters := map[string]string{"documentType": "markdown", "minScore": "0.5"}

	once := applyFilters(segments, filters)
	twice := applyFilters(once, filters)

	require.Len(t, once, 1)
	assert.Equal(t, once, twice)
}
