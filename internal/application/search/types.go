// Package search 实现多策略知识库检索与排序引擎。
package search

import (
	"sort"
	"strconv"
)

// 片段 Metadata 中的约定键。
const (
	MetaSearchType      = "searchType"
	MetaEmbeddingModel  = "embeddingModel"
	MetaFallback        = "fallback"
	MetaFallbackStage   = "fallbackStage"
	MetaDegraded        = "degraded"
	MetaFusion          = "fusion"
	MetaKeywordScore    = "keywordScore"
	MetaMatchedKeywords = "matchedKeywords"
	MetaReranked        = "reranked"
	MetaRerankMethod    = "rerankMethod"
	MetaRerankScore     = "rerankScore"
	MetaRerankTimestamp = "rerankTimestamp"
	MetaOriginalScore   = "originalScore"
	MetaIntent          = "intent"
	MetaStrategy        = "strategy"
)

// Segment 检索结果的最小单元。
// 生命周期仅限单次检索调用：各阶段返回带新分数的副本，不原地修改调用方持有的切片。
type Segment struct {
	SegmentID       string
	DocumentID      string
	KnowledgeBaseID string

	Content      string
	Title        string
	Source       string
	DocumentType string
	Position     int
	Length       int

	Score    float64
	Tags     []string
	Metadata map[string]string
}

// Clone 深拷贝片段（含 Tags 与 Metadata）。
func (s Segment) Clone() Segment {
	out := s
	if s.Tags != nil {
		out.Tags = make([]string, len(s.Tags))
		copy(out.Tags, s.Tags)
	}
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// SetMeta 写入 Metadata，必要时初始化。
func (s *Segment) SetMeta(key, value string) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string, 4)
	}
	s.Metadata[key] = value
}

// Meta 读取 Metadata。
func (s Segment) Meta(key string) (string, bool) {
	if s.Metadata == nil {
		return "", false
	}
	v, ok := s.Metadata[key]
	return v, ok
}

// HasTag 判断片段是否带有指定标签。
func (s Segment) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func cloneSegments(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		out = append(out, s.Clone())
	}
	return out
}

// sortByScoreDesc 按分数降序稳定排序（同分保持原有相对顺序）。
func sortByScoreDesc(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Score > segments[j].Score
	})
}

// filterByThreshold 过滤低于阈值的片段。threshold 为 0 时不过滤。
func filterByThreshold(segments []Segment, threshold float64) []Segment {
	if threshold <= 0 {
		return segments
	}
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Score >= threshold {
			out = append(out, seg)
		}
	}
	return out
}

func truncateSegments(segments []Segment, limit int) []Segment {
	if limit > 0 && len(segments) > limit {
		return segments[:limit]
	}
	return segments
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
