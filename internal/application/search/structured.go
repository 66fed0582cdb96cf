package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// StructuredParams 结构化检索参数。Filters 按字段名匹配,未识别的键按元数据精确匹配。
type StructuredParams struct {
	Query           string
	KnowledgeBaseID string
	Filters         map[string]string
	RequiredFields  []string
	SortBy          string
	SortOrder       string
	Limit           int
	Threshold       float64
}

// StructuredSearcher 结构化检索:语义召回候选池后按过滤条件收窄,再按指定字段排序。
type StructuredSearcher struct {
	semantic *SemanticSearcher
	opts     Options
}

func NewStructuredSearcher(semantic *SemanticSearcher, opts Options) *StructuredSearcher {
	return &StructuredSearcher{semantic: semantic, opts: opts.withDefaults()}
}

// Search 结构化检索主入口。过滤条件之间为 AND 关系,截断放在排序之后。
func (s *StructuredSearcher) Search(ctx context.Context, params StructuredParams) ([]Segment, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if params.Limit <= 0 {
		return nil, ErrInvalidLimit
	}
	limit := s.opts.capLimit(params.Limit)

	pool, err := s.semantic.SemanticSearch(ctx, query, params.KnowledgeBaseID, s.opts.EmbeddingModel, limit*2, params.Threshold, false)
	if err != nil {
		return nil, err
	}

	filtered := applyFilters(pool, params.Filters)
	filtered = validateRequiredFields(filtered, params.RequiredFields)

	for i := range filtered {
		filtered[i].SetMeta(MetaSearchType, "structured")
	}

	sortDocuments(filtered, params.SortBy, params.SortOrder)
	return truncateSegments(filtered, limit), nil
}

// applyFilters 过滤候选集。数值条件解析失败时忽略该条件而非报错。
func applyFilters(segments []Segment, filters map[string]string) []Segment {
	if len(filters) == 0 {
		return segments
	}
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if matchesFilters(seg, filters) {
			out = append(out, seg)
		}
	}
	return out
}

func matchesFilters(seg Segment, filters map[string]string) bool {
	for key, value := range filters {
		switch key {
		case "documentType":
			if seg.DocumentType != value {
				return false
			}
		case "minScore":
			if min, err := strconv.ParseFloat(value, 64); err == nil && seg.Score < min {
				return false
			}
		case "maxScore":
			if max, err := strconv.ParseFloat(value, 64); err == nil && seg.Score > max {
				return false
			}
		case "minLength":
			if min, err := strconv.Atoi(value); err == nil && seg.Length < min {
				return false
			}
		case "maxLength":
			if max, err := strconv.Atoi(value); err == nil && seg.Length > max {
				return false
			}
		case "tags":
			for _, tag := range strings.Split(value, ",") {
				if tag = strings.TrimSpace(tag); tag != "" && !seg.HasTag(tag) {
					return false
				}
			}
		case "source":
			if !strings.Contains(seg.Source, value) {
				return false
			}
		default:
			if meta, ok := seg.Meta(key); !ok || meta != value {
				return false
			}
		}
	}
	return true
}

// validateRequiredFields 剔除必填字段缺失的片段。固定字段按结构体取值,其余按元数据非空校验。
func validateRequiredFields(segments []Segment, required []string) []Segment {
	if len(required) == 0 {
		return segments
	}
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if hasRequiredFields(seg, required) {
			out = append(out, seg)
		}
	}
	return out
}

func hasRequiredFields(seg Segment, required []string) bool {
	for _, field := range required {
		var value string
		switch field {
		case "title":
			value = seg.Title
		case "source":
			value = seg.Source
		case "documentType":
			value = seg.DocumentType
		case "content":
			value = seg.Content
		default:
			value, _ = seg.Meta(field)
		}
		if strings.TrimSpace(value) == "" {
			return false
		}
	}
	return true
}

// sortDocuments 按指定字段稳定排序。排序键缺失的片段排在末尾,降序时同样如此。
func sortDocuments(segments []Segment, sortBy, sortOrder string) {
	if sortBy == "" || sortBy == "score" {
		sortByScoreDesc(segments)
		if sortOrder == "asc" {
			reverseSegments(segments)
		}
		return
	}

	desc := sortOrder != "asc"
	sort.SliceStable(segments, func(i, j int) bool {
		vi, oki := sortKey(segments[i], sortBy)
		vj, okj := sortKey(segments[j], sortBy)
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		if desc {
			return vi > vj
		}
		return vi < vj
	})
}

// sortKey 取排序键的可比较字符串形式;数值字段补零对齐保证字典序与数值序一致。
func sortKey(seg Segment, sortBy string) (string, bool) {
	switch sortBy {
	case "position":
		return padNumeric(seg.Position), true
	case "length":
		return padNumeric(seg.Length), true
	case "title":
		return seg.Title, seg.Title != ""
	case "documentType":
		return seg.DocumentType, seg.DocumentType != ""
	case "createdAt":
		v, ok := seg.Meta("createdAt")
		return v, ok && v != ""
	default:
		v, ok := seg.Meta(sortBy)
		return v, ok && v != ""
	}
}

func padNumeric(n int) string {
	return strings.Repeat("0", max(0, 12-len(strconv.Itoa(n)))) + strconv.Itoa(n)
}

func reverseSegments(segments []Segment) {
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
}
