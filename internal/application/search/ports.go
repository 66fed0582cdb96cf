package search

import "context"

// VectorStore 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Milvus）。
type VectorStore interface {
	EnsureKnowledgeSegmentsCollection(ctx context.Context) error
	SearchSegments(ctx context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error)
	InsertSegments(ctx context.Context, knowledgeBaseID string, segments []*VectorSegment) error
	DeleteSegmentsByDocument(ctx context.Context, knowledgeBaseID, documentID string) error
}

// VectorSearchParams 向量检索参数。
type VectorSearchParams struct {
	KnowledgeBaseID string
	QueryVector     []float32
	TopK            int

	// DocumentTypes 为空表示不过滤；非空则仅检索指定 document_type。
	DocumentTypes []string
}

// VectorSearchResult 向量检索结果。Score 为相似度（越大越相关，[0,1]）。
type VectorSearchResult struct {
	ID           string
	DocumentID   string
	Title        string
	Source       string
	DocumentType string
	Position     int64
	Tags         []string
	TextContent  string
	Score        float32
}

// VectorSegment 写入向量存储的片段。
type VectorSegment struct {
	ID              string
	KnowledgeBaseID string
	DocumentID      string
	Title           string
	Source          string
	DocumentType    string
	Position        int64
	Tags            []string
	TextContent     string
	Vector          []float32
}

// LanguageModel 定义应用层对语言模型的最小依赖：单轮补全。
// 用于意图识别、策略选择、关键词抽取与 AI 重排；实现方可能不可用、
// 超时或返回畸形输出，所有调用点都必须有确定性的降级路径。
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// QueryCache 查询级缓存（port）。实现可以为 nil-safe 的 Redis 适配器；
// 缓存失效或不可用时引擎照常工作。
type QueryCache interface {
	GetEmbedding(ctx context.Context, model, query string) ([]float32, bool)
	SetEmbedding(ctx context.Context, model, query string, vector []float32)
	GetIntent(ctx context.Context, query string) (string, bool)
	SetIntent(ctx context.Context, query, label string)
}
