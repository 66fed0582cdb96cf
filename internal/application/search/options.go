package search

import "time"

// Options 检索引擎运行参数。构造后不再修改，所有搜索器共享同一份只读副本。
type Options struct {
	// EmbeddingModel 查询向量化使用的模型名（写入片段 Metadata 用于溯源）。
	EmbeddingModel string

	DefaultLimit     int
	MaxLimit         int
	DefaultThreshold float64

	// KeywordBoost 关键词证据在关键词检索混合分数中的占比。
	KeywordBoost float64

	// KeywordWeight / SemanticWeight 混合检索默认权重。
	// 引擎容忍任意取值，不要求二者之和为 1。
	KeywordWeight  float64
	SemanticWeight float64

	// RerankBlendWeight 重排分数一侧的混合权重：final = (1-w)*orig + w*rerank。
	RerankBlendWeight float64

	// IntentMinConfidence AI 意图/策略判定的置信度下限，低于该值回退规则匹配；
	// 0 表示不启用置信度门控。
	IntentMinConfidence float64

	// PerKBTimeout 智能检索中单知识库的执行超时。
	PerKBTimeout time.Duration
}

// withDefaults 为零值字段填入默认参数。
func (o Options) withDefaults() Options {
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 10
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = 50
	}
	if o.DefaultThreshold <= 0 {
		o.DefaultThreshold = 0.5
	}
	if o.KeywordBoost <= 0 {
		o.KeywordBoost = 0.2
	}
	if o.KeywordWeight <= 0 && o.SemanticWeight <= 0 {
		o.KeywordWeight = 0.3
		o.SemanticWeight = 0.7
	}
	if o.RerankBlendWeight <= 0 {
		o.RerankBlendWeight = 0.7
	}
	if o.PerKBTimeout <= 0 {
		o.PerKBTimeout = 10 * time.Second
	}
	return o
}

// capLimit 将 limit 截断到上限。非正 limit 属于参数非法，由各搜索器先行拒绝。
func (o Options) capLimit(limit int) int {
	if limit > o.MaxLimit {
		return o.MaxLimit
	}
	return limit
}

// thresholdOrDefault 归一化阈值：负值取默认值，0 表示不过滤。
func (o Options) thresholdOrDefault(threshold float64) float64 {
	if threshold < 0 {
		return o.DefaultThreshold
	}
	if threshold > 1 {
		return 1
	}
	return threshold
}
