package search

import "errors"

var (
	// ErrEmptyQuery 查询为空。
	ErrEmptyQuery = errors.New("query is required")
	// ErrInvalidLimit limit 非正数。
	ErrInvalidLimit = errors.New("limit must be positive")
	// ErrVectorDisabled 向量检索能力未配置（向量存储或 Embedder 不可用）。
	ErrVectorDisabled = errors.New("vector retrieval is disabled")
	// ErrUnknownRerankStrategy 指定了未知的重排策略名。
	ErrUnknownRerankStrategy = errors.New("unknown rerank strategy")
	// ErrNoSegments 重排输入为空。
	ErrNoSegments = errors.New("no segments to rerank")
)

// IsInvalidInput 判断错误是否属于“参数非法”。这是唯一向调用方直接透出的错误类别，
// 其余失败都在引擎内部降级处理。
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrEmptyQuery) || errors.Is(err, ErrInvalidLimit)
}
