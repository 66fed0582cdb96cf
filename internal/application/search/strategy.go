package search

import (
	"context"
	"fmt"
)

// StrategyName 检索策略名。
type StrategyName string

const (
	StrategySemantic    StrategyName = "semantic"
	StrategyKeyword     StrategyName = "keyword"
	StrategyHybrid      StrategyName = "hybrid"
	StrategyStructured  StrategyName = "structured"
	StrategyIntelligent StrategyName = "intelligent"
)

// ParseStrategy 解析策略名,未知值返回错误。
func ParseStrategy(name string) (StrategyName, error) {
	switch StrategyName(name) {
	case StrategySemantic, StrategyKeyword, StrategyHybrid, StrategyStructured, StrategyIntelligent:
		return StrategyName(name), nil
	default:
		return "", fmt.Errorf("unknown search strategy: %q", name)
	}
}

// StrategyParams 策略调度的统一参数。
type StrategyParams struct {
	Query           string
	KnowledgeBaseID string
	Limit           int
	Threshold       float64
}

// Strategy 单知识库检索策略的统一入口,供智能检索编排调度。
type Strategy interface {
	Search(ctx context.Context, params StrategyParams) ([]Segment, error)
}

type strategyFunc func(ctx context.Context, params StrategyParams) ([]Segment, error)

func (f strategyFunc) Search(ctx context.Context, params StrategyParams) ([]Segment, error) {
	return f(ctx, params)
}
