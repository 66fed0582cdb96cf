package search

import (
	"context"
	"strings"

	"kb-retrieval-api/pkg/logger"
	"kb-retrieval-api/pkg/metrics"
)

// Intent 查询意图。
type Intent string

const (
	IntentDefinition  Intent = "definition"
	IntentExplanation Intent = "explanation"
	IntentHowTo       Intent = "how_to"
	IntentExample     Intent = "example"
	IntentComparison  Intent = "comparison"
	IntentAnalysis    Intent = "analysis"
	IntentSummary     Intent = "summary"
	IntentFactual     Intent = "factual"
	IntentOpinion     Intent = "opinion"
	IntentGeneralQA   Intent = "general_qa"
)

var knownIntents = map[Intent]struct{}{
	IntentDefinition:  {},
	IntentExplanation: {},
	IntentHowTo:       {},
	IntentExample:     {},
	IntentComparison:  {},
	IntentAnalysis:    {},
	IntentSummary:     {},
	IntentFactual:     {},
	IntentOpinion:     {},
	IntentGeneralQA:   {},
}

// IntentDetector 查询意图识别与策略选择。LLM 不可用或响应不合法时回退到规则匹配。
type IntentDetector struct {
	llm   LanguageModel
	cache QueryCache
	opts  Options
}

func NewIntentDetector(llm LanguageModel, cache QueryCache, opts Options) *IntentDetector {
	return &IntentDetector{llm: llm, cache: cache, opts: opts.withDefaults()}
}

// Detect 识别查询意图。结果落缓存;置信度低于阈值时按规则兜底。
func (d *IntentDetector) Detect(ctx context.Context, query string) Intent {
	query = strings.TrimSpace(query)
	if query == "" {
		return IntentGeneralQA
	}

	if d.cache != nil {
		if cached, ok := d.cache.GetIntent(ctx, query); ok {
			metrics.CacheHitTotal.WithLabelValues("intent", "hit").Inc()
			if _, known := knownIntents[Intent(cached)]; known {
				return Intent(cached)
			}
		} else {
			metrics.CacheHitTotal.WithLabelValues("intent", "miss").Inc()
		}
	}

	intent := d.detectByLLM(ctx, query)
	if intent == "" {
		metrics.FallbackTotal.WithLabelValues("intent").Inc()
		intent = detectIntentByRules(query)
	}

	if d.cache != nil {
		d.cache.SetIntent(ctx, query, string(intent))
	}
	return intent
}

func (d *IntentDetector) detectByLLM(ctx context.Context, query string) Intent {
	if d.llm == nil {
		return ""
	}
	raw, err := d.llm.Complete(ctx, buildIntentPrompt(query))
	if err != nil {
		logger.Warn(ctx, "llm intent detection failed, using rule-based fallback",
			"query", truncateRunes(query, 100), "error", err.Error())
		return ""
	}
	label, conf, err := parseLabelResponse(raw)
	if err != nil {
		logger.Warn(ctx, "intent response unparsable, using rule-based fallback",
			"raw", truncateRunes(raw, 200))
		return ""
	}
	intent := Intent(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := knownIntents[intent]; !ok {
		return ""
	}
	if conf < d.opts.IntentMinConfidence {
		logger.Debug(ctx, "intent confidence below threshold, using rule-based fallback",
			"intent", string(intent), "confidence", conf)
		return ""
	}
	return intent
}

// SelectStrategy 为查询选择检索策略。优先让 LLM 直接选择,失败时按意图映射。
func (d *IntentDetector) SelectStrategy(ctx context.Context, query string, intent Intent) StrategyName {
	if d.llm != nil {
		raw, err := d.llm.Complete(ctx, buildStrategyPrompt(query, intent))
		if err == nil {
			if label, conf, perr := parseLabelResponse(raw); perr == nil {
				name, serr := ParseStrategy(strings.ToLower(strings.TrimSpace(label)))
				if serr == nil && name != StrategyIntelligent && conf >= d.opts.IntentMinConfidence {
					return name
				}
			}
		} else {
			logger.Warn(ctx, "llm strategy selection failed, using intent mapping",
				"intent", string(intent), "error", err.Error())
		}
		metrics.FallbackTotal.WithLabelValues("strategy_select").Inc()
	}
	return strategyForIntent(intent)
}

// strategyForIntent 意图到策略的固定映射。
func strategyForIntent(intent Intent) StrategyName {
	switch intent {
	case IntentDefinition, IntentExplanation, IntentSummary:
		return StrategySemantic
	case IntentHowTo, IntentExample, IntentFactual:
		return StrategyKeyword
	case IntentComparison, IntentAnalysis:
		return StrategyHybrid
	default:
		return StrategyHybrid
	}
}

type intentPattern struct {
	intent   Intent
	patterns []string
}

// 规则表按优先级排列,先命中先得。
var intentPatterns = []intentPattern{
	{IntentComparison, []string{"对比", "比较", "区别", "差异", "vs", "versus", "compare", "difference between", "哪个好", "哪个更"}},
	{IntentHowTo, []string{"如何", "怎么", "怎样", "步骤", "how to", "how do", "how can", "教程", "tutorial"}},
	{IntentDefinition, []string{"什么是", "是什么", "的定义", "定义是", "what is", "what are", "define", "definition of", "含义"}},
	{IntentExample, []string{"例子", "示例", "举例", "案例", "example", "sample", "instance of"}},
	{IntentSummary, []string{"总结", "概括", "概述", "摘要", "summarize", "summary", "overview"}},
	{IntentAnalysis, []string{"分析", "评估", "影响", "原因分析", "analyze", "analysis", "evaluate", "impact of"}},
	{IntentExplanation, []string{"为什么", "为何", "解释", "原理", "why", "explain", "reason"}},
	{IntentOpinion, []string{"你觉得", "你认为", "怎么看", "观点", "opinion", "do you think", "thoughts on"}},
	{IntentFactual, []string{"多少", "几个", "何时", "哪一年", "哪里", "谁", "when", "where", "who", "how many", "how much"}},
}

// detectIntentByRules 基于关键词模式的意图识别,作为 LLM 失败时的终端兜底。
func detectIntentByRules(query string) Intent {
	lowered := strings.ToLower(query)
	for _, entry := range intentPatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(lowered, pattern) {
				return entry.intent
			}
		}
	}
	return IntentGeneralQA
}
