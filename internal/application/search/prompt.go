package search

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const maxPromptContentRunes = 500

func buildKeywordPrompt(query string) string {
	var sb strings.Builder
	sb.WriteString("从下面的查询中抽取 3-8 个检索关键词，保留原文语言，去掉疑问词与虚词。\n")
	sb.WriteString("只输出 JSON 字符串数组，例如 [\"关键词1\",\"关键词2\"]。\n\n")
	sb.WriteString("查询：")
	sb.WriteString(compactOneLine(query))
	return sb.String()
}

func buildIntentPrompt(query string) string {
	var sb strings.Builder
	sb.WriteString("判断下面查询的意图，从以下标签中选择一个：\n")
	sb.WriteString("definition, explanation, how_to, example, comparison, analysis, summary, factual, opinion, general_qa\n")
	sb.WriteString("只输出 JSON：{\"intent\":\"标签\",\"confidence\":0.0到1.0}\n\n")
	sb.WriteString("查询：")
	sb.WriteString(compactOneLine(query))
	return sb.String()
}

func buildStrategyPrompt(query string, intent Intent) string {
	var sb strings.Builder
	sb.WriteString("为下面的查询选择最合适的检索策略，候选：semantic, keyword, hybrid, structured。\n")
	sb.WriteString("只输出 JSON：{\"strategy\":\"策略\",\"confidence\":0.0到1.0}\n\n")
	if intent != "" {
		sb.WriteString("查询意图：")
		sb.WriteString(string(intent))
		sb.WriteString("\n")
	}
	sb.WriteString("查询：")
	sb.WriteString(compactOneLine(query))
	return sb.String()
}

func buildAIRerankPrompt(query string, segments []Segment) string {
	var sb strings.Builder
	sb.WriteString("根据查询对下列文档片段做相关性打分（0.0 完全不相关，1.0 高度相关）。\n")
	sb.WriteString("只输出 JSON 数组，每项形如 {\"index\":1,\"score\":0.95,\"reason\":\"简短理由\"}，index 从 1 开始。\n\n")
	sb.WriteString("查询：")
	sb.WriteString(compactOneLine(query))
	sb.WriteString("\n\n")
	for i, seg := range segments {
		txt := truncateRunes(compactOneLine(seg.Content), maxPromptContentRunes)
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, txt))
	}
	return sb.String()
}

func buildPairScorePrompt(query string, seg Segment) string {
	var sb strings.Builder
	sb.WriteString("给出查询与文档片段的相关性分数（0.0 到 1.0），只输出数字。\n\n")
	sb.WriteString("查询：")
	sb.WriteString(compactOneLine(query))
	sb.WriteString("\n文档：")
	sb.WriteString(truncateRunes(compactOneLine(seg.Content), maxPromptContentRunes))
	return sb.String()
}

// parseKeywordList 解析关键词抽取输出：优先 JSON 数组，兜底按行/逗号切分。
func parseKeywordList(raw string) []string {
	var arr []string
	if err := json.Unmarshal([]byte(extractJSONValue(raw)), &arr); err != nil {
		for _, piece := range strings.FieldsFunc(raw, func(r rune) bool {
			return r == ',' || r == '\n' || r == '、'
		}) {
			piece = strings.Trim(strings.TrimSpace(piece), "\"'`[]")
			if piece != "" {
				arr = append(arr, piece)
			}
		}
	}

	out := make([]string, 0, len(arr))
	seen := make(map[string]struct{}, len(arr))
	for _, kw := range arr {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}

type labelResponse struct {
	Intent     string  `json:"intent"`
	Strategy   string  `json:"strategy"`
	Confidence float64 `json:"confidence"`
}

// parseLabelResponse 解析意图/策略判定输出，返回标签与置信度。
// 非 JSON 输出时把整行当作标签、置信度按 1.0 处理。
func parseLabelResponse(raw string) (string, float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", 0, fmt.Errorf("empty llm response")
	}

	var resp labelResponse
	if err := json.Unmarshal([]byte(extractJSONValue(trimmed)), &resp); err == nil {
		label := resp.Intent
		if label == "" {
			label = resp.Strategy
		}
		if label != "" {
			conf := resp.Confidence
			if conf <= 0 {
				conf = 1.0
			}
			return strings.ToLower(strings.TrimSpace(label)), clamp01(conf), nil
		}
	}

	// 兜底：模型可能直接输出标签本身。
	label := strings.ToLower(strings.Trim(trimmed, "\"'` \n"))
	if label == "" || strings.ContainsAny(label, " \n") {
		return "", 0, fmt.Errorf("unparseable llm label response")
	}
	return label, 1.0, nil
}

type rerankEntry struct {
	Index  int     `json:"index"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// parseRerankScores 解析 AI 重排输出，返回 index(1-based) -> score。
func parseRerankScores(raw string, count int) (map[int]float64, error) {
	var entries []rerankEntry
	if err := json.Unmarshal([]byte(extractJSONValue(raw)), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	scores := make(map[int]float64, len(entries))
	for _, e := range entries {
		if e.Index < 1 || e.Index > count {
			continue
		}
		scores[e.Index] = clamp01(e.Score)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("rerank response contains no valid entries")
	}
	return scores, nil
}

var floatPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// parseFloatScore 从模型输出中提取第一个数字并截断到 [0,1]。
func parseFloatScore(raw string) (float64, error) {
	m := floatPattern.FindString(raw)
	if m == "" {
		return 0, fmt.Errorf("no score found in response")
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, err
	}
	return clamp01(v), nil
}

func compactOneLine(s string) string {
	out := strings.ReplaceAll(s, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = strings.ReplaceAll(out, "\n", " ")
	out = strings.TrimSpace(out)
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return out
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}
