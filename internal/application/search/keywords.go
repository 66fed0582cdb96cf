package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxKeywords = 10

// 规则分词用的停用词表。兜底路径不依赖模型，宁可多保留也不误删实词。
var stopWords = map[string]struct{}{
	// 英文
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {},
	"this": {}, "that": {}, "with": {}, "from": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "why": {}, "how": {}, "does": {},
	"can": {}, "could": {}, "should": {}, "would": {}, "about": {},
	"please": {}, "tell": {},
	// 中文
	"的": {}, "了": {}, "是": {}, "在": {}, "和": {}, "与": {}, "或": {},
	"什么": {}, "怎么": {}, "如何": {}, "为什么": {}, "哪些": {}, "请问": {},
	"一下": {}, "这个": {}, "那个": {}, "关于": {},
}

// 中文疑问句常见的前后缀，规则分词前先剥掉，避免整句被当成一个关键词。
var stopPhrases = []string{
	"什么是", "什么叫", "是什么", "为什么", "怎么样", "怎么办", "如何",
	"请问", "请介绍", "介绍一下", "解释一下", "说明一下", "吗", "呢",
}

// ruleExtractKeywords 规则分词兜底：按字符类别切分，剥离停用词短语，
// 丢弃停用词与长度不超过 2 个字符的词元。
func ruleExtractKeywords(query string) []string {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	for _, p := range stopPhrases {
		q = strings.ReplaceAll(q, p, " ")
	}

	tokens := splitScriptRuns(q)

	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if _, ok := stopWords[lower]; ok {
			continue
		}
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, tok)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}

// splitScriptRuns 把文本切成连续的字母/数字词元；汉字与拉丁字符分属不同词元。
func splitScriptRuns(s string) []string {
	var tokens []string
	var cur []rune
	curHan := false

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}

	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			if len(cur) > 0 && !curHan {
				flush()
			}
			curHan = true
			cur = append(cur, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if len(cur) > 0 && curHan {
				flush()
			}
			curHan = false
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// keywordScore 计算关键词证据分：覆盖率 + 词频 + 位置衰减，各因子归一到 [0,1] 后加权。
func keywordScore(content string, keywords []string) float64 {
	if content == "" || len(keywords) == 0 {
		return 0
	}

	lc := strings.ToLower(content)
	contentRunes := utf8.RuneCountInString(lc)
	if contentRunes == 0 {
		return 0
	}

	total := 0
	matched := 0
	occurrences := 0
	decaySum := 0.0

	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		total++

		cnt := strings.Count(lc, k)
		if cnt == 0 {
			continue
		}
		matched++
		occurrences += cnt

		// 首次出现越靠前，位置衰减项越高。
		idx := strings.Index(lc, k)
		runeIdx := utf8.RuneCountInString(lc[:idx])
		decaySum += 1 - float64(runeIdx)/float64(contentRunes)
	}

	if total == 0 || matched == 0 {
		return 0
	}

	coverage := float64(matched) / float64(total)
	freq := float64(occurrences) / float64(total*3)
	if freq > 1 {
		freq = 1
	}
	position := decaySum / float64(matched)

	return clamp01(0.4*coverage + 0.3*freq + 0.3*position)
}

// matchedKeywords 返回在内容中出现过的关键词（忽略大小写）。
func matchedKeywords(content string, keywords []string) []string {
	lc := strings.ToLower(content)
	var out []string
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k != "" && strings.Contains(lc, k) {
			out = append(out, kw)
		}
	}
	return out
}
