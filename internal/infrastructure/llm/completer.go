package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"kb-retrieval-api/internal/application/search"
	"kb-retrieval-api/pkg/metrics"
)

// Completer 把 Eino ChatModel 适配为检索应用层的 LanguageModel 端口。
// provider 为空时使用配置的默认提供商。
type Completer struct {
	factory  *EinoFactory
	provider string
}

func NewCompleter(factory *EinoFactory, provider string) *Completer {
	return &Completer{factory: factory, provider: provider}
}

var _ search.LanguageModel = (*Completer)(nil)

// Complete 单轮补全：一条用户消息进，纯文本出。
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}

	chatModel, err := c.factory.Get(ctx, c.provider)
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues("completion", "error").Inc()
		return "", fmt.Errorf("get chat model: %w", err)
	}

	start := time.Now()
	outMsg, err := chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	metrics.LLMCallDuration.WithLabelValues("completion").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues("completion", "error").Inc()
		return "", fmt.Errorf("llm generate: %w", err)
	}
	if outMsg == nil || outMsg.Content == "" {
		metrics.LLMCallTotal.WithLabelValues("completion", "error").Inc()
		return "", fmt.Errorf("empty llm response")
	}

	metrics.LLMCallTotal.WithLabelValues("completion", "success").Inc()
	return outMsg.Content, nil
}
