package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"kb-retrieval-api/internal/application/search"
	"kb-retrieval-api/pkg/logger"
)

// SearchQueryCache 把缓存服务适配为检索应用层的 QueryCache 端口。
// 缓存只做加速，读写失败都静默降级为未命中。
type SearchQueryCache struct {
	cache        *Cache
	embeddingTTL time.Duration
	intentTTL    time.Duration
}

func NewSearchQueryCache(cache *Cache, embeddingTTL, intentTTL time.Duration) *SearchQueryCache {
	if embeddingTTL <= 0 {
		embeddingTTL = 30 * time.Minute
	}
	if intentTTL <= 0 {
		intentTTL = 10 * time.Minute
	}
	return &SearchQueryCache{
		cache:        cache,
		embeddingTTL: embeddingTTL,
		intentTTL:    intentTTL,
	}
}

var _ search.QueryCache = (*SearchQueryCache)(nil)

func (c *SearchQueryCache) GetEmbedding(ctx context.Context, model, query string) ([]float32, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, embeddingKey(model, query))
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func (c *SearchQueryCache) SetEmbedding(ctx context.Context, model, query string, vector []float32) {
	if c == nil || c.cache == nil || len(vector) == 0 {
		return
	}
	if err := c.cache.Set(ctx, embeddingKey(model, query), vector, c.embeddingTTL); err != nil {
		logger.Debug(ctx, "embedding cache write failed", "error", err.Error())
	}
}

func (c *SearchQueryCache) GetIntent(ctx context.Context, query string) (string, bool) {
	if c == nil || c.cache == nil {
		return "", false
	}
	raw, err := c.cache.Get(ctx, intentKey(query))
	if err != nil {
		return "", false
	}
	var intent string
	if err := json.Unmarshal(raw, &intent); err != nil || intent == "" {
		return "", false
	}
	return intent, true
}

func (c *SearchQueryCache) SetIntent(ctx context.Context, query, intent string) {
	if c == nil || c.cache == nil || intent == "" {
		return
	}
	if err := c.cache.Set(ctx, intentKey(query), intent, c.intentTTL); err != nil {
		logger.Debug(ctx, "intent cache write failed", "error", err.Error())
	}
}

// 查询原文可能很长且含任意字符，键里只放摘要。
func embeddingKey(model, query string) string {
	return "emb:" + model + ":" + hashQuery(query)
}

func intentKey(query string) string {
	return "intent:" + hashQuery(query)
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:16])
}
