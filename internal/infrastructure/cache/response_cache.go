package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"inferxgate.backend/internal/domain/entities"
	"inferxgate.backend/internal/infrastructure/metrics"
	"inferxgate.backend/pkg/logger"
	"inferxgate.backend/pkg/redis"
)

const cacheKeyPrefix = "response_cache:"

// ResponseCache stores completed non-streaming responses in Redis.
// It is advisory: Redis outages degrade to cache misses.
type ResponseCache struct {
	ttl     time.Duration
	enabled bool
}

// NewResponseCache creates a response cache
func NewResponseCache(enabled bool, ttl time.Duration) *ResponseCache {
	return &ResponseCache{ttl: ttl, enabled: enabled}
}

// Fingerprint derives the cache key from everything that shapes the response
func Fingerprint(req *entities.ChatRequest) string {
	messages, _ := json.Marshal(req.Messages)

	var b strings.Builder
	b.WriteString(req.Model)
	b.WriteByte('|')
	b.Write(messages)
	b.WriteByte('|')
	if req.Temperature != nil {
		fmt.Fprintf(&b, "%g", *req.Temperature)
	}
	b.WriteByte('|')
	if req.TopP != nil {
		fmt.Fprintf(&b, "%g", *req.TopP)
	}
	b.WriteByte('|')
	if req.MaxTokens != nil {
		fmt.Fprintf(&b, "%d", *req.MaxTokens)
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(req.Stop, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for a request, or nil on miss
func (c *ResponseCache) Get(ctx context.Context, req *entities.ChatRequest) *entities.ChatResponse {
	if !c.enabled || redis.GetClient() == nil {
		return nil
	}

	raw, err := redis.Get(ctx, cacheKeyPrefix+Fingerprint(req))
	if err != nil {
		if err != goredis.Nil {
			logger.Warn(ctx, "response cache read failed", zap.Error(err))
		}
		metrics.RecordCacheMiss()
		return nil
	}

	var resp entities.ChatResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		logger.Warn(ctx, "response cache entry corrupt", zap.Error(err))
		metrics.RecordCacheMiss()
		return nil
	}

	metrics.RecordCacheHit()
	return &resp
}

// Set stores a response. Failures are logged and swallowed.
func (c *ResponseCache) Set(ctx context.Context, req *entities.ChatRequest, resp *entities.ChatResponse) {
	if !c.enabled || redis.GetClient() == nil {
		return
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := redis.Set(ctx, cacheKeyPrefix+Fingerprint(req), raw, c.ttl); err != nil {
		logger.Warn(ctx, "response cache write failed", zap.Error(err))
	}
}
