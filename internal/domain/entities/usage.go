package entities

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is an immutable record of a single completion attempt
type UsageRecord struct {
	ID               uuid.UUID  `json:"id"`
	KeyID            *uuid.UUID `json:"keyId,omitempty"`
	Model            string     `json:"model"`
	Provider         string     `json:"provider"`
	PromptTokens     int        `json:"promptTokens"`
	CompletionTokens int        `json:"completionTokens"`
	TotalTokens      int        `json:"totalTokens"`
	CostUSD          float64    `json:"costUsd"`
	LatencyMs        int64      `json:"latencyMs"`
	Cached           bool       `json:"cached"`
	Error            *string    `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// UsageStats aggregates usage records for the admin stats endpoint
type UsageStats struct {
	TotalRequests    int64   `json:"totalRequests"`
	TotalTokens      int64   `json:"totalTokens"`
	TotalCostUSD     float64 `json:"totalCostUsd"`
	CacheHits        int64   `json:"cacheHits"`
	FailedRequests   int64   `json:"failedRequests"`
	AverageLatencyMs float64 `json:"averageLatencyMs"`
}
