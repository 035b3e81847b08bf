package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"inferxgate.backend/internal/domain/entities"
	"inferxgate.backend/internal/domain/repositories"
	"inferxgate.backend/internal/infrastructure/models"
	"inferxgate.backend/pkg/utils"
)

// usageRepo implements repositories.UsageRepository
type usageRepo struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *gorm.DB) repositories.UsageRepository {
	return &usageRepo{db: db}
}

// Create inserts a usage record
func (r *usageRepo) Create(ctx context.Context, record *entities.UsageRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	m := &models.UsageRecord{
		ID:               record.ID,
		KeyID:            record.KeyID,
		Model:            record.Model,
		Provider:         record.Provider,
		PromptTokens:     record.PromptTokens,
		CompletionTokens: record.CompletionTokens,
		TotalTokens:      record.TotalTokens,
		CostUSD:          record.CostUSD,
		LatencyMs:        record.LatencyMs,
		Cached:           record.Cached,
		Error:            record.Error,
		CreatedAt:        record.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// FindRecent lists usage records newest first
func (r *usageRepo) FindRecent(ctx context.Context, params utils.PaginationParams) ([]*entities.UsageRecord, int64, error) {
	var totalCount int64
	if err := r.db.WithContext(ctx).Model(&models.UsageRecord{}).Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Order("created_at DESC")
	if params.Limit > 0 {
		query = query.Offset(params.CalculateOffset()).Limit(params.Limit)
	}

	var ms []models.UsageRecord
	if err := query.Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	records := make([]*entities.UsageRecord, 0, len(ms))
	for i := range ms {
		records = append(records, r.toEntity(&ms[i]))
	}
	return records, totalCount, nil
}

// Stats aggregates usage across all records
func (r *usageRepo) Stats(ctx context.Context) (*entities.UsageStats, error) {
	var row struct {
		TotalRequests  int64
		TotalTokens    int64
		TotalCostUSD   float64
		CacheHits      int64
		FailedRequests int64
		AvgLatencyMs   float64
	}

	err := r.db.WithContext(ctx).Model(&models.UsageRecord{}).
		Select(`COUNT(*) AS total_requests,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COALESCE(SUM(cost_usd), 0) AS total_cost_usd,
			COALESCE(SUM(CASE WHEN cached THEN 1 ELSE 0 END), 0) AS cache_hits,
			COALESCE(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END), 0) AS failed_requests,
			COALESCE(AVG(latency_ms), 0) AS avg_latency_ms`).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &entities.UsageStats{
		TotalRequests:    row.TotalRequests,
		TotalTokens:      row.TotalTokens,
		TotalCostUSD:     row.TotalCostUSD,
		CacheHits:        row.CacheHits,
		FailedRequests:   row.FailedRequests,
		AverageLatencyMs: row.AvgLatencyMs,
	}, nil
}

func (r *usageRepo) toEntity(m *models.UsageRecord) *entities.UsageRecord {
	return &entities.UsageRecord{
		ID:               m.ID,
		KeyID:            m.KeyID,
		Model:            m.Model,
		Provider:         m.Provider,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		TotalTokens:      m.TotalTokens,
		CostUSD:          m.CostUSD,
		LatencyMs:        m.LatencyMs,
		Cached:           m.Cached,
		Error:            m.Error,
		CreatedAt:        m.CreatedAt,
	}
}
