package repositories

import (
	"context"

	"inferxgate.backend/internal/domain/entities"
	"inferxgate.backend/pkg/utils"
)

type UsageRepository interface {
	Create(ctx context.Context, record *entities.UsageRecord) error
	FindRecent(ctx context.Context, params utils.PaginationParams) ([]*entities.UsageRecord, int64, error)
	Stats(ctx context.Context) (*entities.UsageStats, error)
}
