package repositories

import (
	"context"

	"github.com/google/uuid"
	"inferxgate.backend/internal/domain/entities"
)

type VirtualKeyRepository interface {
	Create(ctx context.Context, key *entities.VirtualKey) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.VirtualKey, error)
	FindByLookupHash(ctx context.Context, lookupHash string) (*entities.VirtualKey, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.VirtualKey, error)
	FindAll(ctx context.Context) ([]*entities.VirtualKey, error)
	Update(ctx context.Context, key *entities.VirtualKey) error
	Delete(ctx context.Context, id uuid.UUID) error
	BackfillLookupHash(ctx context.Context, id uuid.UUID, lookupHash string) error
	IncrementSpend(ctx context.Context, id uuid.UUID, amount float64) error
	UpdateLastUsed(ctx context.Context, id uuid.UUID) error
}
