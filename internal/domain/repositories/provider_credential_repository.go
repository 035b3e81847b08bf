package repositories

import (
	"context"

	"inferxgate.backend/internal/domain/entities"
)

type ProviderCredentialRepository interface {
	Upsert(ctx context.Context, cred *entities.ProviderCredential) error
	Delete(ctx context.Context, provider string) error
	FindAll(ctx context.Context) ([]*entities.ProviderCredential, error)
}
