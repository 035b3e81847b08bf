package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/domain/repositories"
	"inferxgate.backend/internal/infrastructure/models"
)

// providerCredentialRepo implements repositories.ProviderCredentialRepository
type providerCredentialRepo struct {
	db *gorm.DB
}

// NewProviderCredentialRepository creates a new provider credential repository
func NewProviderCredentialRepository(db *gorm.DB) repositories.ProviderCredentialRepository {
	return &providerCredentialRepo{db: db}
}

// Upsert stores or replaces a provider credential
func (r *providerCredentialRepo) Upsert(ctx context.Context, cred *entities.ProviderCredential) error {
	now := time.Now()
	m := &models.ProviderCredential{
		Provider:      cred.Provider,
		APIKey:        cred.APIKey,
		AzureEndpoint: cred.AzureEndpoint,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_key", "azure_endpoint", "updated_at"}),
	}).Create(m).Error
}

// Delete removes a provider credential
func (r *providerCredentialRepo) Delete(ctx context.Context, provider string) error {
	result := r.db.WithContext(ctx).Delete(&models.ProviderCredential{}, "provider = ?", provider)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// FindAll lists every stored credential
func (r *providerCredentialRepo) FindAll(ctx context.Context) ([]*entities.ProviderCredential, error) {
	var ms []models.ProviderCredential
	if err := r.db.WithContext(ctx).Find(&ms).Error; err != nil {
		return nil, err
	}

	creds := make([]*entities.ProviderCredential, 0, len(ms))
	for i := range ms {
		creds = append(creds, &entities.ProviderCredential{
			Provider:      ms[i].Provider,
			APIKey:        ms[i].APIKey,
			AzureEndpoint: ms[i].AzureEndpoint,
			CreatedAt:     ms[i].CreatedAt,
			UpdatedAt:     ms[i].UpdatedAt,
		})
	}
	return creds, nil
}
