package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/domain/repositories"
	"inferxgate.backend/internal/infrastructure/models"
)

// virtualKeyRepo implements repositories.VirtualKeyRepository
type virtualKeyRepo struct {
	db *gorm.DB
}

// NewVirtualKeyRepository creates a new virtual key repository
func NewVirtualKeyRepository(db *gorm.DB) repositories.VirtualKeyRepository {
	return &virtualKeyRepo{db: db}
}

// Create inserts a new virtual key
func (r *virtualKeyRepo) Create(ctx context.Context, key *entities.VirtualKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	key.CreatedAt = time.Now()
	key.UpdatedAt = key.CreatedAt

	m, err := r.toModel(key)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// FindByID gets a virtual key by ID
func (r *virtualKeyRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.VirtualKey, error) {
	var m models.VirtualKey
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m)
}

// FindByLookupHash gets a virtual key by its SHA256 lookup hash
func (r *virtualKeyRepo) FindByLookupHash(ctx context.Context, lookupHash string) (*entities.VirtualKey, error) {
	var m models.VirtualKey
	if err := r.db.WithContext(ctx).Where("key_lookup_hash = ?", lookupHash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m)
}

// FindByUserID lists keys belonging to a user
func (r *virtualKeyRepo) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.VirtualKey, error) {
	var ms []models.VirtualKey
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toEntities(ms)
}

// FindAll lists every key
func (r *virtualKeyRepo) FindAll(ctx context.Context) ([]*entities.VirtualKey, error) {
	var ms []models.VirtualKey
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toEntities(ms)
}

// Update updates mutable key fields
func (r *virtualKeyRepo) Update(ctx context.Context, key *entities.VirtualKey) error {
	key.UpdatedAt = time.Now()

	allowed, err := json.Marshal(key.AllowedModels)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Model(&models.VirtualKey{}).
		Where("id = ?", key.ID).
		Updates(map[string]interface{}{
			"name":           key.Name,
			"max_budget":     key.MaxBudget,
			"rate_limit_rpm": key.RateLimitRPM,
			"rate_limit_tpm": key.RateLimitTPM,
			"allowed_models": string(allowed),
			"blocked":        key.Blocked,
			"expires_at":     key.ExpiresAt,
			"updated_at":     key.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Delete soft deletes a key
func (r *virtualKeyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.VirtualKey{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// BackfillLookupHash stores the lookup hash for a key that predates it
func (r *virtualKeyRepo) BackfillLookupHash(ctx context.Context, id uuid.UUID, lookupHash string) error {
	return r.db.WithContext(ctx).Model(&models.VirtualKey{}).
		Where("id = ? AND key_lookup_hash IS NULL", id).
		Update("key_lookup_hash", lookupHash).Error
}

// IncrementSpend adds to current_spend atomically
func (r *virtualKeyRepo) IncrementSpend(ctx context.Context, id uuid.UUID, amount float64) error {
	result := r.db.WithContext(ctx).Model(&models.VirtualKey{}).
		Where("id = ?", id).
		Update("current_spend", gorm.Expr("current_spend + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// UpdateLastUsed stamps last_used_at
func (r *virtualKeyRepo) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.VirtualKey{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now()).Error
}

func (r *virtualKeyRepo) toModel(e *entities.VirtualKey) (*models.VirtualKey, error) {
	allowed, err := json.Marshal(e.AllowedModels)
	if err != nil {
		return nil, err
	}
	if e.AllowedModels == nil {
		allowed = []byte("[]")
	}
	return &models.VirtualKey{
		ID:            e.ID,
		UserID:        e.UserID,
		Name:          e.Name,
		KeyHash:       e.KeyHash,
		KeyLookupHash: e.KeyLookupHash,
		KeyPrefix:     e.KeyPrefix,
		MaxBudget:     e.MaxBudget,
		CurrentSpend:  e.CurrentSpend,
		RateLimitRPM:  e.RateLimitRPM,
		RateLimitTPM:  e.RateLimitTPM,
		AllowedModels: string(allowed),
		Blocked:       e.Blocked,
		ExpiresAt:     e.ExpiresAt,
		LastUsedAt:    e.LastUsedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}, nil
}

func (r *virtualKeyRepo) toEntity(m *models.VirtualKey) (*entities.VirtualKey, error) {
	var allowed []string
	if m.AllowedModels != "" {
		if err := json.Unmarshal([]byte(m.AllowedModels), &allowed); err != nil {
			return nil, err
		}
	}
	return &entities.VirtualKey{
		ID:            m.ID,
		UserID:        m.UserID,
		Name:          m.Name,
		KeyHash:       m.KeyHash,
		KeyLookupHash: m.KeyLookupHash,
		KeyPrefix:     m.KeyPrefix,
		MaxBudget:     m.MaxBudget,
		CurrentSpend:  m.CurrentSpend,
		RateLimitRPM:  m.RateLimitRPM,
		RateLimitTPM:  m.RateLimitTPM,
		AllowedModels: allowed,
		Blocked:       m.Blocked,
		ExpiresAt:     m.ExpiresAt,
		LastUsedAt:    m.LastUsedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func (r *virtualKeyRepo) toEntities(ms []models.VirtualKey) ([]*entities.VirtualKey, error) {
	keys := make([]*entities.VirtualKey, 0, len(ms))
	for i := range ms {
		e, err := r.toEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		keys = append(keys, e)
	}
	return keys, nil
}
