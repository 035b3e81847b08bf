package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/domain/repositories"
	"inferxgate.backend/pkg/crypto"
	"inferxgate.backend/pkg/logger"
)

// VirtualKeyUseCase manages the lifecycle of virtual keys
type VirtualKeyUseCase struct {
	keyRepo  repositories.VirtualKeyRepository
	resolver *KeyResolver
}

// NewVirtualKeyUseCase creates a virtual key use case
func NewVirtualKeyUseCase(keyRepo repositories.VirtualKeyRepository, resolver *KeyResolver) *VirtualKeyUseCase {
	return &VirtualKeyUseCase{keyRepo: keyRepo, resolver: resolver}
}

// Create mints a new virtual key. The plaintext is returned exactly once
// and only its hashes are stored.
func (uc *VirtualKeyUseCase) Create(ctx context.Context, input *entities.CreateVirtualKeyInput) (*entities.CreateVirtualKeyResponse, error) {
	plaintext, err := crypto.GenerateVirtualKey()
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	keyHash, err := crypto.HashKey(plaintext)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	lookupHash := crypto.LookupHash(plaintext)

	now := time.Now()
	key := &entities.VirtualKey{
		ID:            uuid.New(),
		UserID:        input.UserID,
		Name:          input.Name,
		KeyHash:       keyHash,
		KeyLookupHash: &lookupHash,
		KeyPrefix:     crypto.KeyPrefix(plaintext),
		MaxBudget:     input.MaxBudget,
		RateLimitRPM:  input.RateLimitRPM,
		RateLimitTPM:  input.RateLimitTPM,
		AllowedModels: input.AllowedModels,
		ExpiresAt:     input.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.keyRepo.Create(ctx, key); err != nil {
		return nil, domainerrors.InternalError(err)
	}

	logger.Info(ctx, "virtual key created",
		zap.String("key_id", key.ID.String()),
		zap.String("key_prefix", key.KeyPrefix))

	return &entities.CreateVirtualKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		Key:       plaintext,
		KeyPrefix: key.KeyPrefix,
		CreatedAt: key.CreatedAt,
	}, nil
}

// Info loads a single key by ID
func (uc *VirtualKeyUseCase) Info(ctx context.Context, id uuid.UUID) (*entities.VirtualKey, error) {
	return uc.keyRepo.FindByID(ctx, id)
}

// List returns every key
func (uc *VirtualKeyUseCase) List(ctx context.Context) ([]*entities.VirtualKey, error) {
	return uc.keyRepo.FindAll(ctx)
}

// ListByUser returns the keys owned by one user
func (uc *VirtualKeyUseCase) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.VirtualKey, error) {
	return uc.keyRepo.FindByUserID(ctx, userID)
}

// Update applies the non-nil fields of the input and drops the auth
// cache entry so blocks and limit changes take effect immediately
func (uc *VirtualKeyUseCase) Update(ctx context.Context, input *entities.UpdateVirtualKeyInput) (*entities.VirtualKey, error) {
	key, err := uc.keyRepo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		key.Name = *input.Name
	}
	if input.MaxBudget != nil {
		key.MaxBudget = input.MaxBudget
	}
	if input.RateLimitRPM != nil {
		key.RateLimitRPM = input.RateLimitRPM
	}
	if input.RateLimitTPM != nil {
		key.RateLimitTPM = input.RateLimitTPM
	}
	if input.AllowedModels != nil {
		key.AllowedModels = input.AllowedModels
	}
	if input.Blocked != nil {
		key.Blocked = *input.Blocked
	}
	if input.ExpiresAt != nil {
		key.ExpiresAt = input.ExpiresAt
	}
	key.UpdatedAt = time.Now()

	if err := uc.keyRepo.Update(ctx, key); err != nil {
		return nil, err
	}
	uc.resolver.Invalidate(ctx, key)

	logger.Info(ctx, "virtual key updated", zap.String("key_id", key.ID.String()))
	return key, nil
}

// Delete removes a key and its cached auth entry
func (uc *VirtualKeyUseCase) Delete(ctx context.Context, id uuid.UUID) error {
	key, err := uc.keyRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.keyRepo.Delete(ctx, id); err != nil {
		return err
	}
	uc.resolver.Invalidate(ctx, key)

	logger.Info(ctx, "virtual key deleted", zap.String("key_id", id.String()))
	return nil
}
