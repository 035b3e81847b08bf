package usecases

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"inferxgate.backend/internal/domain/entities"
	"inferxgate.backend/pkg/utils"
)

// Mock VirtualKeyRepository
type MockVirtualKeyRepository struct {
	mock.Mock
}

func (m *MockVirtualKeyRepository) Create(ctx context.Context, key *entities.VirtualKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockVirtualKeyRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.VirtualKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.VirtualKey), args.Error(1)
}

func (m *MockVirtualKeyRepository) FindByLookupHash(ctx context.Context, lookupHash string) (*entities.VirtualKey, error) {
	args := m.Called(ctx, lookupHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.VirtualKey), args.Error(1)
}

func (m *MockVirtualKeyRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.VirtualKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.VirtualKey), args.Error(1)
}

func (m *MockVirtualKeyRepository) FindAll(ctx context.Context) ([]*entities.VirtualKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.VirtualKey), args.Error(1)
}

func (m *MockVirtualKeyRepository) Update(ctx context.Context, key *entities.VirtualKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockVirtualKeyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockVirtualKeyRepository) BackfillLookupHash(ctx context.Context, id uuid.UUID, lookupHash string) error {
	args := m.Called(ctx, id, lookupHash)
	return args.Error(0)
}

func (m *MockVirtualKeyRepository) IncrementSpend(ctx context.Context, id uuid.UUID, amount float64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockVirtualKeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock UsageRepository
type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) Create(ctx context.Context, record *entities.UsageRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockUsageRepository) FindRecent(ctx context.Context, params utils.PaginationParams) ([]*entities.UsageRecord, int64, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.UsageRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockUsageRepository) Stats(ctx context.Context) (*entities.UsageStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UsageStats), args.Error(1)
}

// Mock ProviderCredentialRepository
type MockProviderCredentialRepository struct {
	mock.Mock
}

func (m *MockProviderCredentialRepository) Upsert(ctx context.Context, cred *entities.ProviderCredential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *MockProviderCredentialRepository) Delete(ctx context.Context, provider string) error {
	args := m.Called(ctx, provider)
	return args.Error(0)
}

func (m *MockProviderCredentialRepository) FindAll(ctx context.Context) ([]*entities.ProviderCredential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ProviderCredential), args.Error(1)
}
