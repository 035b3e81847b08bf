package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
)

func TestProviderCredentialRepo_UpsertAndFindAll(t *testing.T) {
	db := newTestDB(t)
	createProviderCredentialTable(t, db)
	repo := NewProviderCredentialRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &entities.ProviderCredential{
		Provider: entities.ProviderOpenAI,
		APIKey:   "sk-first",
	}))
	require.NoError(t, repo.Upsert(ctx, &entities.ProviderCredential{
		Provider:      entities.ProviderAzure,
		APIKey:        "az-key",
		AzureEndpoint: "https://myres.openai.azure.com",
	}))

	// replace the openai key
	require.NoError(t, repo.Upsert(ctx, &entities.ProviderCredential{
		Provider: entities.ProviderOpenAI,
		APIKey:   "sk-second",
	}))

	creds, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 2)

	byProvider := map[string]*entities.ProviderCredential{}
	for _, c := range creds {
		byProvider[c.Provider] = c
	}
	assert.Equal(t, "sk-second", byProvider[entities.ProviderOpenAI].APIKey)
	assert.Equal(t, "https://myres.openai.azure.com", byProvider[entities.ProviderAzure].AzureEndpoint)
}

func TestProviderCredentialRepo_Delete(t *testing.T) {
	db := newTestDB(t)
	createProviderCredentialTable(t, db)
	repo := NewProviderCredentialRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &entities.ProviderCredential{
		Provider: entities.ProviderGemini,
		APIKey:   "gm-key",
	}))

	require.NoError(t, repo.Delete(ctx, entities.ProviderGemini))

	creds, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds)

	assert.ErrorIs(t, repo.Delete(ctx, entities.ProviderGemini), domainerrors.ErrNotFound)
}
