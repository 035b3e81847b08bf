package usecases

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"inferxgate.backend/internal/config"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/domain/repositories"
	"inferxgate.backend/internal/infrastructure/providers"
	"inferxgate.backend/pkg/logger"
)

// routeTable is the immutable routing snapshot the hot path reads.
// Reconfiguration builds a fresh table and swaps the pointer, so lookups
// never take a lock.
type routeTable struct {
	routes map[string]*entities.ModelRoute
	active map[string]bool
}

// ProviderRegistry maps model names to provider invocations. Credentials
// come from the database, with environment variables as the fallback for
// providers never configured through the admin API.
type ProviderRegistry struct {
	credRepo repositories.ProviderCredentialRepository
	adapters map[string]providers.Adapter
	envCfg   config.ProvidersConfig

	table atomic.Pointer[routeTable]

	// serializes rebuilds, not lookups
	mu sync.Mutex

	// models pinned per provider through the admin API; empty means the
	// full catalog
	pinned map[string][]string
}

// NewProviderRegistry creates a registry over the closed adapter set.
// Gateway config supplies the upstream timeouts and retry ceiling.
func NewProviderRegistry(credRepo repositories.ProviderCredentialRepository, envCfg config.ProvidersConfig, gwCfg config.GatewayConfig) *ProviderRegistry {
	adapters := make(map[string]providers.Adapter)
	opts := providers.Options{
		RequestTimeout: gwCfg.RequestTimeout,
		StreamTimeout:  gwCfg.StreamTimeout,
		MaxAttempts:    gwCfg.RetryMax,
	}
	for _, a := range providers.All(opts) {
		adapters[a.Name()] = a
	}
	r := &ProviderRegistry{
		credRepo: credRepo,
		adapters: adapters,
		envCfg:   envCfg,
		pinned:   make(map[string][]string),
	}
	r.table.Store(&routeTable{routes: map[string]*entities.ModelRoute{}, active: map[string]bool{}})
	return r
}

// LoadAll builds the route table from stored credentials plus the
// environment fallback. Called once at startup.
func (r *ProviderRegistry) LoadAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	creds, err := r.credRepo.FindAll(ctx)
	if err != nil {
		return domainerrors.InternalError(err)
	}
	r.rebuild(creds)
	logger.Info(ctx, "provider routes loaded",
		zap.Int("providers", len(creds)),
		zap.Int("models", len(r.table.Load().routes)))
	return nil
}

// Route resolves a model name to its provider invocation
func (r *ProviderRegistry) Route(model string) (*entities.ModelRoute, providers.Adapter, error) {
	table := r.table.Load()
	route, ok := table.routes[model]
	if !ok {
		return nil, nil, domainerrors.ModelNotFound(model)
	}
	adapter, ok := r.adapters[route.Provider]
	if !ok {
		return nil, nil, domainerrors.ProviderInactive(route.Provider)
	}
	return route, adapter, nil
}

// Configure stores a credential and swaps in a rebuilt route table
func (r *ProviderRegistry) Configure(ctx context.Context, input *entities.ConfigureProviderInput) error {
	if _, ok := r.adapters[input.Provider]; !ok {
		return domainerrors.BadRequest("unknown provider: " + input.Provider)
	}
	if input.Provider == entities.ProviderAzure && input.AzureEndpoint == "" {
		return domainerrors.BadRequest("azure requires an endpoint")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cred := &entities.ProviderCredential{
		Provider:      input.Provider,
		APIKey:        input.APIKey,
		AzureEndpoint: input.AzureEndpoint,
	}
	if err := r.credRepo.Upsert(ctx, cred); err != nil {
		return domainerrors.InternalError(err)
	}

	if len(input.Models) > 0 {
		r.pinned[input.Provider] = input.Models
	} else {
		delete(r.pinned, input.Provider)
	}

	creds, err := r.credRepo.FindAll(ctx)
	if err != nil {
		return domainerrors.InternalError(err)
	}
	r.rebuild(creds)
	logger.Info(ctx, "provider configured", zap.String("provider", input.Provider))
	return nil
}

// Remove deletes a credential and drops its routes. Environment
// credentials for the provider, if any, take over on the rebuild.
func (r *ProviderRegistry) Remove(ctx context.Context, provider string) error {
	if _, ok := r.adapters[provider]; !ok {
		return domainerrors.BadRequest("unknown provider: " + provider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.credRepo.Delete(ctx, provider); err != nil {
		return err
	}
	delete(r.pinned, provider)

	creds, err := r.credRepo.FindAll(ctx)
	if err != nil {
		return domainerrors.InternalError(err)
	}
	r.rebuild(creds)
	logger.Info(ctx, "provider removed", zap.String("provider", provider))
	return nil
}

// Models lists every routable model name, sorted
func (r *ProviderRegistry) Models() []string {
	table := r.table.Load()
	models := make([]string, 0, len(table.routes))
	for model := range table.routes {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Providers describes the closed provider set and which members are active
func (r *ProviderRegistry) Providers() []entities.ProviderStatus {
	table := r.table.Load()
	statuses := make([]entities.ProviderStatus, 0, len(r.adapters))
	for _, name := range []string{entities.ProviderOpenAI, entities.ProviderAnthropic, entities.ProviderGemini, entities.ProviderAzure} {
		status := entities.ProviderStatus{
			Provider: name,
			Active:   table.active[name],
			Models:   providers.SupportedModels(name),
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// rebuild computes a fresh table from stored credentials with the
// environment fallback layered underneath. Caller holds mu.
func (r *ProviderRegistry) rebuild(stored []*entities.ProviderCredential) {
	merged := map[string]*entities.ProviderCredential{}
	for provider, cred := range r.envCredentials() {
		merged[provider] = cred
	}
	for _, cred := range stored {
		merged[cred.Provider] = cred
	}

	table := &routeTable{
		routes: make(map[string]*entities.ModelRoute),
		active: make(map[string]bool),
	}
	for provider, cred := range merged {
		if cred.APIKey == "" {
			continue
		}
		table.active[provider] = true
		models := r.pinned[provider]
		if len(models) == 0 {
			models = providers.SupportedModels(provider)
		}
		for _, model := range models {
			table.routes[model] = &entities.ModelRoute{
				Model:         model,
				Provider:      provider,
				UpstreamModel: model,
				APIKey:        cred.APIKey,
				AzureEndpoint: cred.AzureEndpoint,
			}
		}
	}
	r.table.Store(table)
}

func (r *ProviderRegistry) envCredentials() map[string]*entities.ProviderCredential {
	creds := map[string]*entities.ProviderCredential{}
	if r.envCfg.OpenAIAPIKey != "" {
		creds[entities.ProviderOpenAI] = &entities.ProviderCredential{Provider: entities.ProviderOpenAI, APIKey: r.envCfg.OpenAIAPIKey}
	}
	if r.envCfg.AnthropicAPIKey != "" {
		creds[entities.ProviderAnthropic] = &entities.ProviderCredential{Provider: entities.ProviderAnthropic, APIKey: r.envCfg.AnthropicAPIKey}
	}
	if r.envCfg.GeminiAPIKey != "" {
		creds[entities.ProviderGemini] = &entities.ProviderCredential{Provider: entities.ProviderGemini, APIKey: r.envCfg.GeminiAPIKey}
	}
	if r.envCfg.AzureAPIKey != "" && r.envCfg.AzureEndpoint != "" {
		creds[entities.ProviderAzure] = &entities.ProviderCredential{Provider: entities.ProviderAzure, APIKey: r.envCfg.AzureAPIKey, AzureEndpoint: r.envCfg.AzureEndpoint}
	}
	return creds
}
