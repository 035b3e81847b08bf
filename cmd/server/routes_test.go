package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inferxgate.backend/internal/config"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/infrastructure/cache"
	"inferxgate.backend/internal/infrastructure/pricing"
	"inferxgate.backend/internal/infrastructure/providers"
	"inferxgate.backend/internal/interfaces/http/handlers"
	"inferxgate.backend/internal/interfaces/http/middleware"
	"inferxgate.backend/internal/usecases"
	"inferxgate.backend/pkg/crypto"
	"inferxgate.backend/pkg/jwt"
	"inferxgate.backend/pkg/redis"
	"inferxgate.backend/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testMasterKey = "master-secret"

// in-memory repositories backing the full router

type memKeyRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*entities.VirtualKey
}

func newMemKeyRepo() *memKeyRepo { return &memKeyRepo{keys: map[uuid.UUID]*entities.VirtualKey{}} }

func (s *memKeyRepo) Create(ctx context.Context, key *entities.VirtualKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *memKeyRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.VirtualKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	cp := *key
	return &cp, nil
}

func (s *memKeyRepo) FindByLookupHash(ctx context.Context, lookupHash string) (*entities.VirtualKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.keys {
		if key.KeyLookupHash != nil && *key.KeyLookupHash == lookupHash {
			cp := *key
			return &cp, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (s *memKeyRepo) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.VirtualKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.VirtualKey
	for _, key := range s.keys {
		if key.UserID != nil && *key.UserID == userID {
			cp := *key
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memKeyRepo) FindAll(ctx context.Context) ([]*entities.VirtualKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.VirtualKey, 0, len(s.keys))
	for _, key := range s.keys {
		cp := *key
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memKeyRepo) Update(ctx context.Context, key *entities.VirtualKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; !ok {
		return domainerrors.ErrNotFound
	}
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *memKeyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; !ok {
		return domainerrors.ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

func (s *memKeyRepo) BackfillLookupHash(ctx context.Context, id uuid.UUID, lookupHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[id]; ok && key.KeyLookupHash == nil {
		key.KeyLookupHash = &lookupHash
	}
	return nil
}

func (s *memKeyRepo) IncrementSpend(ctx context.Context, id uuid.UUID, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[id]; ok {
		key.CurrentSpend += amount
	}
	return nil
}

func (s *memKeyRepo) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[id]; ok {
		now := time.Now()
		key.LastUsedAt = &now
	}
	return nil
}

type memUsageRepo struct {
	mu      sync.Mutex
	records []*entities.UsageRecord
}

func (s *memUsageRepo) Create(ctx context.Context, record *entities.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *memUsageRepo) FindRecent(ctx context.Context, params utils.PaginationParams) ([]*entities.UsageRecord, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records, int64(len(s.records)), nil
}

func (s *memUsageRepo) Stats(ctx context.Context) (*entities.UsageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &entities.UsageStats{TotalRequests: int64(len(s.records))}
	for _, r := range s.records {
		stats.TotalTokens += int64(r.TotalTokens)
		stats.TotalCostUSD += r.CostUSD
		if r.Cached {
			stats.CacheHits++
		}
		if r.Error != nil {
			stats.FailedRequests++
		}
	}
	return stats, nil
}

type memCredRepo struct {
	mu    sync.Mutex
	creds map[string]*entities.ProviderCredential
}

func newMemCredRepo() *memCredRepo {
	return &memCredRepo{creds: map[string]*entities.ProviderCredential{}}
}

func (s *memCredRepo) Upsert(ctx context.Context, cred *entities.ProviderCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Provider] = cred
	return nil
}

func (s *memCredRepo) Delete(ctx context.Context, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, provider)
	return nil
}

func (s *memCredRepo) FindAll(ctx context.Context) ([]*entities.ProviderCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.ProviderCredential, 0, len(s.creds))
	for _, cred := range s.creds {
		out = append(out, cred)
	}
	return out, nil
}

type gatewayFixture struct {
	router    *gin.Engine
	keyRepo   *memKeyRepo
	usageRepo *memUsageRepo
	upstream  *httptest.Server
}

func newGateway(t *testing.T, upstreamHandler http.HandlerFunc) *gatewayFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	redis.SetClient(client)
	t.Cleanup(func() {
		redis.SetClient(nil)
		_ = client.Close()
	})

	upstream := httptest.NewServer(upstreamHandler)
	t.Cleanup(upstream.Close)

	keyRepo := newMemKeyRepo()
	usageRepo := &memUsageRepo{}
	credRepo := newMemCredRepo()

	resolver := usecases.NewKeyResolver(keyRepo)
	guard := usecases.NewAdmissionGuard(time.Minute)
	registry := usecases.NewProviderRegistry(credRepo, config.ProvidersConfig{OpenAIAPIKey: "sk-upstream"}, config.GatewayConfig{})
	require.NoError(t, registry.LoadAll(context.Background()))

	_, adapter, err := registry.Route("gpt-5-mini")
	require.NoError(t, err)
	adapter.(*providers.OpenAIAdapter).SetBaseURL(upstream.URL)

	accountant := usecases.NewAccountant(usageRepo, keyRepo, resolver, pricing.NewCalculator())
	chatUsecase := usecases.NewChatUseCase(guard, registry, cache.NewResponseCache(true, time.Hour), accountant)
	keyUsecase := usecases.NewVirtualKeyUseCase(keyRepo, resolver)
	jwtService := jwt.NewJWTService("test-secret", time.Hour)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	registerRoutes(r, routeDeps{
		chatHandler:     handlers.NewChatHandler(chatUsecase),
		modelsHandler:   handlers.NewModelsHandler(registry),
		providerHandler: handlers.NewProviderHandler(registry),
		keyHandler:      handlers.NewKeyHandler(keyUsecase),
		statsHandler:    handlers.NewStatsHandler(usageRepo),
		healthHandler:   handlers.NewHealthHandler(nil),
		keyAuth:         middleware.KeyAuthMiddleware(resolver),
		adminAuth:       middleware.AdminAuthMiddleware(testMasterKey, jwtService),
	})

	return &gatewayFixture{router: r, keyRepo: keyRepo, usageRepo: usageRepo, upstream: upstream}
}

func (f *gatewayFixture) mintKey(t *testing.T) string {
	t.Helper()
	plaintext, err := crypto.GenerateVirtualKey()
	require.NoError(t, err)
	hash, err := crypto.HashKey(plaintext)
	require.NoError(t, err)
	lookupHash := crypto.LookupHash(plaintext)
	require.NoError(t, f.keyRepo.Create(context.Background(), &entities.VirtualKey{
		ID:            uuid.New(),
		Name:          "route-test",
		KeyHash:       hash,
		KeyLookupHash: &lookupHash,
	}))
	return plaintext
}

func (f *gatewayFixture) do(method, path, bearer string, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func completionUpstream(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := entities.ChatResponse{
			ID:     "chatcmpl-route",
			Object: "chat.completion",
			Model:  "gpt-5-mini",
			Choices: []entities.Choice{
				{Message: entities.ResponseMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
			},
			Usage: entities.Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

const chatBody = `{"model":"gpt-5-mini","messages":[{"role":"user","content":"hi"}]}`

func TestRoutes_Health(t *testing.T) {
	f := newGateway(t, completionUpstream("ok"))

	w := f.do(http.MethodGet, "/health", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRoutes_Metrics(t *testing.T) {
	f := newGateway(t, completionUpstream("ok"))

	w := f.do(http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_ChatCompletion(t *testing.T) {
	f := newGateway(t, completionUpstream("hello back"))
	bearer := f.mintKey(t)

	w := f.do(http.MethodPost, "/v1/chat/completions", bearer, chatBody)

	require.Equal(t, http.StatusOK, w.Code)
	var resp entities.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello back", resp.Choices[0].Message.Content)
}

func TestRoutes_ChatRequiresKey(t *testing.T) {
	f := newGateway(t, completionUpstream("ok"))

	w := f.do(http.MethodPost, "/v1/chat/completions", "", chatBody)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication_error")
}

func TestRoutes_ChatMasterKeyIsNotVirtualKey(t *testing.T) {
	f := newGateway(t, completionUpstream("ok"))

	w := f.do(http.MethodPost, "/v1/chat/completions", testMasterKey, chatBody)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_ChatStreaming(t *testing.T) {
	stop := "stop"
	f := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []entities.StreamChunk{
			{ID: "c1", Object: "chat.completion.chunk", Choices: []entities.DeltaChoice{{Delta: entities.Delta{Content: "str"}}}},
			{ID: "c1", Object: "chat.completion.chunk", Choices: []entities.DeltaChoice{{Delta: entities.Delta{Content: "eam"}, FinishReason: &stop}}},
			{ID: "c1", Object: "chat.completion.chunk", Usage: &entities.Usage{TotalTokens: 7}},
		}
		for _, chunk := range chunks {
			raw, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", raw)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	bearer := f.mintKey(t)

	body := `{"model":"gpt-5-mini","messages":[{"role":"user","content":"hi"}],"stream":true}`
	w := f.do(http.MethodPost, "/v1/chat/completions", bearer, body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, w.Body.String(), `"content":"str"`)
	assert.Contains(t, w.Body.String(), `"content":"eam"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(w.Body.String()), "data: [DONE]"))
}

func TestRoutes_RateLimitHeaders(t *testing.T) {
	f := newGateway(t, completionUpstream("ok"))
	bearer := f.mintKey(t)

	// attach an RPM limit to the stored key
	keys, err := f.keyRepo.FindAll(context.Background())
	require.NoError(t, err)
	rpm := 2
	keys[0].RateLimitRPM = &rpm
	require.NoError(t, f.keyRepo.Update(context.Background(), keys[0]))

	w := f.do(http.MethodPost, "/v1/chat/completions", bearer, chatBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining-Requests"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRoutes_ListModels(t *testing.T) {
	f := newGateway(t, completionUpstream("ok"))
	bearer := f.mintKey(t)

	w := f.do(http.MethodGet, "/v1/models", bearer, "")

	require.Equal(t, http.StatusOK, w.Code)
	var list handlers.ModelList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "list", list.Object)
	assert.NotEmpty(t, list.Data)
}

func TestRoutes_ProvidersPublic(t *testing.T) {
	f := newGateway(t, completionUpstream("ok"))

	w := f.do(http.MethodGet, "/v1/providers", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"openai"`)
}

func TestRoutes_ConfigureProviderRequiresAdmin(t *testing.T) {
	f := newGateway(t, completionUpstream("ok"))

	body := `{"provider":"anthropic","apiKey":"sk-ant"}`
	w := f.do(http.MethodPost, "/v1/providers/configure", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/v1/providers/configure", testMasterKey, body)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_KeyLifecycle(t *testing.T) {
	f := newGateway(t, completionUpstream("lifecycle"))

	// generate
	w := f.do(http.MethodPost, "/auth/key/generate", testMasterKey, `{"name":"ci-key"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var createResp entities.CreateVirtualKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	assert.True(t, strings.HasPrefix(createResp.Key, "sk-"))

	// the new key can complete
	w = f.do(http.MethodPost, "/v1/chat/completions", createResp.Key, chatBody)
	require.Equal(t, http.StatusOK, w.Code)

	// block it
	blockBody := fmt.Sprintf(`{"id":"%s","blocked":true}`, createResp.ID)
	w = f.do(http.MethodPost, "/auth/key/update", testMasterKey, blockBody)
	require.Equal(t, http.StatusOK, w.Code)

	// blocked key is rejected
	w = f.do(http.MethodPost, "/v1/chat/completions", createResp.Key, chatBody)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// delete
	deleteBody := fmt.Sprintf(`{"id":"%s"}`, createResp.ID)
	w = f.do(http.MethodPost, "/auth/key/delete", testMasterKey, deleteBody)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/auth/key/info?id="+createResp.ID.String(), testMasterKey, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_Stats(t *testing.T) {
	f := newGateway(t, completionUpstream("stats"))
	bearer := f.mintKey(t)

	w := f.do(http.MethodPost, "/v1/chat/completions", bearer, chatBody)
	require.Equal(t, http.StatusOK, w.Code)

	// usage persistence is asynchronous
	require.Eventually(t, func() bool {
		f.usageRepo.mu.Lock()
		defer f.usageRepo.mu.Unlock()
		return len(f.usageRepo.records) == 1
	}, time.Second, 10*time.Millisecond)

	w = f.do(http.MethodGet, "/stats", testMasterKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalRequests":1`)

	w = f.do(http.MethodGet, "/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
