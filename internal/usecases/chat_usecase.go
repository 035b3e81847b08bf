package usecases

import (
	"context"
	"errors"
	"io"
	"time"

	"inferxgate.backend/internal/domain/entities"
	"inferxgate.backend/internal/infrastructure/cache"
	"inferxgate.backend/internal/infrastructure/metrics"
	"inferxgate.backend/internal/infrastructure/providers"
)

// ChatUseCase orchestrates a completion: admission, routing, the cache,
// the upstream call, and accounting.
type ChatUseCase struct {
	guard      *AdmissionGuard
	registry   *ProviderRegistry
	respCache  *cache.ResponseCache
	accountant *Accountant
}

// NewChatUseCase creates a chat use case
func NewChatUseCase(guard *AdmissionGuard, registry *ProviderRegistry, respCache *cache.ResponseCache, accountant *Accountant) *ChatUseCase {
	return &ChatUseCase{
		guard:      guard,
		registry:   registry,
		respCache:  respCache,
		accountant: accountant,
	}
}

// Complete serves a non-streaming completion
func (uc *ChatUseCase) Complete(ctx context.Context, key *entities.VirtualKey, req *entities.ChatRequest) (*entities.ChatResponse, *Admission, error) {
	adm, err := uc.guard.Admit(ctx, key, req.Model, requestMaxTokens(req))
	if err != nil {
		return nil, nil, err
	}

	route, adapter, err := uc.registry.Route(req.Model)
	if err != nil {
		return nil, adm, err
	}

	if resp := uc.respCache.Get(ctx, req); resp != nil {
		uc.accountant.Record(ctx, &Attempt{
			Key:      key,
			Model:    req.Model,
			Provider: route.Provider,
			Usage:    &resp.Usage,
			Cached:   true,
		})
		return resp, adm, nil
	}

	metrics.IncActiveRequests(route.Provider)
	defer metrics.DecActiveRequests(route.Provider)

	start := time.Now()
	resp, err := adapter.Complete(ctx, req, routeCredentials(route))
	latency := time.Since(start)

	if err != nil {
		uc.accountant.Record(ctx, &Attempt{
			Key:       key,
			Model:     req.Model,
			Provider:  route.Provider,
			Latency:   latency,
			FailedErr: err,
		})
		return nil, adm, err
	}

	uc.respCache.Set(ctx, req, resp)
	uc.trueUpTokens(ctx, key, req, resp.Usage.TotalTokens)
	uc.accountant.Record(ctx, &Attempt{
		Key:      key,
		Model:    req.Model,
		Provider: route.Provider,
		Usage:    &resp.Usage,
		Latency:  latency,
	})
	return resp, adm, nil
}

// StreamChat starts a streaming completion. Accounting happens when the
// returned stream reaches its terminal state.
func (uc *ChatUseCase) StreamChat(ctx context.Context, key *entities.VirtualKey, req *entities.ChatRequest) (*ChatStream, *Admission, error) {
	adm, err := uc.guard.Admit(ctx, key, req.Model, requestMaxTokens(req))
	if err != nil {
		return nil, nil, err
	}

	route, adapter, err := uc.registry.Route(req.Model)
	if err != nil {
		return nil, adm, err
	}

	metrics.IncActiveRequests(route.Provider)
	start := time.Now()
	stream, err := adapter.StreamCompletion(ctx, req, routeCredentials(route))
	if err != nil {
		metrics.DecActiveRequests(route.Provider)
		uc.accountant.Record(ctx, &Attempt{
			Key:       key,
			Model:     req.Model,
			Provider:  route.Provider,
			Latency:   time.Since(start),
			FailedErr: err,
		})
		return nil, adm, err
	}

	return &ChatStream{
		inner:    stream,
		uc:       uc,
		key:      key,
		model:    req.Model,
		provider: route.Provider,
		estimate: requestMaxTokens(req),
		start:    start,
	}, adm, nil
}

// ChatStream wraps a provider stream and settles accounting exactly once
// when the stream ends, fails, or is abandoned.
type ChatStream struct {
	inner    *providers.Stream
	uc       *ChatUseCase
	key      *entities.VirtualKey
	model    string
	provider string
	estimate int
	start    time.Time
	settled  bool
}

// Recv returns the next chunk. io.EOF marks normal completion.
func (s *ChatStream) Recv(ctx context.Context) (*entities.StreamChunk, error) {
	chunk, err := s.inner.Recv()
	if err == nil {
		return chunk, nil
	}
	if errors.Is(err, io.EOF) {
		s.settle(ctx, nil)
	} else {
		s.settle(ctx, err)
	}
	return nil, err
}

// Close releases the upstream connection. A stream abandoned before its
// terminal frame is accounted as a failed attempt.
func (s *ChatStream) Close(ctx context.Context) error {
	if !s.settled {
		s.settle(ctx, errors.New("stream aborted before completion"))
	}
	return s.inner.Close()
}

func (s *ChatStream) settle(ctx context.Context, failure error) {
	if s.settled {
		return
	}
	s.settled = true
	metrics.DecActiveRequests(s.provider)

	attempt := &Attempt{
		Key:       s.key,
		Model:     s.model,
		Provider:  s.provider,
		Usage:     s.inner.Usage,
		Latency:   time.Since(s.start),
		FailedErr: failure,
	}
	if failure == nil && s.inner.Usage != nil {
		s.uc.trueUpTokensFrom(ctx, s.key, s.estimate, s.inner.Usage.TotalTokens)
	}
	s.uc.accountant.Record(ctx, attempt)
}

// trueUpTokens records consumption beyond the admission estimate so the
// token window tracks actual usage
func (uc *ChatUseCase) trueUpTokens(ctx context.Context, key *entities.VirtualKey, req *entities.ChatRequest, actual int) {
	uc.trueUpTokensFrom(ctx, key, requestMaxTokens(req), actual)
}

func (uc *ChatUseCase) trueUpTokensFrom(ctx context.Context, key *entities.VirtualKey, estimate, actual int) {
	if estimate <= 0 {
		estimate = defaultTokenEstimate
	}
	if actual > estimate {
		uc.guard.RecordTokens(ctx, key, actual-estimate)
	}
}

func requestMaxTokens(req *entities.ChatRequest) int {
	if req.MaxTokens != nil {
		return *req.MaxTokens
	}
	return 0
}

func routeCredentials(route *entities.ModelRoute) providers.Credentials {
	return providers.Credentials{APIKey: route.APIKey, AzureEndpoint: route.AzureEndpoint}
}
