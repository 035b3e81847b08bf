package providers

import (
	"context"
	"net"
	"net/http"
	"time"

	"inferxgate.backend/internal/domain/entities"
)

// Credentials carries the upstream secret for a single invocation
type Credentials struct {
	APIKey        string
	AzureEndpoint string
}

// Options carries the upstream call budgets from gateway configuration
type Options struct {
	// RequestTimeout bounds a non-streaming completion end to end
	RequestTimeout time.Duration
	// StreamTimeout bounds a streaming completion; zero leaves the
	// lifetime to the request context
	StreamTimeout time.Duration
	// MaxAttempts is the retry ceiling for transient upstream failures
	MaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 2 * time.Minute
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = defaultMaxAttempts
	}
	return o
}

// Adapter translates OpenAI-shaped requests to a specific upstream API
type Adapter interface {
	Complete(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*entities.ChatResponse, error)
	StreamCompletion(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*Stream, error)
	Name() string
	SupportedModels() []string
}

// newHTTPClient builds a pooled keep-alive client. A zero timeout leaves
// cancellation to the request context, which streaming relies on.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// All travels with every adapter so the registry can enumerate the closed set
func All(opts Options) []Adapter {
	return []Adapter{
		NewOpenAIAdapter(opts),
		NewAnthropicAdapter(opts),
		NewGeminiAdapter(opts),
		NewAzureAdapter(opts),
	}
}
