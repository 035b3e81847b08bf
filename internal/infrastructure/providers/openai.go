package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
)

// OpenAIAdapter passes requests through to the OpenAI API unchanged
type OpenAIAdapter struct {
	apiURL       string
	client       *http.Client
	streamClient *http.Client
	maxAttempts  int
}

// NewOpenAIAdapter creates the OpenAI adapter
func NewOpenAIAdapter(opts Options) *OpenAIAdapter {
	opts = opts.withDefaults()
	return &OpenAIAdapter{
		apiURL:       openAIAPIURL,
		client:       newHTTPClient(opts.RequestTimeout),
		streamClient: newHTTPClient(opts.StreamTimeout),
		maxAttempts:  opts.MaxAttempts,
	}
}

func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// SetBaseURL overrides the completions endpoint, used in tests
func (a *OpenAIAdapter) SetBaseURL(url string) {
	a.apiURL = url
}

func (a *OpenAIAdapter) SupportedModels() []string {
	return openAIModels
}

// Complete runs a non-streaming completion
func (a *OpenAIAdapter) Complete(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*entities.ChatResponse, error) {
	outbound := *req
	outbound.Stream = false

	body, err := json.Marshal(&outbound)
	if err != nil {
		return nil, err
	}

	resp, err := sendWithRetry(ctx, a.client, func() (*http.Request, error) {
		return a.buildRequest(creds)
	}, body, a.maxAttempts)
	if err != nil {
		return nil, domainerrors.ProviderError("request to OpenAI failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("OpenAI", resp)
	}

	var out entities.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domainerrors.ProviderError("failed to parse OpenAI response", err)
	}
	return &out, nil
}

// StreamCompletion opens a streaming completion
func (a *OpenAIAdapter) StreamCompletion(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*Stream, error) {
	outbound := *req
	outbound.Stream = true
	outbound.StreamOptions = &entities.StreamOptions{IncludeUsage: true}

	body, err := json.Marshal(&outbound)
	if err != nil {
		return nil, err
	}

	resp, err := sendWithRetry(ctx, a.streamClient, func() (*http.Request, error) {
		return a.buildRequest(creds)
	}, body, a.maxAttempts)
	if err != nil {
		return nil, domainerrors.ProviderError("request to OpenAI failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError("OpenAI", resp)
	}

	return newStream(resp.Body, parseOpenAIFrame), nil
}

func (a *OpenAIAdapter) buildRequest(creds Credentials) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, a.apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// parseOpenAIFrame handles the native OpenAI chunk format
func parseOpenAIFrame(_, data string) ([]*entities.StreamChunk, bool, error) {
	if data == "[DONE]" {
		return nil, true, nil
	}
	var chunk entities.StreamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return nil, false, fmt.Errorf("malformed stream chunk: %w", err)
	}
	return []*entities.StreamChunk{&chunk}, false, nil
}

// upstreamError reads the error body and wraps it as a provider failure
func upstreamError(provider string, resp *http.Response) error {
	text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return domainerrors.ProviderError(
		fmt.Sprintf("%s API error: %d - %s", provider, resp.StatusCode, string(text)), nil)
}
