package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
)

// AzureAdapter targets Azure OpenAI deployments. The request and response
// formats match OpenAI; only the URL scheme and auth header differ.
type AzureAdapter struct {
	// baseURL overrides the resource-derived URL in tests
	baseURL      string
	client       *http.Client
	streamClient *http.Client
	maxAttempts  int
}

// NewAzureAdapter creates the Azure OpenAI adapter
func NewAzureAdapter(opts Options) *AzureAdapter {
	opts = opts.withDefaults()
	return &AzureAdapter{
		client:       newHTTPClient(opts.RequestTimeout),
		streamClient: newHTTPClient(opts.StreamTimeout),
		maxAttempts:  opts.MaxAttempts,
	}
}

func (a *AzureAdapter) Name() string {
	return "azure"
}

func (a *AzureAdapter) SupportedModels() []string {
	return azureModels
}

// resolveCredentials accepts either the split Credentials form or the
// combined "resource_name:api_key" form
func (a *AzureAdapter) resolveCredentials(creds Credentials) (resource, apiKey string, err error) {
	if creds.AzureEndpoint != "" {
		return creds.AzureEndpoint, creds.APIKey, nil
	}
	resource, apiKey, found := strings.Cut(creds.APIKey, ":")
	if !found {
		return "", "", domainerrors.ProviderError(
			"Azure credentials must include a resource name, reconfigure the azure provider", nil)
	}
	return resource, apiKey, nil
}

func (a *AzureAdapter) buildURL(resource, model string) string {
	deployment := azureDeploymentName(model)
	if a.baseURL != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", a.baseURL, deployment, azureAPIVersion)
	}
	return fmt.Sprintf("https://%s.openai.azure.com/openai/deployments/%s/chat/completions?api-version=%s",
		resource, deployment, azureAPIVersion)
}

// Complete runs a non-streaming completion
func (a *AzureAdapter) Complete(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*entities.ChatResponse, error) {
	resource, apiKey, err := a.resolveCredentials(creds)
	if err != nil {
		return nil, err
	}

	outbound := *req
	outbound.Stream = false
	body, err := json.Marshal(&outbound)
	if err != nil {
		return nil, err
	}

	url := a.buildURL(resource, req.Model)
	resp, err := sendWithRetry(ctx, a.client, func() (*http.Request, error) {
		return a.buildRequest(url, apiKey)
	}, body, a.maxAttempts)
	if err != nil {
		return nil, domainerrors.ProviderError("request to Azure OpenAI failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("Azure OpenAI", resp)
	}

	var out entities.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domainerrors.ProviderError("failed to parse Azure OpenAI response", err)
	}
	// reflect the gateway-facing model name, not the deployment
	out.Model = req.Model
	return &out, nil
}

// StreamCompletion opens a streaming completion
func (a *AzureAdapter) StreamCompletion(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*Stream, error) {
	resource, apiKey, err := a.resolveCredentials(creds)
	if err != nil {
		return nil, err
	}

	outbound := *req
	outbound.Stream = true
	body, err := json.Marshal(&outbound)
	if err != nil {
		return nil, err
	}

	url := a.buildURL(resource, req.Model)
	resp, err := sendWithRetry(ctx, a.streamClient, func() (*http.Request, error) {
		return a.buildRequest(url, apiKey)
	}, body, a.maxAttempts)
	if err != nil {
		return nil, domainerrors.ProviderError("request to Azure OpenAI failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError("Azure OpenAI", resp)
	}

	return newStream(resp.Body, parseOpenAIFrame), nil
}

func (a *AzureAdapter) buildRequest(url, apiKey string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
