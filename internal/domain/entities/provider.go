package entities

import "time"

// Provider identifiers form a closed set of supported upstreams
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderAzure     = "azure"
)

// ProviderCredential holds a configured upstream credential
type ProviderCredential struct {
	Provider      string    `json:"provider"`
	APIKey        string    `json:"-"`
	AzureEndpoint string    `json:"azureEndpoint,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ModelRoute maps a requested model to a provider invocation
type ModelRoute struct {
	Model         string `json:"model"`
	Provider      string `json:"provider"`
	UpstreamModel string `json:"upstreamModel"`
	APIKey        string `json:"-"`
	AzureEndpoint string `json:"-"`
}

// ProviderStatus describes a provider for the public listing endpoint
type ProviderStatus struct {
	Provider string   `json:"provider"`
	Active   bool     `json:"active"`
	Models   []string `json:"models"`
}

type ConfigureProviderInput struct {
	Provider      string   `json:"provider" binding:"required"`
	APIKey        string   `json:"apiKey" binding:"required"`
	AzureEndpoint string   `json:"azureEndpoint"`
	Models        []string `json:"models"`
}

type DeleteProviderInput struct {
	Provider string `json:"provider" binding:"required"`
}
