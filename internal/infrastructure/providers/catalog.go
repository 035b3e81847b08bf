package providers

import "strings"

// Upstream API endpoints
const (
	openAIAPIURL    = "https://api.openai.com/v1/chat/completions"
	anthropicAPIURL = "https://api.anthropic.com/v1/messages"
	geminiAPIURL    = "https://generativelanguage.googleapis.com/v1beta/models"

	azureAPIVersion = "2024-10-21"

	anthropicVersion = "2023-06-01"
)

// Display endpoints for the public provider listing
var Endpoints = map[string]string{
	"openai":    "https://api.openai.com",
	"anthropic": "https://api.anthropic.com",
	"gemini":    "https://generativelanguage.googleapis.com",
	"azure":     "https://{resource}.openai.azure.com",
}

var openAIModels = []string{
	"gpt-5",
	"gpt-5-mini",
	"gpt-5-nano",
	"gpt-5-chat",
	"gpt-4.1",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-4-turbo-preview",
	"gpt-4-vision-preview",
}

var anthropicModels = []string{
	"claude-sonnet-4-5-20250929",
	"claude-haiku-4-5-20251001",
	"claude-opus-4-1-20250805",
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-5-haiku-20241022",
	"claude-3-haiku-20240307",
}

var geminiModels = []string{
	"gemini-3-pro-preview",
	"gemini-3-pro-image-preview",
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.5-flash-image",
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
}

// Azure models carry an azure- prefix so they never collide with the
// matching OpenAI model names.
var azureModels = []string{
	"azure-gpt-4o",
	"azure-gpt-4o-mini",
	"azure-gpt-4-turbo",
	"azure-gpt-4",
	"azure-gpt-35-turbo",
}

// azureDeploymentName maps an azure- prefixed model to its deployment name
func azureDeploymentName(model string) string {
	switch model {
	case "azure-gpt-4o":
		return "gpt-4o"
	case "azure-gpt-4o-mini":
		return "gpt-4o-mini"
	case "azure-gpt-4-turbo":
		return "gpt-4-turbo"
	case "azure-gpt-4":
		return "gpt-4"
	case "azure-gpt-35-turbo":
		return "gpt-35-turbo"
	}
	return strings.TrimPrefix(model, "azure-")
}

// SupportedModels lists the models a provider serves by default
func SupportedModels(provider string) []string {
	switch provider {
	case "openai":
		return openAIModels
	case "anthropic":
		return anthropicModels
	case "gemini":
		return geminiModels
	case "azure":
		return azureModels
	}
	return nil
}
