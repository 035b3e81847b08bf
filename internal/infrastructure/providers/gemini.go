package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
)

// GeminiAdapter translates to and from the Gemini generateContent API
type GeminiAdapter struct {
	apiURL       string
	client       *http.Client
	streamClient *http.Client
	maxAttempts  int
}

// NewGeminiAdapter creates the Gemini adapter
func NewGeminiAdapter(opts Options) *GeminiAdapter {
	opts = opts.withDefaults()
	return &GeminiAdapter{
		apiURL:       geminiAPIURL,
		client:       newHTTPClient(opts.RequestTimeout),
		streamClient: newHTTPClient(opts.StreamTimeout),
		maxAttempts:  opts.MaxAttempts,
	}
}

func (a *GeminiAdapter) Name() string {
	return "gemini"
}

func (a *GeminiAdapter) SupportedModels() []string {
	return geminiModels
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason *string       `json:"finishReason"`
	Index        int           `json:"index"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
}

// convertRequest maps OpenAI messages to Gemini contents. Assistant turns
// become "model" role, everything else becomes "user".
func (a *GeminiAdapter) convertRequest(req *entities.ChatRequest) *geminiRequest {
	contents := make([]geminiContent, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content.Flatten()}},
		})
	}

	return &geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.Stop,
		},
	}
}

// Complete runs a non-streaming completion
func (a *GeminiAdapter) Complete(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*entities.ChatResponse, error) {
	body, err := json.Marshal(a.convertRequest(req))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", a.apiURL, req.Model, creds.APIKey)
	resp, err := sendWithRetry(ctx, a.client, func() (*http.Request, error) {
		return buildJSONRequest(url)
	}, body, a.maxAttempts)
	if err != nil {
		return nil, domainerrors.ProviderError("request to Gemini failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("Gemini", resp)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domainerrors.ProviderError("failed to parse Gemini response", err)
	}
	if len(out.Candidates) == 0 {
		return nil, domainerrors.ProviderError("no candidates in Gemini response", nil)
	}

	candidate := out.Candidates[0]
	var content strings.Builder
	for _, p := range candidate.Content.Parts {
		content.WriteString(p.Text)
	}

	finishReason := "stop"
	if candidate.FinishReason != nil {
		finishReason = translateGeminiFinishReason(*candidate.FinishReason)
	}

	usage := entities.Usage{}
	if out.UsageMetadata != nil {
		usage = entities.Usage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		}
	}

	return &entities.ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []entities.Choice{{
			Index:        0,
			Message:      entities.ResponseMessage{Role: "assistant", Content: content.String()},
			FinishReason: finishReason,
		}},
		Usage: usage,
	}, nil
}

// StreamCompletion opens a streaming completion using the SSE variant
func (a *GeminiAdapter) StreamCompletion(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*Stream, error) {
	body, err := json.Marshal(a.convertRequest(req))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse&key=%s", a.apiURL, req.Model, creds.APIKey)
	resp, err := sendWithRetry(ctx, a.streamClient, func() (*http.Request, error) {
		return buildJSONRequest(url)
	}, body, a.maxAttempts)
	if err != nil {
		return nil, domainerrors.ProviderError("request to Gemini failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError("Gemini", resp)
	}

	return newStream(resp.Body, newGeminiFrameParser(req.Model)), nil
}

func buildJSONRequest(url string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// newGeminiFrameParser translates streamed geminiResponse frames to OpenAI
// chunks. Gemini ends the stream by closing it after the final frame, so a
// frame carrying a finish reason is treated as terminal.
func newGeminiFrameParser(model string) frameParser {
	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	sentRole := false

	return func(_, data string) ([]*entities.StreamChunk, bool, error) {
		if data == "" {
			return nil, false, nil
		}
		var frame geminiResponse
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			return nil, false, fmt.Errorf("malformed stream frame: %w", err)
		}
		if len(frame.Candidates) == 0 {
			return nil, false, nil
		}

		candidate := frame.Candidates[0]
		var text strings.Builder
		for _, p := range candidate.Content.Parts {
			text.WriteString(p.Text)
		}

		delta := entities.Delta{Content: text.String()}
		if !sentRole {
			delta.Role = "assistant"
			sentRole = true
		}

		var finish *string
		done := false
		if candidate.FinishReason != nil {
			reason := translateGeminiFinishReason(*candidate.FinishReason)
			finish = &reason
			done = true
		}

		var usage *entities.Usage
		if done && frame.UsageMetadata != nil {
			usage = &entities.Usage{
				PromptTokens:     frame.UsageMetadata.PromptTokenCount,
				CompletionTokens: frame.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      frame.UsageMetadata.TotalTokenCount,
			}
		}

		chunk := &entities.StreamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []entities.DeltaChoice{{Index: 0, Delta: delta, FinishReason: finish}},
			Usage:   usage,
		}
		return []*entities.StreamChunk{chunk}, done, nil
	}
}

func translateGeminiFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	}
	return strings.ToLower(reason)
}
