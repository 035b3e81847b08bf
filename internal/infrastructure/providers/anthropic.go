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

const anthropicDefaultMaxTokens = 1024

// AnthropicAdapter translates to and from the Anthropic messages API
type AnthropicAdapter struct {
	apiURL       string
	client       *http.Client
	streamClient *http.Client
	maxAttempts  int
}

// NewAnthropicAdapter creates the Anthropic adapter
func NewAnthropicAdapter(opts Options) *AnthropicAdapter {
	opts = opts.withDefaults()
	return &AnthropicAdapter{
		apiURL:       anthropicAPIURL,
		client:       newHTTPClient(opts.RequestTimeout),
		streamClient: newHTTPClient(opts.StreamTimeout),
		maxAttempts:  opts.MaxAttempts,
	}
}

func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

func (a *AnthropicAdapter) SupportedModels() []string {
	return anthropicModels
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason *string            `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

// buildRequest converts OpenAI messages, pulling system messages into the
// dedicated system field and flattening multimodal parts to text.
func (a *AnthropicAdapter) convertRequest(req *entities.ChatRequest, stream bool) *anthropicRequest {
	var system string
	messages := make([]anthropicMessage, 0, len(req.Messages))

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			system = msg.Content.Flatten()
			continue
		}
		role := "user"
		if msg.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, anthropicMessage{
			Role:    role,
			Content: msg.Content.Flatten(),
		})
	}

	maxTokens := anthropicDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return &anthropicRequest{
		Model:         req.Model,
		Messages:      messages,
		System:        system,
		MaxTokens:     maxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        stream,
	}
}

// Complete runs a non-streaming completion
func (a *AnthropicAdapter) Complete(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*entities.ChatResponse, error) {
	body, err := json.Marshal(a.convertRequest(req, false))
	if err != nil {
		return nil, err
	}

	resp, err := sendWithRetry(ctx, a.client, func() (*http.Request, error) {
		return a.buildRequest(creds)
	}, body, a.maxAttempts)
	if err != nil {
		return nil, domainerrors.ProviderError("request to Anthropic failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("Anthropic", resp)
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domainerrors.ProviderError("failed to parse Anthropic response", err)
	}

	var content strings.Builder
	for _, c := range out.Content {
		content.WriteString(c.Text)
	}

	finishReason := "stop"
	if out.StopReason != nil {
		finishReason = translateAnthropicStopReason(*out.StopReason)
	}

	return &entities.ChatResponse{
		ID:      out.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   out.Model,
		Choices: []entities.Choice{{
			Index:        0,
			Message:      entities.ResponseMessage{Role: "assistant", Content: content.String()},
			FinishReason: finishReason,
		}},
		Usage: entities.Usage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.InputTokens + out.Usage.OutputTokens,
		},
	}, nil
}

// StreamCompletion opens a streaming completion
func (a *AnthropicAdapter) StreamCompletion(ctx context.Context, req *entities.ChatRequest, creds Credentials) (*Stream, error) {
	body, err := json.Marshal(a.convertRequest(req, true))
	if err != nil {
		return nil, err
	}

	resp, err := sendWithRetry(ctx, a.streamClient, func() (*http.Request, error) {
		return a.buildRequest(creds)
	}, body, a.maxAttempts)
	if err != nil {
		return nil, domainerrors.ProviderError("request to Anthropic failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError("Anthropic", resp)
	}

	return newStream(resp.Body, newAnthropicFrameParser(req.Model)), nil
}

func (a *AnthropicAdapter) buildRequest(creds Credentials) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, a.apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", creds.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type       string  `json:"type"`
		Text       *string `json:"text"`
		StopReason *string `json:"stop_reason"`
	} `json:"delta"`
	Message *struct {
		ID    string         `json:"id"`
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Usage *anthropicUsage `json:"usage"`
}

// newAnthropicFrameParser builds a stateful parser translating Anthropic
// stream events to OpenAI chunks
func newAnthropicFrameParser(model string) frameParser {
	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	var inputTokens int
	sentRole := false

	chunk := func(delta entities.Delta, finish *string, usage *entities.Usage) *entities.StreamChunk {
		return &entities.StreamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []entities.DeltaChoice{{Index: 0, Delta: delta, FinishReason: finish}},
			Usage:   usage,
		}
	}

	return func(event, data string) ([]*entities.StreamChunk, bool, error) {
		if data == "" {
			return nil, false, nil
		}
		var ev anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, false, fmt.Errorf("malformed stream event: %w", err)
		}

		eventType := ev.Type
		if eventType == "" {
			eventType = event
		}

		switch eventType {
		case "message_start":
			if ev.Message != nil {
				inputTokens = ev.Message.Usage.InputTokens
			}
			sentRole = true
			return []*entities.StreamChunk{chunk(entities.Delta{Role: "assistant"}, nil, nil)}, false, nil

		case "content_block_delta":
			if ev.Delta == nil || ev.Delta.Text == nil {
				return nil, false, nil
			}
			d := entities.Delta{Content: *ev.Delta.Text}
			if !sentRole {
				d.Role = "assistant"
				sentRole = true
			}
			return []*entities.StreamChunk{chunk(d, nil, nil)}, false, nil

		case "message_delta":
			var finish *string
			if ev.Delta != nil && ev.Delta.StopReason != nil {
				reason := translateAnthropicStopReason(*ev.Delta.StopReason)
				finish = &reason
			}
			var usage *entities.Usage
			if ev.Usage != nil {
				usage = &entities.Usage{
					PromptTokens:     inputTokens,
					CompletionTokens: ev.Usage.OutputTokens,
					TotalTokens:      inputTokens + ev.Usage.OutputTokens,
				}
			}
			if finish == nil && usage == nil {
				return nil, false, nil
			}
			return []*entities.StreamChunk{chunk(entities.Delta{}, finish, usage)}, false, nil

		case "message_stop":
			return nil, true, nil

		case "error":
			return nil, false, fmt.Errorf("upstream stream error: %s", data)
		}

		// ping, content_block_start, content_block_stop
		return nil, false, nil
	}
}

func translateAnthropicStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	}
	return reason
}
