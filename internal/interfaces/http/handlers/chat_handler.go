package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/interfaces/http/middleware"
	"inferxgate.backend/internal/interfaces/http/response"
	"inferxgate.backend/internal/usecases"
	"inferxgate.backend/pkg/logger"
)

// ChatHandler handles the OpenAI-compatible completion endpoint
type ChatHandler struct {
	chatUsecase *usecases.ChatUseCase
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatUsecase *usecases.ChatUseCase) *ChatHandler {
	return &ChatHandler{chatUsecase: chatUsecase}
}

// ChatCompletions serves a chat completion, streaming or not
// POST /v1/chat/completions
func (h *ChatHandler) ChatCompletions(c *gin.Context) {
	var req entities.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	key, ok := middleware.GetVirtualKey(c)
	if !ok {
		response.Error(c, domainerrors.InvalidAPIKey())
		return
	}

	if req.Stream {
		h.streamCompletion(c, key, &req)
		return
	}

	resp, adm, err := h.chatUsecase.Complete(c.Request.Context(), key, &req)
	setRateLimitHeaders(c, adm, err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func (h *ChatHandler) streamCompletion(c *gin.Context, key *entities.VirtualKey, req *entities.ChatRequest) {
	ctx := c.Request.Context()
	stream, adm, err := h.chatUsecase.StreamChat(ctx, key, req)
	setRateLimitHeaders(c, adm, err)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer stream.Close(ctx)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	for {
		chunk, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			writeSSE(c, []byte("[DONE]"))
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
		if err != nil {
			// headers are gone, so the failure goes out as a final event
			h.writeStreamError(c, err)
			if flusher != nil {
				flusher.Flush()
			}
			return
		}

		raw, err := json.Marshal(chunk)
		if err != nil {
			logger.Error(ctx, "stream chunk marshal failed", zap.Error(err))
			return
		}
		writeSSE(c, raw)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *ChatHandler) writeStreamError(c *gin.Context, err error) {
	appErr := domainerrors.AsAppError(err)
	body, marshalErr := json.Marshal(response.ErrorBody{
		Error: response.ErrorDetail{
			Message: appErr.Message,
			Type:    "api_error",
			Code:    appErr.Code,
		},
	})
	if marshalErr != nil {
		return
	}
	writeSSE(c, body)
}

func writeSSE(c *gin.Context, data []byte) {
	c.Writer.WriteString("data: ")
	c.Writer.Write(data)
	c.Writer.WriteString("\n\n")
}

// setRateLimitHeaders surfaces the admission window state. On a rate
// limit rejection the admission travels inside the error instead.
func setRateLimitHeaders(c *gin.Context, adm *usecases.Admission, err error) {
	var admErr *usecases.AdmissionError
	if errors.As(err, &admErr) {
		adm = admErr.Admission
		c.Header("Retry-After", strconv.FormatInt(admErr.Admission.RetryAfter, 10))
	}
	if adm == nil {
		return
	}
	if adm.RequestsRemaining != nil {
		c.Header("X-RateLimit-Remaining-Requests", strconv.Itoa(*adm.RequestsRemaining))
	}
	if adm.TokensRemaining != nil {
		c.Header("X-RateLimit-Remaining-Tokens", strconv.Itoa(*adm.TokensRemaining))
	}
	c.Header("X-RateLimit-Reset", strconv.FormatInt(adm.ResetAt, 10))
}
