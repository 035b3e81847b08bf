package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/interfaces/http/response"
	"inferxgate.backend/internal/usecases"
)

// KeyHandler handles virtual key management endpoints
type KeyHandler struct {
	keyUsecase *usecases.VirtualKeyUseCase
}

// NewKeyHandler creates a new key handler
func NewKeyHandler(keyUsecase *usecases.VirtualKeyUseCase) *KeyHandler {
	return &KeyHandler{keyUsecase: keyUsecase}
}

// GenerateKey mints a new virtual key
// POST /auth/key/generate
func (h *KeyHandler) GenerateKey(c *gin.Context) {
	var input entities.CreateVirtualKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	resp, err := h.keyUsecase.Create(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, resp)
}

// KeyInfo returns a single key by ID
// GET /auth/key/info?id=<uuid>
func (h *KeyHandler) KeyInfo(c *gin.Context) {
	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("invalid key id"))
		return
	}

	key, err := h.keyUsecase.Info(c.Request.Context(), id)
	if err != nil {
		if err == domainerrors.ErrNotFound {
			response.Error(c, domainerrors.NotFound("key not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, key)
}

// ListKeys lists keys, optionally filtered by user
// GET /auth/keys?userId=<uuid>
func (h *KeyHandler) ListKeys(c *gin.Context) {
	if userIDStr := c.Query("userId"); userIDStr != "" {
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("invalid user id"))
			return
		}
		keys, err := h.keyUsecase.ListByUser(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"keys": keys})
		return
	}

	keys, err := h.keyUsecase.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"keys": keys})
}

// UpdateKey applies a partial update to a key
// POST /auth/key/update
func (h *KeyHandler) UpdateKey(c *gin.Context) {
	var input entities.UpdateVirtualKeyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	key, err := h.keyUsecase.Update(c.Request.Context(), &input)
	if err != nil {
		if err == domainerrors.ErrNotFound {
			response.Error(c, domainerrors.NotFound("key not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, key)
}

// DeleteKey removes a key
// POST /auth/key/delete
func (h *KeyHandler) DeleteKey(c *gin.Context) {
	var input struct {
		ID uuid.UUID `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.keyUsecase.Delete(c.Request.Context(), input.ID); err != nil {
		if err == domainerrors.ErrNotFound {
			response.Error(c, domainerrors.NotFound("key not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "deleted"})
}
