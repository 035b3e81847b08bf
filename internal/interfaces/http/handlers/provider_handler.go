package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/interfaces/http/response"
	"inferxgate.backend/internal/usecases"
)

// ProviderHandler handles provider listing and configuration
type ProviderHandler struct {
	registry *usecases.ProviderRegistry
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(registry *usecases.ProviderRegistry) *ProviderHandler {
	return &ProviderHandler{registry: registry}
}

// ListProviders lists the provider set and which members are active
// GET /v1/providers
func (h *ProviderHandler) ListProviders(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"providers": h.registry.Providers()})
}

// ConfigureProvider stores a credential and rebuilds the routes
// POST /v1/providers/configure
func (h *ProviderHandler) ConfigureProvider(c *gin.Context) {
	var input entities.ConfigureProviderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.registry.Configure(c.Request.Context(), &input); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"provider": input.Provider,
		"status":   "configured",
	})
}

// DeleteProvider removes a stored credential
// POST /v1/providers/delete
func (h *ProviderHandler) DeleteProvider(c *gin.Context) {
	var input entities.DeleteProviderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	if err := h.registry.Remove(c.Request.Context(), input.Provider); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"provider": input.Provider,
		"status":   "deleted",
	})
}
