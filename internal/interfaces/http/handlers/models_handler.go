package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"inferxgate.backend/internal/interfaces/http/response"
	"inferxgate.backend/internal/usecases"
)

// ModelList is the OpenAI-compatible model listing
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// ModelsHandler serves the model listing endpoint
type ModelsHandler struct {
	registry *usecases.ProviderRegistry
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(registry *usecases.ProviderRegistry) *ModelsHandler {
	return &ModelsHandler{registry: registry}
}

// ListModels lists every routable model
// GET /v1/models
func (h *ModelsHandler) ListModels(c *gin.Context) {
	models := h.registry.Models()
	data := make([]ModelInfo, 0, len(models))
	for _, model := range models {
		owner := "system"
		if route, _, err := h.registry.Route(model); err == nil {
			owner = route.Provider
		}
		data = append(data, ModelInfo{ID: model, Object: "model", OwnedBy: owner})
	}
	response.Success(c, http.StatusOK, ModelList{Object: "list", Data: data})
}
