package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/domain/repositories"
	"inferxgate.backend/internal/interfaces/http/response"
	"inferxgate.backend/pkg/utils"
)

// StatsHandler serves the usage stats endpoint
type StatsHandler struct {
	usageRepo repositories.UsageRepository
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(usageRepo repositories.UsageRepository) *StatsHandler {
	return &StatsHandler{usageRepo: usageRepo}
}

// GetStats returns usage aggregates plus a page of recent records
// GET /stats?page=1&limit=50
func (h *StatsHandler) GetStats(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	params := utils.GetPaginationParams(page, limit)

	stats, err := h.usageRepo.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, domainerrors.InternalError(err))
		return
	}

	recent, total, err := h.usageRepo.FindRecent(c.Request.Context(), params)
	if err != nil {
		response.Error(c, domainerrors.InternalError(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"stats":      stats,
		"recent":     recent,
		"pagination": utils.CalculateMeta(total, params.Page, params.Limit),
	})
}
