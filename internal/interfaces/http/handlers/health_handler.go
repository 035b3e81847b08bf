package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"inferxgate.backend/internal/interfaces/http/response"
	"inferxgate.backend/pkg/redis"
)

// HealthHandler serves liveness and dependency checks
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health reports gateway and dependency status
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			dbStatus = "unavailable"
		}
	} else {
		dbStatus = "unavailable"
	}

	redisStatus := "ok"
	client := redis.GetClient()
	if client == nil || client.Ping(c.Request.Context()).Err() != nil {
		redisStatus = "unavailable"
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
