package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecomscraperpro/ecomscraperpro/internal/database"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	db *database.Database
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(db *database.Database) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health 健康检查：数据库不可达时返回503
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.db.Health(); err != nil {
		respondError(c, http.StatusServiceUnavailable, "database unhealthy: "+err.Error())
		return
	}
	respondOK(c, gin.H{
		"status": "healthy",
		"pool":   h.db.PoolStats(),
	})
}
