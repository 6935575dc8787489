// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llm-sentinel-api/internal/infrastructure/persistence/milvus"
	"llm-sentinel-api/internal/infrastructure/persistence/postgres"
	"llm-sentinel-api/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	pg  *postgres.Client
	rds *redis.Client
	mv  *milvus.Client
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(pg *postgres.Client, rds *redis.Client, mv *milvus.Client) *HealthHandler {
	return &HealthHandler{pg: pg, rds: rds, mv: mv}
}

// Health 综合健康检查，逐项报告依赖状态
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	checks := gin.H{}

	if h.pg != nil {
		if err := h.pg.HealthCheck(ctx); err != nil {
			checks["postgres"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			checks["postgres"] = "up"
		}
	}
	if h.rds != nil {
		if err := h.rds.HealthCheck(ctx); err != nil {
			checks["redis"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "up"
		}
	}
	if h.mv != nil {
		if err := h.mv.HealthCheck(ctx); err != nil {
			checks["milvus"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			checks["milvus"] = "up"
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"checks": checks,
	})
}

// Ready 就绪检查，数据库可用即可对外服务
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.pg != nil {
		if err := h.pg.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live 存活检查
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
