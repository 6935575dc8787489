package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"llm-sentinel-api/internal/application/analytics"
	"llm-sentinel-api/internal/interfaces/http/dto"
	"llm-sentinel-api/pkg/logger"
)

// streamInterval 实时流推送间隔
const streamInterval = 10 * time.Second

// MetricsHandler 业务指标处理器
type MetricsHandler struct {
	engine *analytics.Engine
}

// NewMetricsHandler 创建业务指标处理器
func NewMetricsHandler(engine *analytics.Engine) *MetricsHandler {
	return &MetricsHandler{engine: engine}
}

// Summary 总体指标汇总
// GET /v1/metrics/summary?from=&to=
func (h *MetricsHandler) Summary(c *gin.Context) {
	tr, ok := parseTimeRange(c)
	if !ok {
		return
	}

	summary, err := h.engine.Summary(c.Request.Context(), tr)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, summary)
}

// Realtime 实时快照，轮询接口
// GET /v1/metrics/realtime
func (h *MetricsHandler) Realtime(c *gin.Context) {
	snapshot, err := h.engine.Realtime(c.Request.Context())
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, snapshot)
}

// Stream 实时快照 SSE 推送，立即推送一次后按固定间隔推送
// GET /v1/metrics/stream
func (h *MetricsHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		dto.InternalError(c, "streaming not supported")
		return
	}

	ctx := c.Request.Context()

	push := func() bool {
		snapshot, err := h.engine.Realtime(ctx)
		if err != nil {
			logger.Warn(ctx, "realtime snapshot failed", "error", err.Error())
			return true
		}
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !push() {
		return
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !push() {
				return
			}
		}
	}
}
