package handler

import (
	"github.com/gin-gonic/gin"

	"llm-sentinel-api/internal/application/alerting"
	"llm-sentinel-api/internal/interfaces/http/dto"
)

// NotificationHandler 告警通知处理器
type NotificationHandler struct {
	detector *alerting.Detector
}

// NewNotificationHandler 创建告警通知处理器
func NewNotificationHandler(detector *alerting.Detector) *NotificationHandler {
	return &NotificationHandler{detector: detector}
}

// Feed 告警通知流，按时间倒序且按指纹去重
// GET /v1/notifications
func (h *NotificationHandler) Feed(c *gin.Context) {
	events, err := h.detector.Feed(c.Request.Context())
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, gin.H{"notifications": events})
}
