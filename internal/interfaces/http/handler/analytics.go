package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"llm-sentinel-api/internal/application/analytics"
	"llm-sentinel-api/internal/domain/repository"
	"llm-sentinel-api/internal/interfaces/http/dto"
)

// defaultDailyDays 日聚合默认回看天数
const defaultDailyDays = 14

// AnalyticsHandler 聚合统计处理器
type AnalyticsHandler struct {
	engine *analytics.Engine
}

// NewAnalyticsHandler 创建聚合统计处理器
func NewAnalyticsHandler(engine *analytics.Engine) *AnalyticsHandler {
	return &AnalyticsHandler{engine: engine}
}

// parseTimeRange 解析 from/to 查询参数，RFC3339 格式
func parseTimeRange(c *gin.Context) (repository.TimeRange, bool) {
	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			dto.BadRequest(c, "from must be RFC3339")
			return repository.TimeRange{}, false
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			dto.BadRequest(c, "to must be RFC3339")
			return repository.TimeRange{}, false
		}
		to = t
	}
	return repository.NewTimeRange(from, to), true
}

// Models 按模型聚合
// GET /v1/analytics/models?from=&to=&model=a,b
func (h *AnalyticsHandler) Models(c *gin.Context) {
	tr, ok := parseTimeRange(c)
	if !ok {
		return
	}

	var models []string
	if raw := c.Query("model"); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
	}

	rollups, err := h.engine.ModelRollups(c.Request.Context(), tr, models)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, gin.H{"models": rollups})
}

// Users 按用户聚合
// GET /v1/analytics/users?from=&to=
func (h *AnalyticsHandler) Users(c *gin.Context) {
	tr, ok := parseTimeRange(c)
	if !ok {
		return
	}

	rollups, err := h.engine.UserRollups(c.Request.Context(), tr)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, gin.H{"users": rollups})
}

// Daily 按天聚合
// GET /v1/analytics/daily?days=14
func (h *AnalyticsHandler) Daily(c *gin.Context) {
	days := defaultDailyDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			dto.BadRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}

	series, err := h.engine.DailyRollups(c.Request.Context(), repository.LastDays(days))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, series)
}

// Report 报表汇总
// GET /v1/reports/summary?from=&to=
func (h *AnalyticsHandler) Report(c *gin.Context) {
	tr, ok := parseTimeRange(c)
	if !ok {
		return
	}

	report, err := h.engine.ReportSummary(c.Request.Context(), tr)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, report)
}
