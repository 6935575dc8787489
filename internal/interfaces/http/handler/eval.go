package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"llm-sentinel-api/internal/application/analytics"
	"llm-sentinel-api/internal/application/evaluation"
	"llm-sentinel-api/internal/application/ingestion"
	"llm-sentinel-api/internal/interfaces/http/dto"
)

// EvalHandler 评估处理器
type EvalHandler struct {
	engine    *evaluation.Engine
	analytics *analytics.Engine
	calls     *ingestion.Service
}

// NewEvalHandler 创建评估处理器
func NewEvalHandler(engine *evaluation.Engine, an *analytics.Engine, calls *ingestion.Service) *EvalHandler {
	return &EvalHandler{engine: engine, analytics: an, calls: calls}
}

// Run 触发一轮评估
// POST /v1/evals/run
func (h *EvalHandler) Run(c *gin.Context) {
	report, err := h.engine.Run(c.Request.Context(), "http")
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, report)
}

// Summary 评估汇总
// GET /v1/evals/summary?days=30
func (h *EvalHandler) Summary(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			dto.BadRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}

	summary, err := h.analytics.EvalSummary(c.Request.Context(), days)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, summary)
}

// Details 单次调用的评估明细
// GET /v1/evaluations/:callId
func (h *EvalHandler) Details(c *gin.Context) {
	callID := c.Param("callId")
	if callID == "" {
		dto.BadRequest(c, "callId is required")
		return
	}

	call, evals, err := h.calls.GetCallWithEvals(c.Request.Context(), callID)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, &dto.EvalDetailsResponse{
		CallID:      call.ID,
		Call:        dto.ToCallResponse(call),
		Evaluations: dto.ToEvalResultResponses(evals),
	})
}
