package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"llm-sentinel-api/internal/application/ingestion"
	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/interfaces/http/dto"
)

// defaultListLimit 默认返回的调用日志条数
const defaultListLimit = 200

// CallHandler 调用日志处理器
type CallHandler struct {
	svc *ingestion.Service
}

// NewCallHandler 创建调用日志处理器
func NewCallHandler(svc *ingestion.Service) *CallHandler {
	return &CallHandler{svc: svc}
}

// Create 写入一条调用日志
// POST /v1/calls
func (h *CallHandler) Create(c *gin.Context) {
	var req dto.CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	call, err := h.svc.CreateCall(c.Request.Context(), &ingestion.CreateCallInput{
		UserID:       req.UserID,
		Provider:     req.Provider,
		Model:        req.Model,
		Prompt:       req.Prompt,
		Response:     req.Response,
		LatencyMs:    req.LatencyMs,
		PromptTokens: req.PromptTokens,
		RespTokens:   req.RespTokens,
		Status:       entity.CallStatus(req.Status),
		Route:        req.Route,
		IP:           c.ClientIP(),
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Created(c, dto.ToCallResponse(call))
}

// List 最近的调用日志，倒序
// GET /v1/calls?limit=200
func (h *CallHandler) List(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			dto.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	calls, err := h.svc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, dto.ToCallListResponse(calls))
}

// Get 调用日志详情
// GET /v1/calls/:id
func (h *CallHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		dto.BadRequest(c, "id is required")
		return
	}

	call, evals, err := h.svc.GetCallWithEvals(c.Request.Context(), id)
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
