package dto

import (
	"time"

	"llm-sentinel-api/internal/domain/entity"
)

// CreateCallRequest 写入调用日志请求
type CreateCallRequest struct {
	UserID       *string `json:"user_id"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model" binding:"required"`
	Prompt       string  `json:"prompt" binding:"required"`
	Response     string  `json:"response"`
	LatencyMs    int     `json:"latency_ms" binding:"gte=0"`
	PromptTokens int     `json:"prompt_tokens" binding:"gte=0"`
	RespTokens   int     `json:"resp_tokens" binding:"gte=0"`
	Status       string  `json:"status" binding:"omitempty,oneof=SUCCESS FAIL FLAGGED"`
	Route        string  `json:"route"`
	IP           string  `json:"ip"`
}

// CallResponse 调用日志响应
type CallResponse struct {
	ID           string    `json:"id"`
	UserID       *string   `json:"user_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response"`
	LatencyMs    int       `json:"latency_ms"`
	PromptTokens int       `json:"prompt_tokens"`
	RespTokens   int       `json:"resp_tokens"`
	CostUsd      float64   `json:"cost_usd"`
	Status       string    `json:"status"`
	Hallucinated bool      `json:"hallucinated"`
	Toxic        bool      `json:"toxic"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToCallResponse 实体转响应
func ToCallResponse(c *entity.ModelCall) *CallResponse {
	return &CallResponse{
		ID:           c.ID,
		UserID:       c.UserID,
		Provider:     c.Provider,
		Model:        c.Model,
		Prompt:       c.Prompt,
		Response:     c.Response,
		LatencyMs:    c.LatencyMs,
		PromptTokens: c.PromptTokens,
		RespTokens:   c.RespTokens,
		CostUsd:      c.CostUsd,
		Status:       string(c.Status),
		Hallucinated: c.Hallucinated,
		Toxic:        c.Toxic,
		CreatedAt:    c.CreatedAt,
	}
}

// CallListResponse 调用日志列表
type CallListResponse struct {
	Calls []*CallResponse `json:"calls"`
}

// ToCallListResponse 实体列表转响应
func ToCallListResponse(calls []*entity.ModelCall) *CallListResponse {
	out := &CallListResponse{Calls: make([]*CallResponse, 0, len(calls))}
	for _, c := range calls {
		out.Calls = append(out.Calls, ToCallResponse(c))
	}
	return out
}
