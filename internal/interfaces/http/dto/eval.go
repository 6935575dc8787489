package dto

import (
	"time"

	"llm-sentinel-api/internal/domain/entity"
)

// EvalResultResponse 单条评估结果
type EvalResultResponse struct {
	Kind      string    `json:"kind"`
	Passed    bool      `json:"passed"`
	Score     float64   `json:"score"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// ToEvalResultResponses 实体列表转响应
func ToEvalResultResponses(results []*entity.EvalResult) []*EvalResultResponse {
	out := make([]*EvalResultResponse, 0, len(results))
	for _, r := range results {
		out = append(out, &EvalResultResponse{
			Kind:      r.Kind,
			Passed:    r.Passed,
			Score:     r.Score,
			Details:   r.Details,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

// EvalDetailsResponse 调用详情及评估明细
type EvalDetailsResponse struct {
	CallID      string                `json:"call_id"`
	Call        *CallResponse         `json:"call"`
	Evaluations []*EvalResultResponse `json:"evaluations"`
}
