// Package entity 定义领域实体
package entity

import "time"

// CallStatus 调用状态
type CallStatus string

const (
	CallStatusSuccess CallStatus = "SUCCESS"
	CallStatusFail    CallStatus = "FAIL"
	CallStatusFlagged CallStatus = "FLAGGED"
)

// ModelCall 一次模型调用的日志记录
type ModelCall struct {
	ID           string     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID       *string    `json:"user_id" gorm:"type:uuid;index"`
	Provider     string     `json:"provider" gorm:"type:varchar(32);not null;default:'local'"`
	Model        string     `json:"model" gorm:"type:varchar(64);index;not null"`
	Prompt       string     `json:"prompt" gorm:"type:text;not null"`
	Response     string     `json:"response" gorm:"type:text;not null"`
	LatencyMs    int        `json:"latency_ms" gorm:"not null;default:0"`
	PromptTokens int        `json:"prompt_tokens" gorm:"not null;default:0"`
	RespTokens   int        `json:"resp_tokens" gorm:"not null;default:0"`
	CostUsd      float64    `json:"cost_usd" gorm:"type:numeric(12,6);not null;default:0"`
	Status       CallStatus `json:"status" gorm:"type:varchar(16);index;not null;default:'SUCCESS'"`
	Hallucinated bool       `json:"hallucinated" gorm:"not null;default:false"`
	Toxic        bool       `json:"toxic" gorm:"not null;default:false"`
	Route        string     `json:"route" gorm:"type:varchar(128)"`
	IP           string     `json:"ip" gorm:"type:varchar(64)"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime;index"`
}

func (ModelCall) TableName() string {
	return "model_calls"
}

// IsError 状态是否计入错误率
func (c *ModelCall) IsError() bool {
	return c.Status != CallStatusSuccess
}
