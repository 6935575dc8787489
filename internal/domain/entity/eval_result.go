// Package entity 定义领域实体
package entity

import "time"

// EvalKind 评估维度标签。
// 使用字符串而非数据库枚举，新增检测维度无需变更 schema。
type EvalKind = string

const (
	EvalKindToxicity      EvalKind = "TOXICITY"
	EvalKindPII           EvalKind = "PII"
	EvalKindInjection     EvalKind = "INJECTION"
	EvalKindGrounding     EvalKind = "GROUNDING"
	EvalKindHallucination EvalKind = "HALLUCINATION"
)

// EvalResult 单次调用在单一评估维度上的结果。
// (call_id, kind) 唯一，重复评估按组合键覆盖写入。
type EvalResult struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CallID    string    `json:"call_id" gorm:"type:uuid;not null;uniqueIndex:uq_eval_call_kind,priority:1"`
	Kind      EvalKind  `json:"kind" gorm:"type:varchar(32);not null;uniqueIndex:uq_eval_call_kind,priority:2"`
	Passed    bool      `json:"passed" gorm:"not null"`
	Score     float64   `json:"score" gorm:"type:numeric(5,4);not null;default:0"`
	Details   string    `json:"details" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

func (EvalResult) TableName() string {
	return "eval_results"
}
