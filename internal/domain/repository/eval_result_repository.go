// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"llm-sentinel-api/internal/domain/entity"
)

// EvalResultRepository 评估结果仓储接口
type EvalResultRepository interface {
	// Upsert 按 (call_id, kind) 组合键写入，存在即覆盖。
	// 并发重复评估依赖存储层唯一约束保证不产生重复行。
	Upsert(ctx context.Context, result *entity.EvalResult) error
	// ListByCall 某次调用的全部评估结果（按创建时间升序）
	ListByCall(ctx context.Context, callID string) ([]*entity.EvalResult, error)
	// ListSince 窗口内全部评估结果（按创建时间倒序）
	ListSince(ctx context.Context, since time.Time) ([]*entity.EvalResult, error)
}
