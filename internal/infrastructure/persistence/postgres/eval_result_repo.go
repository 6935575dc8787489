// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"llm-sentinel-api/internal/domain/entity"
)

type EvalResultRepository struct {
	client *Client
}

func NewEvalResultRepository(client *Client) *EvalResultRepository {
	return &EvalResultRepository{client: client}
}

// Upsert 按 (call_id, kind) 覆盖写入。
// 依赖唯一约束 + ON CONFLICT 原子更新，并发重复评估不会产生重复行。
func (r *EvalResultRepository) Upsert(ctx context.Context, result *entity.EvalResult) error {
	ctx, span := tracer.Start(ctx, "postgres.EvalResultRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db)

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "call_id"}, {Name: "kind"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"passed":     result.Passed,
			"score":      result.Score,
			"details":    result.Details,
			"created_at": time.Now(),
		}),
	}).Create(result).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert eval result: %w", err)
	}
	return nil
}

func (r *EvalResultRepository) ListByCall(ctx context.Context, callID string) ([]*entity.EvalResult, error) {
	ctx, span := tracer.Start(ctx, "postgres.EvalResultRepository.ListByCall")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var results []*entity.EvalResult
	if err := db.Where("call_id = ?", callID).Order("created_at ASC").Find(&results).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list eval results: %w", err)
	}
	return results, nil
}

func (r *EvalResultRepository) ListSince(ctx context.Context, since time.Time) ([]*entity.EvalResult, error) {
	ctx, span := tracer.Start(ctx, "postgres.EvalResultRepository.ListSince")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var results []*entity.EvalResult
	if err := db.Where("created_at >= ?", since).Order("created_at DESC").Find(&results).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list eval results since: %w", err)
	}
	return results, nil
}
