// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/domain/repository"
	apperrors "llm-sentinel-api/pkg/errors"
)

type ModelCallRepository struct {
	client *Client
}

func NewModelCallRepository(client *Client) *ModelCallRepository {
	return &ModelCallRepository{client: client}
}

func (r *ModelCallRepository) Create(ctx context.Context, call *entity.ModelCall) error {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(call).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create model call: %w", err)
	}
	return nil
}

func (r *ModelCallRepository) GetByID(ctx context.Context, id string) (*entity.ModelCall, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var call entity.ModelCall
	if err := db.Where("id = ?", id).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCallNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get model call: %w", err)
	}
	return &call, nil
}

func (r *ModelCallRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.ModelCall, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []*entity.ModelCall{}, nil
	}

	db := getDB(ctx, r.client.db)

	var calls []*entity.ModelCall
	if err := db.Where("id IN ?", ids).Find(&calls).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get model calls: %w", err)
	}
	return calls, nil
}

func (r *ModelCallRepository) ListRecent(ctx context.Context, limit int) ([]*entity.ModelCall, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.ListRecent")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}

	db := getDB(ctx, r.client.db)

	var calls []*entity.ModelCall
	if err := db.Order("created_at DESC").Limit(limit).Find(&calls).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list recent calls: %w", err)
	}
	return calls, nil
}

// DowngradeToFlagged 仅当状态仍为 SUCCESS 时降级为 FLAGGED，
// 避免覆盖日志层并发写入的 FAIL 状态。
func (r *ModelCallRepository) DowngradeToFlagged(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.DowngradeToFlagged")
	defer span.End()

	db := getDB(ctx, r.client.db)

	res := db.Model(&entity.ModelCall{}).
		Where("id = ? AND status = ?", id, entity.CallStatusSuccess).
		Update("status", entity.CallStatusFlagged)
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, fmt.Errorf("failed to flag model call: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ModelCallRepository) UpdateSafetyFlags(ctx context.Context, id string, hallucinated, toxic bool) error {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.UpdateSafetyFlags")
	defer span.End()

	db := getDB(ctx, r.client.db)

	err := db.Model(&entity.ModelCall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"hallucinated": hallucinated,
			"toxic":        toxic,
		}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update safety flags: %w", err)
	}
	return nil
}

// applyTimeRange 将时间窗口过滤应用到查询，[from, to) 半开区间
func applyTimeRange(db *gorm.DB, tr repository.TimeRange) *gorm.DB {
	if !tr.From.IsZero() {
		db = db.Where("created_at >= ?", tr.From)
	}
	if !tr.To.IsZero() {
		db = db.Where("created_at < ?", tr.To)
	}
	return db
}

func (r *ModelCallRepository) AggregateByModel(ctx context.Context, tr repository.TimeRange, models []string) ([]*repository.ModelRollup, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.AggregateByModel")
	defer span.End()

	db := applyTimeRange(getDB(ctx, r.client.db).Model(&entity.ModelCall{}), tr)
	if len(models) > 0 {
		db = db.Where("model IN ?", models)
	}

	var rows []*repository.ModelRollup
	err := db.Select(
		"model",
		"COUNT(*) AS calls",
		"COALESCE(AVG(latency_ms), 0) AS avg_latency_ms",
		"COALESCE(AVG(cost_usd), 0) AS avg_cost_usd",
		"SUM(CASE WHEN status <> 'SUCCESS' THEN 1 ELSE 0 END) AS errors",
	).Group("model").Order("calls DESC").Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate by model: %w", err)
	}
	return rows, nil
}

func (r *ModelCallRepository) AggregateByUser(ctx context.Context, tr repository.TimeRange) ([]*repository.UserRollup, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.AggregateByUser")
	defer span.End()

	db := applyTimeRange(getDB(ctx, r.client.db).Model(&entity.ModelCall{}), tr)

	var rows []*repository.UserRollup
	err := db.Select(
		"user_id",
		"COUNT(*) AS calls",
		"COALESCE(SUM(cost_usd), 0) AS total_cost_usd",
		"COALESCE(AVG(latency_ms), 0) AS avg_latency_ms",
		"SUM(CASE WHEN status <> 'SUCCESS' THEN 1 ELSE 0 END) AS errors",
	).Group("user_id").Order("calls DESC").Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate by user: %w", err)
	}
	return rows, nil
}

func (r *ModelCallRepository) AggregateDaily(ctx context.Context, tr repository.TimeRange) ([]*repository.DailyRollup, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.AggregateDaily")
	defer span.End()

	db := applyTimeRange(getDB(ctx, r.client.db).Model(&entity.ModelCall{}), tr)

	var rows []*repository.DailyRollup
	err := db.Select(
		"date_trunc('day', created_at) AS day",
		"COUNT(*) AS calls",
		"COALESCE(AVG(latency_ms), 0) AS avg_latency_ms",
		"COALESCE(SUM(cost_usd), 0) AS cost_usd",
		"SUM(CASE WHEN status <> 'SUCCESS' THEN 1 ELSE 0 END) AS errors",
	).Group("day").Order("day ASC").Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate daily: %w", err)
	}
	return rows, nil
}

func (r *ModelCallRepository) StatusHistogram(ctx context.Context, tr repository.TimeRange) (map[entity.CallStatus]int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.StatusHistogram")
	defer span.End()

	db := applyTimeRange(getDB(ctx, r.client.db).Model(&entity.ModelCall{}), tr)

	var rows []struct {
		Status entity.CallStatus
		Count  int64
	}
	if err := db.Select("status", "COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build status histogram: %w", err)
	}

	hist := map[entity.CallStatus]int64{
		entity.CallStatusSuccess: 0,
		entity.CallStatusFail:    0,
		entity.CallStatusFlagged: 0,
	}
	for _, row := range rows {
		hist[row.Status] = row.Count
	}
	return hist, nil
}

func (r *ModelCallRepository) OverallStats(ctx context.Context, tr repository.TimeRange) (*repository.OverallStats, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.OverallStats")
	defer span.End()

	db := applyTimeRange(getDB(ctx, r.client.db).Model(&entity.ModelCall{}), tr)

	var stats repository.OverallStats
	err := db.Select(
		"COUNT(*) AS total",
		"COALESCE(AVG(latency_ms), 0) AS avg_latency_ms",
		"COALESCE(AVG(cost_usd), 0) AS avg_cost_usd",
		"COALESCE(SUM(cost_usd), 0) AS total_cost_usd",
		"SUM(CASE WHEN hallucinated THEN 1 ELSE 0 END) AS hallucinated",
		"SUM(CASE WHEN toxic THEN 1 ELSE 0 END) AS toxic",
		"SUM(CASE WHEN status <> 'SUCCESS' THEN 1 ELSE 0 END) AS failures",
	).Scan(&stats).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to compute overall stats: %w", err)
	}
	return &stats, nil
}

func (r *ModelCallRepository) RealtimeStats(ctx context.Context, recentWindow, errorWindow time.Duration) (*repository.RealtimeStats, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.RealtimeStats")
	defer span.End()

	db := getDB(ctx, r.client.db)
	now := time.Now()

	var stats repository.RealtimeStats
	if err := db.Model(&entity.ModelCall{}).
		Select("COUNT(*) AS total_calls", "COALESCE(AVG(latency_ms), 0) AS avg_latency_ms").
		Scan(&stats).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to compute realtime stats: %w", err)
	}

	if err := db.Model(&entity.ModelCall{}).
		Where("created_at >= ?", now.Add(-recentWindow)).
		Count(&stats.RecentCalls).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count recent calls: %w", err)
	}

	if err := db.Model(&entity.ModelCall{}).
		Where("status <> ? AND created_at >= ?", entity.CallStatusSuccess, now.Add(-errorWindow)).
		Count(&stats.ErrorCount).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count recent errors: %w", err)
	}

	return &stats, nil
}

func (r *ModelCallRepository) WindowStatsByModel(ctx context.Context, since time.Time) ([]*repository.ModelWindowStats, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.WindowStatsByModel")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var rows []*repository.ModelWindowStats
	err := db.Model(&entity.ModelCall{}).
		Select(
			"model",
			"COUNT(*) AS total",
			"SUM(CASE WHEN status = 'FAIL' THEN 1 ELSE 0 END) AS fails",
		).
		Where("created_at >= ?", since).
		Group("model").Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to compute window stats: %w", err)
	}
	return rows, nil
}

func (r *ModelCallRepository) ListAlertCalls(ctx context.Context, since time.Time, limit int) ([]*repository.AlertCallRow, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelCallRepository.ListAlertCalls")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	db := getDB(ctx, r.client.db)

	var rows []*repository.AlertCallRow
	err := db.Model(&entity.ModelCall{}).
		Select(
			"model_calls.id",
			"model_calls.status",
			"model_calls.model",
			"model_calls.created_at",
			"COALESCE(users.email, '') AS user_email",
		).
		Joins("LEFT JOIN users ON users.id = model_calls.user_id").
		Where("model_calls.created_at >= ? AND model_calls.status IN ?", since,
			[]entity.CallStatus{entity.CallStatusFail, entity.CallStatusFlagged}).
		Order("model_calls.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list alert calls: %w", err)
	}
	return rows, nil
}
