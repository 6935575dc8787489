// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"llm-sentinel-api/internal/domain/entity"
)

// ModelRollup 按模型聚合行
type ModelRollup struct {
	Model        string  `json:"model"`
	Calls        int64   `json:"calls"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	AvgCostUsd   float64 `json:"avg_cost_usd"`
	Errors       int64   `json:"errors"`
}

// UserRollup 按用户聚合行
type UserRollup struct {
	UserID       *string `json:"user_id"`
	Calls        int64   `json:"calls"`
	TotalCostUsd float64 `json:"total_cost_usd"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	Errors       int64   `json:"errors"`
}

// DailyRollup 按天聚合行
type DailyRollup struct {
	Day          time.Time `json:"day"`
	Calls        int64     `json:"calls"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	CostUsd      float64   `json:"cost_usd"`
	Errors       int64     `json:"errors"`
}

// OverallStats 全量汇总
type OverallStats struct {
	Total        int64   `json:"total"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	AvgCostUsd   float64 `json:"avg_cost_usd"`
	TotalCostUsd float64 `json:"total_cost_usd"`
	Hallucinated int64   `json:"hallucinated"`
	Toxic        int64   `json:"toxic"`
	Failures     int64   `json:"failures"`
}

// RealtimeStats 实时快照
type RealtimeStats struct {
	TotalCalls   int64   `json:"total_calls"`
	RecentCalls  int64   `json:"recent_calls"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	ErrorCount   int64   `json:"error_count"`
}

// ModelWindowStats 告警观察窗口内的单模型计数
type ModelWindowStats struct {
	Model string `json:"model"`
	Total int64  `json:"total"`
	Fails int64  `json:"fails"`
}

// AlertCallRow 通知流需要的调用事件投影
type AlertCallRow struct {
	ID        string            `json:"id"`
	Status    entity.CallStatus `json:"status"`
	Model     string            `json:"model"`
	UserEmail string            `json:"user_email"`
	CreatedAt time.Time         `json:"created_at"`
}

// ModelCallRepository 调用日志仓储接口
type ModelCallRepository interface {
	Create(ctx context.Context, call *entity.ModelCall) error
	GetByID(ctx context.Context, id string) (*entity.ModelCall, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entity.ModelCall, error)
	// ListRecent 按创建时间倒序返回最近的调用
	ListRecent(ctx context.Context, limit int) ([]*entity.ModelCall, error)

	// DowngradeToFlagged 条件降级：仅当状态仍为 SUCCESS 时置为 FLAGGED。
	// 返回是否实际发生了状态变化。
	DowngradeToFlagged(ctx context.Context, id string) (bool, error)
	// UpdateSafetyFlags 同步反规范化的安全标记
	UpdateSafetyFlags(ctx context.Context, id string, hallucinated, toxic bool) error

	// AggregateByModel 模型维度聚合，models 为可选过滤
	AggregateByModel(ctx context.Context, tr TimeRange, models []string) ([]*ModelRollup, error)
	// AggregateByUser 用户维度聚合
	AggregateByUser(ctx context.Context, tr TimeRange) ([]*UserRollup, error)
	// AggregateDaily 天维度聚合
	AggregateDaily(ctx context.Context, tr TimeRange) ([]*DailyRollup, error)
	// StatusHistogram 状态直方图
	StatusHistogram(ctx context.Context, tr TimeRange) (map[entity.CallStatus]int64, error)
	// OverallStats 全量汇总统计
	OverallStats(ctx context.Context, tr TimeRange) (*OverallStats, error)
	// RealtimeStats 实时快照（recentWindow 内的调用数、errorWindow 内的错误数）
	RealtimeStats(ctx context.Context, recentWindow, errorWindow time.Duration) (*RealtimeStats, error)

	// WindowStatsByModel 观察窗口内按模型的总数与失败数
	WindowStatsByModel(ctx context.Context, since time.Time) ([]*ModelWindowStats, error)
	// ListAlertCalls 窗口内 FAIL/FLAGGED 的调用事件（倒序，limit 上限）
	ListAlertCalls(ctx context.Context, since time.Time, limit int) ([]*AlertCallRow, error)
}
