// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"
)

// TxKey 事务上下文键类型
type TxKey struct{}

// Transactor 事务管理接口
type Transactor interface {
	// WithTransaction 在事务中执行操作
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TimeRange 查询时间窗口，[From, To) 半开区间；零值表示不限制
type TimeRange struct {
	From time.Time
	To   time.Time
}

// NewTimeRange 创建时间窗口
func NewTimeRange(from, to time.Time) TimeRange {
	return TimeRange{From: from, To: to}
}

// IsZero 是否未设置任何边界
func (r TimeRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// LastDays 最近 n 天（含今天）的窗口
func LastDays(n int) TimeRange {
	now := time.Now()
	return TimeRange{From: now.AddDate(0, 0, -n), To: now}
}
