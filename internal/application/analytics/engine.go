package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/domain/repository"
	"llm-sentinel-api/internal/infrastructure/persistence/redis"
	"llm-sentinel-api/pkg/logger"
)

var tracer = otel.Tracer("analytics")

const (
	aggCacheTTL  = 30 * time.Second
	trendDays    = 7
	riskyCallCap = 10
	riskPerKind  = 25
)

// Engine 聚合引擎
type Engine struct {
	calls repository.ModelCallRepository
	evals repository.EvalResultRepository
	users repository.UserRepository
	cache *redis.Cache
}

func NewEngine(
	calls repository.ModelCallRepository,
	evals repository.EvalResultRepository,
	users repository.UserRepository,
	cache *redis.Cache,
) *Engine {
	return &Engine{
		calls: calls,
		evals: evals,
		users: users,
		cache: cache,
	}
}

// cachedLoad 短 TTL 读穿缓存。缓存不可用时直接回源，不向上传播缓存错误。
func (e *Engine) cachedLoad(ctx context.Context, key string, out interface{}, load func() (interface{}, error)) error {
	if e.cache == nil {
		data, err := load()
		if err != nil {
			return err
		}
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}

	b, err := e.cache.GetOrLoadSafe(ctx, key, aggCacheTTL, load)
	if err != nil {
		logger.Warn(ctx, "analytics cache degraded", "key", key, "error", err.Error())
		data, lerr := load()
		if lerr != nil {
			return lerr
		}
		raw, lerr := json.Marshal(data)
		if lerr != nil {
			return lerr
		}
		return json.Unmarshal(raw, out)
	}
	return json.Unmarshal(b, out)
}

// ModelRollups 模型维度汇总，models 为可选过滤
func (e *Engine) ModelRollups(ctx context.Context, tr repository.TimeRange, models []string) ([]ModelSummary, error) {
	ctx, span := tracer.Start(ctx, "analytics.ModelRollups")
	defer span.End()

	rows, err := e.calls.AggregateByModel(ctx, tr, models)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]ModelSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, ModelSummary{
			Model:        r.Model,
			Calls:        r.Calls,
			AvgLatencyMs: int64(math.Round(r.AvgLatencyMs)),
			AvgCostUsd:   r.AvgCostUsd,
			ErrorRate:    safeRate(r.Errors, r.Calls),
		})
	}
	return out, nil
}

// UserRollups 用户维度汇总
func (e *Engine) UserRollups(ctx context.Context, tr repository.TimeRange) ([]UserSummary, error) {
	ctx, span := tracer.Start(ctx, "analytics.UserRollups")
	defer span.End()

	rows, err := e.calls.AggregateByUser(ctx, tr)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	users, err := e.users.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	emailByID := make(map[string]string, len(users))
	for _, u := range users {
		emailByID[u.ID] = u.Email
	}

	out := make([]UserSummary, 0, len(rows))
	for _, r := range rows {
		name := "anon"
		if r.UserID != nil {
			if email, ok := emailByID[*r.UserID]; ok {
				name = email
			}
		}
		out = append(out, UserSummary{
			User:         name,
			Calls:        r.Calls,
			TotalCostUsd: r.TotalCostUsd,
			AvgLatencyMs: int64(math.Round(r.AvgLatencyMs)),
			ErrorRate:    safeRate(r.Errors, r.Calls),
		})
	}
	return out, nil
}

// DailyRollups 天维度汇总序列
func (e *Engine) DailyRollups(ctx context.Context, tr repository.TimeRange) (*DailySeries, error) {
	ctx, span := tracer.Start(ctx, "analytics.DailyRollups")
	defer span.End()

	rows, err := e.calls.AggregateDaily(ctx, tr)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	series := &DailySeries{
		From: tr.From,
		To:   tr.To,
		Data: make([]DailyPoint, 0, len(rows)),
	}
	for _, r := range rows {
		series.Data = append(series.Data, DailyPoint{
			Date:         r.Day.Format("2006-01-02"),
			Calls:        r.Calls,
			AvgLatencyMs: int64(math.Round(r.AvgLatencyMs)),
			CostUsd:      r.CostUsd,
			Errors:       r.Errors,
			ErrorRate:    safeRate(r.Errors, r.Calls),
		})
	}
	return series, nil
}

// summaryCacheKey 按时间窗口区分缓存条目。
// 保持 summary: 前缀以便 InvalidateAnalytics 按模式清除。
func summaryCacheKey(tr repository.TimeRange) string {
	if tr.IsZero() {
		return "summary:overview"
	}
	return fmt.Sprintf("summary:%d:%d", tr.From.UnixMilli(), tr.To.UnixMilli())
}

// Summary 全量汇总（带短 TTL 缓存）
func (e *Engine) Summary(ctx context.Context, tr repository.TimeRange) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "analytics.Summary")
	defer span.End()

	var out Summary
	err := e.cachedLoad(ctx, summaryCacheKey(tr), &out, func() (interface{}, error) {
		return e.computeSummary(ctx, tr)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &out, nil
}

func (e *Engine) computeSummary(ctx context.Context, tr repository.TimeRange) (*Summary, error) {
	stats, err := e.calls.OverallStats(ctx, tr)
	if err != nil {
		return nil, err
	}
	histogram, err := e.calls.StatusHistogram(ctx, tr)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Total:             stats.Total,
		AvgLatencyMs:      int64(math.Round(stats.AvgLatencyMs)),
		AvgCostUsd:        stats.AvgCostUsd,
		HallucinationRate: safeRate(stats.Hallucinated, stats.Total),
		ToxicityRate:      safeRate(stats.Toxic, stats.Total),
		Statuses: StatusCounts{
			Success: histogram[entity.CallStatusSuccess],
			Fail:    histogram[entity.CallStatusFail],
			Flagged: histogram[entity.CallStatusFlagged],
		},
	}, nil
}

// Realtime 实时快照：近 5 分钟调用量、近 1 小时错误数
func (e *Engine) Realtime(ctx context.Context) (*RealtimeSnapshot, error) {
	ctx, span := tracer.Start(ctx, "analytics.Realtime")
	defer span.End()

	stats, err := e.calls.RealtimeStats(ctx, 5*time.Minute, time.Hour)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &RealtimeSnapshot{
		TotalCalls:   stats.TotalCalls,
		RecentCalls:  stats.RecentCalls,
		AvgLatencyMs: int64(math.Round(stats.AvgLatencyMs)),
		ErrorCount:   stats.ErrorCount,
		Timestamp:    time.Now(),
	}, nil
}

// EvalSummary 评估汇总：维度通过率、7 天趋势、高风险调用
func (e *Engine) EvalSummary(ctx context.Context, days int) (*EvalSummary, error) {
	ctx, span := tracer.Start(ctx, "analytics.EvalSummary",
		trace.WithAttributes(attribute.Int("days", days)))
	defer span.End()

	if days <= 0 {
		days = 30
	}

	var out EvalSummary
	err := e.cachedLoad(ctx, redis.BuildAggKey("evals", days), &out, func() (interface{}, error) {
		return e.computeEvalSummary(ctx, days)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &out, nil
}

func (e *Engine) computeEvalSummary(ctx context.Context, days int) (*EvalSummary, error) {
	since := time.Now().AddDate(0, 0, -days)

	evals, err := e.evals.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}

	total := int64(len(evals))
	var passed int64
	for _, ev := range evals {
		if ev.Passed {
			passed++
		}
	}

	summary := &EvalSummary{
		TotalEvaluations: total,
		OverallPassRate:  round2(passRate(passed, total)),
		ByKind:           make(map[string]KindSummary),
		RecentTrends:     make([]TrendPoint, 0, trendDays),
		RiskyCalls:       []RiskyCall{},
	}

	// 按维度分组
	byKind := make(map[string][]*entity.EvalResult)
	for _, ev := range evals {
		byKind[ev.Kind] = append(byKind[ev.Kind], ev)
	}
	for kind, list := range byKind {
		var kindPassed int64
		var scoreSum float64
		for _, ev := range list {
			if ev.Passed {
				kindPassed++
			}
			scoreSum += ev.Score
		}
		kindTotal := int64(len(list))
		avgScore := 0.0
		if kindTotal > 0 {
			avgScore = scoreSum / float64(kindTotal)
		}
		summary.ByKind[kind] = KindSummary{
			Total:    kindTotal,
			Passed:   kindPassed,
			Failed:   kindTotal - kindPassed,
			PassRate: passRate(kindPassed, kindTotal),
			AvgScore: round2(avgScore),
		}
	}

	// 最近 7 天趋势（含今天）
	now := time.Now()
	for i := trendDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		dayEnd := dayStart.AddDate(0, 0, 1)

		var dayTotal, dayPassed int64
		for _, ev := range evals {
			if !ev.CreatedAt.Before(dayStart) && ev.CreatedAt.Before(dayEnd) {
				dayTotal++
				if ev.Passed {
					dayPassed++
				}
			}
		}
		summary.RecentTrends = append(summary.RecentTrends, TrendPoint{
			Date:     dayStart.Format("2006-01-02"),
			Total:    dayTotal,
			Passed:   dayPassed,
			PassRate: passRate(dayPassed, dayTotal),
		})
	}

	// 高风险调用
	summary.RiskyCalls = e.riskyCalls(ctx, evals)

	return summary, nil
}

// riskyCalls 汇总存在未通过评估的调用并评分
func (e *Engine) riskyCalls(ctx context.Context, evals []*entity.EvalResult) []RiskyCall {
	failedByCall := make(map[string]*RiskyCall)
	fallbackTime := make(map[string]time.Time)
	for _, ev := range evals {
		if ev.Passed {
			continue
		}
		rc, ok := failedByCall[ev.CallID]
		if !ok {
			rc = &RiskyCall{CallID: ev.CallID}
			failedByCall[ev.CallID] = rc
			fallbackTime[ev.CallID] = ev.CreatedAt
		}
		rc.FailedEvals = append(rc.FailedEvals, ev.Kind)
	}
	if len(failedByCall) == 0 {
		return []RiskyCall{}
	}

	ids := make([]string, 0, len(failedByCall))
	for id := range failedByCall {
		ids = append(ids, id)
	}
	calls, err := e.calls.GetByIDs(ctx, ids)
	if err != nil {
		// 调用记录读不到时退回评估时间戳
		logger.Warn(ctx, "failed to load calls for risk scoring", "error", err.Error())
		calls = nil
	}
	callTime := make(map[string]time.Time, len(calls))
	for _, c := range calls {
		callTime[c.ID] = c.CreatedAt
	}

	out := make([]RiskyCall, 0, len(failedByCall))
	for id, rc := range failedByCall {
		rc.RiskScore = len(rc.FailedEvals) * riskPerKind
		if ts, ok := callTime[id]; ok {
			rc.Timestamp = ts
		} else {
			rc.Timestamp = fallbackTime[id]
		}
		out = append(out, *rc)
	}

	// 分数降序，同分按 callId 保持稳定顺序
	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].CallID < out[j].CallID
	})
	if len(out) > riskyCallCap {
		out = out[:riskyCallCap]
	}
	return out
}

// ReportSummary 合规报告汇总
func (e *Engine) ReportSummary(ctx context.Context, tr repository.TimeRange) (*ReportSummary, error) {
	ctx, span := tracer.Start(ctx, "analytics.ReportSummary")
	defer span.End()

	stats, err := e.calls.OverallStats(ctx, tr)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &ReportSummary{
		TotalCalls:        stats.Total,
		EstimatedCostUsd:  stats.TotalCostUsd,
		AvgLatencyMs:      int64(math.Round(stats.AvgLatencyMs)),
		HallucinationRate: safeRate(stats.Hallucinated, stats.Total),
		Failures:          stats.Failures,
		EuAiActRisk:       "Minimal risk (demo)",
	}, nil
}

// safeRate 比例，空集合返回 0
func safeRate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// passRate 百分比通过率，空集合约定为 100
func passRate(passed, total int64) float64 {
	if total == 0 {
		return 100
	}
	return float64(passed) / float64(total) * 100
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
