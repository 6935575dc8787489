// Package alerting 实现错误率尖峰检测与告警事件流。
// 事件按指纹去重，保证同一窗口内的重复检测不产生重复通知。
package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"

	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/domain/repository"
	"llm-sentinel-api/internal/infrastructure/persistence/redis"
	"llm-sentinel-api/pkg/logger"
	"llm-sentinel-api/pkg/metrics"
)

var tracer = otel.Tracer("alerting")

// 事件严重级别
const (
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// 事件类型
const (
	EventErrorRateSpike  = "ERROR_RATE_SPIKE"
	EventModelCallFailed = "MODEL_CALL_FAILED"
	EventFlaggedContent  = "FLAGGED_CONTENT"

	categoryReliability = "RELIABILITY"
)

const defaultFeedLimit = 100

// 通知流缓存：窗口远大于 TTL，短缓存只为扛住面板轮询
const (
	feedCacheKey = "alerts:feed"
	feedCacheTTL = 15 * time.Second
)

// Event 告警事件
type Event struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"ts"`
	Severity    string                 `json:"severity"`
	Category    string                 `json:"category"`
	Event       string                 `json:"event"`
	Summary     string                 `json:"summary"`
	Details     map[string]interface{} `json:"details"`
	Fingerprint string                 `json:"fingerprint"`
}

// Detector 告警检测器
type Detector struct {
	calls repository.ModelCallRepository
	cache *redis.Cache

	spikeWindow time.Duration
	feedWindow  time.Duration
	highPct     float64
	criticalPct float64
	feedLimit   int
}

func NewDetector(calls repository.ModelCallRepository, cache *redis.Cache, cfg *config.AlertingConfig) *Detector {
	spikeWindow := cfg.SpikeWindow
	if spikeWindow <= 0 {
		spikeWindow = 10 * time.Minute
	}
	feedWindow := cfg.FeedWindow
	if feedWindow <= 0 {
		feedWindow = 24 * time.Hour
	}
	highPct := cfg.HighThresholdPct
	if highPct <= 0 {
		highPct = 10
	}
	criticalPct := cfg.CriticalThresholdPct
	if criticalPct <= 0 {
		criticalPct = 20
	}

	return &Detector{
		calls:       calls,
		cache:       cache,
		spikeWindow: spikeWindow,
		feedWindow:  feedWindow,
		highPct:     highPct,
		criticalPct: criticalPct,
		feedLimit:   defaultFeedLimit,
	}
}

// Spikes 检测观察窗口内的错误率尖峰，按模型产出至多一个事件
func (d *Detector) Spikes(ctx context.Context) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "alerting.Spikes")
	defer span.End()

	now := time.Now()
	windowStart := now.Add(-d.spikeWindow)

	rows, err := d.calls.WindowStatsByModel(ctx, windowStart)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	windowLabel := fmt.Sprintf("%dm", int(d.spikeWindow.Minutes()))

	events := make([]Event, 0)
	for _, r := range rows {
		total := r.Total
		if total < 1 {
			total = 1
		}
		errPct := float64(r.Fails) / float64(total) * 100
		if errPct < d.highPct {
			continue
		}

		severity := SeverityHigh
		if errPct >= d.criticalPct {
			severity = SeverityCritical
		}

		events = append(events, Event{
			ID:        fmt.Sprintf("errspike-%s-%d", r.Model, windowStart.UnixMilli()),
			Timestamp: now,
			Severity:  severity,
			Category:  categoryReliability,
			Event:     EventErrorRateSpike,
			Summary:   fmt.Sprintf("Error spike on %s: %.1f%% in last %s", r.Model, errPct, windowLabel),
			Details: map[string]interface{}{
				"model":     r.Model,
				"window":    windowLabel,
				"errorRate": errPct,
			},
			Fingerprint: fmt.Sprintf("%s:%s", EventErrorRateSpike, r.Model),
		})
		metrics.AlertEventsTotal.WithLabelValues(EventErrorRateSpike, severity).Inc()
	}
	return events, nil
}

// callEvents 回看窗口内的单条 FAIL/FLAGGED 调用事件
func (d *Detector) callEvents(ctx context.Context) ([]Event, error) {
	since := time.Now().Add(-d.feedWindow)

	rows, err := d.calls.ListAlertCalls(ctx, since, d.feedLimit)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		ev := Event{
			ID:        r.ID,
			Timestamp: r.CreatedAt,
			Category:  categoryReliability,
			Details: map[string]interface{}{
				"model": r.Model,
				"user":  userOrUnknown(r.UserEmail),
			},
			Fingerprint: fmt.Sprintf("%s:%s", r.Status, r.Model),
		}
		if r.Status == entity.CallStatusFail {
			ev.Severity = SeverityHigh
			ev.Event = EventModelCallFailed
			ev.Summary = fmt.Sprintf("Call failed on %s", r.Model)
		} else {
			ev.Severity = SeverityMedium
			ev.Event = EventFlaggedContent
			ev.Summary = fmt.Sprintf("Flagged content on %s", r.Model)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Feed 合并尖峰事件与单条调用事件：
// 按时间降序排序后按指纹去重，保留每个指纹最近的一条。
// 结果做短 TTL 缓存，缓存不可用时直接回源。
func (d *Detector) Feed(ctx context.Context) ([]Event, error) {
	if d.cache == nil {
		return d.computeFeed(ctx)
	}

	payload, err := d.cache.GetOrLoadSafe(ctx, feedCacheKey, feedCacheTTL, func() (interface{}, error) {
		return d.computeFeed(ctx)
	})
	if err != nil {
		logger.Warn(ctx, "feed cache unavailable, serving uncached", "error", err.Error())
		return d.computeFeed(ctx)
	}

	var events []Event
	if err := json.Unmarshal(payload, &events); err != nil {
		return d.computeFeed(ctx)
	}
	return events, nil
}

func (d *Detector) computeFeed(ctx context.Context) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "alerting.Feed")
	defer span.End()

	spikes, err := d.Spikes(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	items, err := d.callEvents(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	merged := append(spikes, items...)
	return Dedupe(merged), nil
}

// Dedupe 时间降序排序并按指纹去重（保留最近一条）
func Dedupe(events []Event) []Event {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})

	seen := make(map[string]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.Fingerprint]; ok {
			continue
		}
		seen[ev.Fingerprint] = struct{}{}
		out = append(out, ev)
	}
	return out
}

func userOrUnknown(email string) string {
	if email == "" {
		return "unknown"
	}
	return email
}
