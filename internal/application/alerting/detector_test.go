package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/domain/repository"
)

type stubCallRepo struct {
	repository.ModelCallRepository
	windowStats []*repository.ModelWindowStats
	alertCalls  []*repository.AlertCallRow
}

func (s *stubCallRepo) WindowStatsByModel(context.Context, time.Time) ([]*repository.ModelWindowStats, error) {
	return s.windowStats, nil
}

func (s *stubCallRepo) ListAlertCalls(context.Context, time.Time, int) ([]*repository.AlertCallRow, error) {
	return s.alertCalls, nil
}

func newTestDetector(repo *stubCallRepo) *Detector {
	return NewDetector(repo, nil, &config.AlertingConfig{
		SpikeWindow:          10 * time.Minute,
		FeedWindow:           24 * time.Hour,
		HighThresholdPct:     10,
		CriticalThresholdPct: 20,
	})
}

func TestSpikesThresholds(t *testing.T) {
	repo := &stubCallRepo{windowStats: []*repository.ModelWindowStats{
		{Model: "quiet-model", Total: 100, Fails: 5},     // 5% 低于阈值
		{Model: "degraded-model", Total: 100, Fails: 15}, // 15% HIGH
		{Model: "broken-model", Total: 100, Fails: 30},   // 30% CRITICAL
	}}

	events, err := newTestDetector(repo).Spikes(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	byModel := map[string]Event{}
	for _, ev := range events {
		byModel[ev.Details["model"].(string)] = ev
	}

	assert.Equal(t, SeverityHigh, byModel["degraded-model"].Severity)
	assert.Equal(t, SeverityCritical, byModel["broken-model"].Severity)
	assert.Equal(t, EventErrorRateSpike, byModel["broken-model"].Event)
	assert.Equal(t, "ERROR_RATE_SPIKE:broken-model", byModel["broken-model"].Fingerprint)
	assert.NotContains(t, byModel, "quiet-model")
}

func TestSpikesEmptyWindow(t *testing.T) {
	events, err := newTestDetector(&stubCallRepo{}).Spikes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFeedMergesAndDeduplicates(t *testing.T) {
	now := time.Now()
	repo := &stubCallRepo{
		windowStats: []*repository.ModelWindowStats{
			{Model: "gpt-4o-mini", Total: 10, Fails: 3}, // 30% → CRITICAL
		},
		alertCalls: []*repository.AlertCallRow{
			{ID: "c1", Status: entity.CallStatusFail, Model: "gpt-4o-mini", UserEmail: "alice@example.com", CreatedAt: now.Add(-time.Minute)},
			{ID: "c2", Status: entity.CallStatusFail, Model: "gpt-4o-mini", CreatedAt: now.Add(-2 * time.Minute)},
			{ID: "c3", Status: entity.CallStatusFlagged, Model: "gpt-4o-mini", UserEmail: "bob@example.com", CreatedAt: now.Add(-3 * time.Minute)},
		},
	}

	feed, err := newTestDetector(repo).Feed(context.Background())
	require.NoError(t, err)

	// 尖峰 + FAIL + FLAGGED 三个指纹；两条 FAIL 只保留最近的 c1
	require.Len(t, feed, 3)

	fingerprints := map[string]Event{}
	for _, ev := range feed {
		fingerprints[ev.Fingerprint] = ev
	}
	require.Contains(t, fingerprints, "ERROR_RATE_SPIKE:gpt-4o-mini")
	require.Contains(t, fingerprints, "FAIL:gpt-4o-mini")
	require.Contains(t, fingerprints, "FLAGGED:gpt-4o-mini")
	assert.Equal(t, "c1", fingerprints["FAIL:gpt-4o-mini"].ID)
	assert.Equal(t, "alice@example.com", fingerprints["FAIL:gpt-4o-mini"].Details["user"])
	assert.Equal(t, "bob@example.com", fingerprints["FLAGGED:gpt-4o-mini"].Details["user"])

	// 时间降序
	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].Timestamp.After(feed[i-1].Timestamp))
	}
}

func TestDedupeKeepsMostRecent(t *testing.T) {
	now := time.Now()
	events := []Event{
		{ID: "old", Fingerprint: "FAIL:m", Timestamp: now.Add(-time.Hour)},
		{ID: "new", Fingerprint: "FAIL:m", Timestamp: now},
		{ID: "other", Fingerprint: "FLAGGED:m", Timestamp: now.Add(-time.Minute)},
	}

	out := Dedupe(events)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].ID)
	assert.Equal(t, "other", out[1].ID)
}
