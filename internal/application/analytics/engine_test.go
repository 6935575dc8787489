package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/domain/repository"
)

// 仅覆盖被测路径用到的方法，未覆盖的方法走嵌入接口（调用即 panic）
type stubCallRepo struct {
	repository.ModelCallRepository
	modelRows []*repository.ModelRollup
	userRows  []*repository.UserRollup
	dailyRows []*repository.DailyRollup
	overall   *repository.OverallStats
	histogram map[entity.CallStatus]int64
	calls     []*entity.ModelCall
}

func (s *stubCallRepo) AggregateByModel(context.Context, repository.TimeRange, []string) ([]*repository.ModelRollup, error) {
	return s.modelRows, nil
}
func (s *stubCallRepo) AggregateByUser(context.Context, repository.TimeRange) ([]*repository.UserRollup, error) {
	return s.userRows, nil
}
func (s *stubCallRepo) AggregateDaily(context.Context, repository.TimeRange) ([]*repository.DailyRollup, error) {
	return s.dailyRows, nil
}
func (s *stubCallRepo) OverallStats(context.Context, repository.TimeRange) (*repository.OverallStats, error) {
	return s.overall, nil
}
func (s *stubCallRepo) StatusHistogram(context.Context, repository.TimeRange) (map[entity.CallStatus]int64, error) {
	return s.histogram, nil
}
func (s *stubCallRepo) GetByIDs(_ context.Context, ids []string) ([]*entity.ModelCall, error) {
	var out []*entity.ModelCall
	for _, c := range s.calls {
		for _, id := range ids {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type stubEvalRepo struct {
	repository.EvalResultRepository
	results []*entity.EvalResult
}

func (s *stubEvalRepo) ListSince(context.Context, time.Time) ([]*entity.EvalResult, error) {
	return s.results, nil
}

type stubUserRepo struct {
	repository.UserRepository
	users []*entity.User
}

func (s *stubUserRepo) ListAll(context.Context) ([]*entity.User, error) {
	return s.users, nil
}

func ptr(s string) *string { return &s }

func TestModelRollups(t *testing.T) {
	engine := NewEngine(&stubCallRepo{
		modelRows: []*repository.ModelRollup{
			{Model: "gpt-4o-mini", Calls: 100, AvgLatencyMs: 220.4, AvgCostUsd: 0.0004, Errors: 8},
			{Model: "claude-3", Calls: 0, AvgLatencyMs: 0, AvgCostUsd: 0, Errors: 0},
		},
	}, &stubEvalRepo{}, &stubUserRepo{}, nil)

	rows, err := engine.ModelRollups(context.Background(), repository.TimeRange{}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(220), rows[0].AvgLatencyMs)
	assert.InDelta(t, 0.08, rows[0].ErrorRate, 1e-9)
	// 空分组错误率为 0，不能是 NaN
	assert.Zero(t, rows[1].ErrorRate)
}

func TestUserRollupsAnonymousMapping(t *testing.T) {
	engine := NewEngine(&stubCallRepo{
		userRows: []*repository.UserRollup{
			{UserID: ptr("u1"), Calls: 10, TotalCostUsd: 0.02, AvgLatencyMs: 100, Errors: 1},
			{UserID: nil, Calls: 5, TotalCostUsd: 0.01, AvgLatencyMs: 90, Errors: 0},
			{UserID: ptr("ghost"), Calls: 3, TotalCostUsd: 0, AvgLatencyMs: 80, Errors: 0},
		},
	}, &stubEvalRepo{}, &stubUserRepo{
		users: []*entity.User{{ID: "u1", Email: "alice@example.com"}},
	}, nil)

	rows, err := engine.UserRollups(context.Background(), repository.TimeRange{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "alice@example.com", rows[0].User)
	assert.Equal(t, "anon", rows[1].User)
	// 已删除/未知用户同样归入 anon
	assert.Equal(t, "anon", rows[2].User)
}

func TestSummaryZeroSafety(t *testing.T) {
	engine := NewEngine(&stubCallRepo{
		overall:   &repository.OverallStats{},
		histogram: map[entity.CallStatus]int64{},
	}, &stubEvalRepo{}, &stubUserRepo{}, nil)

	s, err := engine.Summary(context.Background(), repository.TimeRange{})
	require.NoError(t, err)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.HallucinationRate)
	assert.Zero(t, s.ToxicityRate)
	assert.Zero(t, s.AvgLatencyMs)
}

func TestSummaryCacheKeyPerWindow(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)

	// 无窗口走默认键，带窗口的键按窗口区分
	assert.Equal(t, "summary:overview", summaryCacheKey(repository.TimeRange{}))

	week := summaryCacheKey(repository.TimeRange{From: from, To: to})
	day := summaryCacheKey(repository.TimeRange{From: from, To: from.AddDate(0, 0, 1)})
	assert.NotEqual(t, week, day)
	assert.NotEqual(t, "summary:overview", week)

	// 同窗口键稳定，且保持 summary: 前缀以便按模式失效
	assert.Equal(t, week, summaryCacheKey(repository.TimeRange{From: from, To: to}))
	assert.Regexp(t, `^summary:`, week)
	assert.Regexp(t, `^summary:`, day)
}

func TestEvalSummaryEmpty(t *testing.T) {
	engine := NewEngine(&stubCallRepo{}, &stubEvalRepo{}, &stubUserRepo{}, nil)

	s, err := engine.EvalSummary(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, s.TotalEvaluations)
	// 空集合约定通过率为 100
	assert.Equal(t, 100.0, s.OverallPassRate)
	assert.Len(t, s.RecentTrends, 7)
	assert.Empty(t, s.RiskyCalls)
}

func TestEvalSummaryRiskScoring(t *testing.T) {
	now := time.Now()
	evalRepo := &stubEvalRepo{results: []*entity.EvalResult{
		// call-a：4 个维度未通过 → 100 分
		{CallID: "call-a", Kind: entity.EvalKindToxicity, Passed: false, CreatedAt: now},
		{CallID: "call-a", Kind: entity.EvalKindPII, Passed: false, CreatedAt: now},
		{CallID: "call-a", Kind: entity.EvalKindInjection, Passed: false, CreatedAt: now},
		{CallID: "call-a", Kind: entity.EvalKindHallucination, Passed: false, CreatedAt: now},
		// call-b：2 个维度未通过 → 50 分
		{CallID: "call-b", Kind: entity.EvalKindToxicity, Passed: false, CreatedAt: now},
		{CallID: "call-b", Kind: entity.EvalKindPII, Passed: false, CreatedAt: now},
		// call-c：全部通过，不进入风险列表
		{CallID: "call-c", Kind: entity.EvalKindToxicity, Passed: true, Score: 1, CreatedAt: now},
	}}
	callRepo := &stubCallRepo{calls: []*entity.ModelCall{
		{ID: "call-a", CreatedAt: now.Add(-time.Hour)},
		{ID: "call-b", CreatedAt: now.Add(-2 * time.Hour)},
	}}

	engine := NewEngine(callRepo, evalRepo, &stubUserRepo{}, nil)

	s, err := engine.EvalSummary(context.Background(), 30)
	require.NoError(t, err)

	require.Len(t, s.RiskyCalls, 2)
	assert.Equal(t, "call-a", s.RiskyCalls[0].CallID)
	assert.Equal(t, 100, s.RiskyCalls[0].RiskScore)
	assert.Equal(t, "call-b", s.RiskyCalls[1].CallID)
	assert.Equal(t, 50, s.RiskyCalls[1].RiskScore)

	tox := s.ByKind[entity.EvalKindToxicity]
	assert.Equal(t, int64(3), tox.Total)
	assert.Equal(t, int64(1), tox.Passed)
	assert.InDelta(t, 100.0/3.0, tox.PassRate, 0.01)
}

func TestEvalSummaryRiskTiebreak(t *testing.T) {
	now := time.Now()
	evalRepo := &stubEvalRepo{results: []*entity.EvalResult{
		{CallID: "call-z", Kind: entity.EvalKindToxicity, Passed: false, CreatedAt: now},
		{CallID: "call-a", Kind: entity.EvalKindToxicity, Passed: false, CreatedAt: now},
	}}
	engine := NewEngine(&stubCallRepo{}, evalRepo, &stubUserRepo{}, nil)

	s, err := engine.EvalSummary(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, s.RiskyCalls, 2)
	// 同分按 callId 升序，排序稳定可复现
	assert.Equal(t, "call-a", s.RiskyCalls[0].CallID)
	assert.Equal(t, "call-z", s.RiskyCalls[1].CallID)
}

func TestReportSummary(t *testing.T) {
	engine := NewEngine(&stubCallRepo{
		overall: &repository.OverallStats{
			Total:        120,
			AvgLatencyMs: 233.6,
			TotalCostUsd: 0.12,
			Hallucinated: 12,
			Failures:     14,
		},
	}, &stubEvalRepo{}, &stubUserRepo{}, nil)

	r, err := engine.ReportSummary(context.Background(), repository.TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, int64(120), r.TotalCalls)
	assert.Equal(t, int64(234), r.AvgLatencyMs)
	assert.InDelta(t, 0.1, r.HallucinationRate, 1e-9)
	assert.Equal(t, int64(14), r.Failures)
}
