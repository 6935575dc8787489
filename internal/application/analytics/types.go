// Package analytics 实现聚合引擎：
// 从调用日志与评估结果计算模型/用户/天维度汇总与风险评分。
// 所有聚合都是读时重算的纯投影，空集合返回确定的零值。
package analytics

import "time"

// ModelSummary 模型维度汇总行
type ModelSummary struct {
	Model        string  `json:"model"`
	Calls        int64   `json:"calls"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	AvgCostUsd   float64 `json:"avg_cost_usd"`
	ErrorRate    float64 `json:"error_rate"`
}

// UserSummary 用户维度汇总行，匿名调用归入 "anon"
type UserSummary struct {
	User         string  `json:"user"`
	Calls        int64   `json:"calls"`
	TotalCostUsd float64 `json:"total_cost_usd"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	ErrorRate    float64 `json:"error_rate"`
}

// DailyPoint 天维度汇总行
type DailyPoint struct {
	Date         string  `json:"date"`
	Calls        int64   `json:"calls"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	CostUsd      float64 `json:"cost_usd"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
}

// DailySeries 带窗口边界的天维度序列
type DailySeries struct {
	From time.Time    `json:"from"`
	To   time.Time    `json:"to"`
	Data []DailyPoint `json:"data"`
}

// StatusCounts 状态直方图
type StatusCounts struct {
	Success int64 `json:"SUCCESS"`
	Fail    int64 `json:"FAIL"`
	Flagged int64 `json:"FLAGGED"`
}

// Summary 全量汇总
type Summary struct {
	Total             int64        `json:"total"`
	AvgLatencyMs      int64        `json:"avg_latency_ms"`
	AvgCostUsd        float64      `json:"avg_cost_usd"`
	HallucinationRate float64      `json:"hallucination_rate"`
	ToxicityRate      float64      `json:"toxicity_rate"`
	Statuses          StatusCounts `json:"statuses"`
}

// RealtimeSnapshot 实时快照
type RealtimeSnapshot struct {
	TotalCalls   int64     `json:"total_calls"`
	RecentCalls  int64     `json:"recent_calls"`
	AvgLatencyMs int64     `json:"avg_latency_ms"`
	ErrorCount   int64     `json:"error_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// KindSummary 单一评估维度的汇总
type KindSummary struct {
	Total    int64   `json:"total"`
	Passed   int64   `json:"passed"`
	Failed   int64   `json:"failed"`
	PassRate float64 `json:"pass_rate"`
	AvgScore float64 `json:"avg_score"`
}

// TrendPoint 评估通过率的按天趋势点
type TrendPoint struct {
	Date     string  `json:"date"`
	Total    int64   `json:"total"`
	Passed   int64   `json:"passed"`
	PassRate float64 `json:"pass_rate"`
}

// RiskyCall 存在未通过评估的调用及其风险评分。
// 风险评分 = 未通过的不同维度数 × 25。
type RiskyCall struct {
	CallID      string    `json:"call_id"`
	Timestamp   time.Time `json:"timestamp"`
	FailedEvals []string  `json:"failed_evals"`
	RiskScore   int       `json:"risk_score"`
}

// EvalSummary 评估汇总
type EvalSummary struct {
	TotalEvaluations int64                  `json:"total_evaluations"`
	OverallPassRate  float64                `json:"overall_pass_rate"`
	ByKind           map[string]KindSummary `json:"by_kind"`
	RecentTrends     []TrendPoint           `json:"recent_trends"`
	RiskyCalls       []RiskyCall            `json:"risky_calls"`
}

// ReportSummary 合规报告汇总
type ReportSummary struct {
	TotalCalls        int64   `json:"total_calls"`
	EstimatedCostUsd  float64 `json:"estimated_cost_usd"`
	AvgLatencyMs      int64   `json:"avg_latency_ms"`
	HallucinationRate float64 `json:"hallucination_rate"`
	Failures          int64   `json:"failures"`
	EuAiActRisk       string  `json:"eu_ai_act_risk"`
}
