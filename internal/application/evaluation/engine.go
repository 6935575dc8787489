package evaluation

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/domain/repository"
	"llm-sentinel-api/internal/infrastructure/persistence/redis"
	apperrors "llm-sentinel-api/pkg/errors"
	"llm-sentinel-api/pkg/logger"
	"llm-sentinel-api/pkg/metrics"
)

var tracer = otel.Tracer("evaluation")

const (
	defaultBatchSize   = 200
	defaultConcurrency = 8
)

// Report 一次批量评估的执行结果。
// 部分失败不会中止批次，通过 Skipped 计数上报给调用方。
type Report struct {
	Evaluated        int   `json:"evaluated"`
	Flagged          int   `json:"flagged"`
	SkippedCalls     int   `json:"skipped_calls"`
	SkippedDetectors int   `json:"skipped_detectors"`
	DurationMs       int64 `json:"duration_ms"`
}

// Engine 评估编排器。
// 每次 Run 是自包含的工作单元，运行之间不保留进程内状态。
type Engine struct {
	calls     repository.ModelCallRepository
	evals     repository.EvalResultRepository
	tx        repository.Transactor
	detectors []Detector
	grounding *GroundingDetector
	cache     *redis.Cache

	batchSize   int
	concurrency int
}

// NewEngine 创建评估编排器。
// grounding 需要外部 Embedding 服务，单独传入以便启动期校验配置。
func NewEngine(
	calls repository.ModelCallRepository,
	evals repository.EvalResultRepository,
	tx repository.Transactor,
	rules *RuleSet,
	grounding *GroundingDetector,
	cache *redis.Cache,
	cfg *config.EvaluationConfig,
) *Engine {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	detectors := []Detector{
		NewToxicityDetector(rules),
		NewPIIDetector(rules),
		NewInjectionDetector(rules),
		NewHallucinationDetector(rules),
	}
	if grounding != nil {
		detectors = append(detectors, grounding)
	}

	return &Engine{
		calls:       calls,
		evals:       evals,
		tx:          tx,
		detectors:   detectors,
		grounding:   grounding,
		cache:       cache,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// Run 评估最近 batchSize 条调用。
// 幂等：重复运行按 (call_id, kind) 覆盖写入，不产生重复行，
// 也不会把已是 FAIL/FLAGGED 的调用改回 SUCCESS。
func (e *Engine) Run(ctx context.Context, trigger string) (*Report, error) {
	ctx, span := tracer.Start(ctx, "evaluation.Run",
		trace.WithAttributes(attribute.String("trigger", trigger)))
	defer span.End()

	// 配置级失败：溯源检测依赖的 Embedding 服务完全未配置时，
	// 任何调用都无法完整评估，整批快速失败。
	if e.grounding != nil && !e.grounding.Ready() {
		metrics.EvalRunsTotal.WithLabelValues(trigger, "error").Inc()
		return nil, apperrors.ErrMissingEmbedConfig
	}

	start := time.Now()

	calls, err := e.calls.ListRecent(ctx, e.batchSize)
	if err != nil {
		span.RecordError(err)
		metrics.EvalRunsTotal.WithLabelValues(trigger, "error").Inc()
		return nil, err
	}

	var evaluated, flagged, skippedCalls, skippedDetectors atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, call := range calls {
		call := call
		g.Go(func() error {
			// 单调用的失败只影响自身，始终返回 nil 以免取消兄弟任务
			callFlagged, skipped, ok := e.evaluateCall(gctx, call)
			skippedDetectors.Add(int64(skipped))
			if !ok {
				skippedCalls.Add(1)
				return nil
			}
			evaluated.Add(1)
			if callFlagged {
				flagged.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	// 聚合口径已变化，使缓存失效（尽力而为）
	if e.cache != nil {
		if err := e.cache.InvalidateAnalytics(ctx); err != nil {
			logger.Warn(ctx, "failed to invalidate analytics cache", "error", err.Error())
		}
	}

	report := &Report{
		Evaluated:        int(evaluated.Load()),
		Flagged:          int(flagged.Load()),
		SkippedCalls:     int(skippedCalls.Load()),
		SkippedDetectors: int(skippedDetectors.Load()),
		DurationMs:       time.Since(start).Milliseconds(),
	}

	metrics.EvalRunsTotal.WithLabelValues(trigger, "success").Inc()
	metrics.EvalRunDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	metrics.EvalCallsEvaluated.Add(float64(report.Evaluated))

	logger.Info(ctx, "evaluation batch finished",
		"trigger", trigger,
		"evaluated", report.Evaluated,
		"flagged", report.Flagged,
		"skipped_calls", report.SkippedCalls,
		"skipped_detectors", report.SkippedDetectors,
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

// evaluateCall 评估单条调用。
// 检测结果、反规范化标记与状态降级在同一事务内提交，
// 保证读取方不会看到已标记但缺少评估明细的调用。
func (e *Engine) evaluateCall(ctx context.Context, call *entity.ModelCall) (flagged bool, skipped int, ok bool) {
	ctx = logger.WithContext(ctx, logger.CallIDKey, call.ID)
	ctx = logger.WithContext(ctx, logger.ModelKey, call.Model)

	verdicts := make([]*Verdict, 0, len(e.detectors))
	for _, d := range e.detectors {
		dStart := time.Now()
		v, err := d.Evaluate(ctx, call)
		metrics.DetectorDuration.WithLabelValues(d.Kind()).Observe(time.Since(dStart).Seconds())

		if err != nil {
			// 检测器级失败：隔离到 (call, kind)，不影响其余检测
			skipped++
			metrics.DetectorResultsTotal.WithLabelValues(d.Kind(), "skipped").Inc()
			logger.Warn(ctx, "detector skipped", "kind", d.Kind(), "error", err.Error())
			continue
		}

		if v.Passed {
			metrics.DetectorResultsTotal.WithLabelValues(d.Kind(), "passed").Inc()
		} else {
			metrics.DetectorResultsTotal.WithLabelValues(d.Kind(), "failed").Inc()
		}
		verdicts = append(verdicts, v)
	}

	// 被跳过的维度保留调用上已有的标记值
	hallucinated := call.Hallucinated
	toxic := call.Toxic
	anyFailed := false
	for _, v := range verdicts {
		if !v.Passed {
			anyFailed = true
		}
		switch v.Kind {
		case entity.EvalKindHallucination:
			hallucinated = !v.Passed
		case entity.EvalKindToxicity:
			toxic = !v.Passed
		}
	}

	var statusChanged bool
	err := e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, v := range verdicts {
			err := e.evals.Upsert(txCtx, &entity.EvalResult{
				CallID:  call.ID,
				Kind:    v.Kind,
				Passed:  v.Passed,
				Score:   v.Score,
				Details: v.Details,
			})
			if err != nil {
				return err
			}
		}

		if err := e.calls.UpdateSafetyFlags(txCtx, call.ID, hallucinated, toxic); err != nil {
			return err
		}

		if anyFailed {
			// 条件降级：仅 SUCCESS 可降为 FLAGGED，不覆盖上游写入的 FAIL
			changed, err := e.calls.DowngradeToFlagged(txCtx, call.ID)
			if err != nil {
				return err
			}
			statusChanged = changed
		}
		return nil
	})
	if err != nil {
		// 持久化失败：整个事务回滚，该调用标记为未完成，批次继续
		logger.Error(ctx, "failed to persist evaluation", err)
		return false, skipped, false
	}

	if statusChanged {
		flagged = true
		metrics.FlaggedCallsTotal.WithLabelValues(call.Model).Inc()
	}

	return flagged, skipped, true
}
