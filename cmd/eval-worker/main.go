// Package main 评估任务入口，按固定间隔评估最近的调用
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/wire"
	apperrors "llm-sentinel-api/pkg/errors"
	"llm-sentinel-api/pkg/logger"
	"llm-sentinel-api/pkg/tracer"
)

// defaultInterval 未配置时的评估间隔
const defaultInterval = time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logger.FromContext(ctx)
	log.Info("starting eval-worker", "env", cfg.App.Env)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name + "-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	interval := cfg.Worker.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	runOnce := func() {
		report, err := worker.EvalEngine.Run(ctx, "worker")
		if err != nil {
			// 配置缺失属于部署问题，重试没有意义，直接退出
			if errors.Is(err, apperrors.ErrMissingEmbedConfig) {
				logger.Fatal(ctx, "embedding endpoint not configured", err)
			}
			logger.Error(ctx, "evaluation run failed", err)
			return
		}
		log.Info("evaluation run completed",
			"evaluated", report.Evaluated,
			"flagged", report.Flagged,
			"skipped_calls", report.SkippedCalls,
			"skipped_detectors", report.SkippedDetectors,
			"duration_ms", report.DurationMs,
		)
	}

	log.Info("eval-worker running", "interval", interval.String())
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			log.Info("eval-worker shutting down")
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
