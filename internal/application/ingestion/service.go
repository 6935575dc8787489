// Package ingestion 实现调用日志写入服务
package ingestion

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/domain/repository"
	"llm-sentinel-api/internal/infrastructure/persistence/redis"
	"llm-sentinel-api/pkg/logger"
)

var tracer = otel.Tracer("ingestion")

// defaultPerTokenUsd 演示定价：$2 / 1M tokens
const defaultPerTokenUsd = 0.000002

// EstimateCostUsd 按 token 总量估算调用成本
func EstimateCostUsd(promptTokens, respTokens int) float64 {
	return float64(promptTokens+respTokens) * defaultPerTokenUsd
}

// CreateCallInput 写入一条调用日志的入参
type CreateCallInput struct {
	UserID       *string
	Provider     string
	Model        string
	Prompt       string
	Response     string
	LatencyMs    int
	PromptTokens int
	RespTokens   int
	Status       entity.CallStatus
	Route        string
	IP           string
}

// Service 调用日志服务
type Service struct {
	calls repository.ModelCallRepository
	evals repository.EvalResultRepository
	cache *redis.Cache
}

func NewService(calls repository.ModelCallRepository, evals repository.EvalResultRepository, cache *redis.Cache) *Service {
	return &Service{calls: calls, evals: evals, cache: cache}
}

// CreateCall 写入调用日志并估算成本。
// 状态由调用方决定；评估引擎之后只会做 SUCCESS→FLAGGED 的降级。
func (s *Service) CreateCall(ctx context.Context, in *CreateCallInput) (*entity.ModelCall, error) {
	ctx, span := tracer.Start(ctx, "ingestion.CreateCall",
		trace.WithAttributes(attribute.String("model", in.Model)))
	defer span.End()

	status := in.Status
	if status == "" {
		status = entity.CallStatusSuccess
	}
	provider := in.Provider
	if provider == "" {
		provider = "local"
	}

	call := &entity.ModelCall{
		UserID:       in.UserID,
		Provider:     provider,
		Model:        in.Model,
		Prompt:       in.Prompt,
		Response:     in.Response,
		LatencyMs:    in.LatencyMs,
		PromptTokens: in.PromptTokens,
		RespTokens:   in.RespTokens,
		CostUsd:      EstimateCostUsd(in.PromptTokens, in.RespTokens),
		Status:       status,
	}
	call.Route = in.Route
	call.IP = in.IP

	if err := s.calls.Create(ctx, call); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateAnalytics(ctx); err != nil {
			logger.Warn(ctx, "failed to invalidate analytics cache", "error", err.Error())
		}
	}

	return call, nil
}

// ListRecent 最近的调用日志，倒序
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*entity.ModelCall, error) {
	ctx, span := tracer.Start(ctx, "ingestion.ListRecent")
	defer span.End()

	return s.calls.ListRecent(ctx, limit)
}

// GetCallWithEvals 调用详情及其评估明细
func (s *Service) GetCallWithEvals(ctx context.Context, id string) (*entity.ModelCall, []*entity.EvalResult, error) {
	ctx, span := tracer.Start(ctx, "ingestion.GetCallWithEvals")
	defer span.End()

	call, err := s.calls.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	evals, err := s.evals.ListByCall(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return call, evals, nil
}
