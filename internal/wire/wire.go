//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"llm-sentinel-api/internal/application/analytics"
	"llm-sentinel-api/internal/application/evaluation"
	"llm-sentinel-api/internal/application/ingestion"
	"llm-sentinel-api/internal/application/knowledge"
	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/domain/repository"
	"llm-sentinel-api/internal/infrastructure/persistence/postgres"
	"llm-sentinel-api/internal/infrastructure/persistence/redis"
	"llm-sentinel-api/internal/interfaces/http/handler"
	"llm-sentinel-api/internal/interfaces/http/middleware"
	"llm-sentinel-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 API 服务
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MilvusSet,
		EmbeddingSet,
		EvaluationSet,
		AppServiceSet,
		HandlerSet,
		router.NewRouter,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化评估任务
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MilvusSet,
		EmbeddingSet,
		EvaluationSet,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeDataLayer 初始化数据层（迁移、种子数据与知识库写入）
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	wire.Build(
		PostgresSet,
		MilvusSet,
		EmbeddingSet,
		knowledge.NewIngestor,
		wire.Struct(new(DataLayer), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewModelCallRepository,
	postgres.NewEvalResultRepository,
	postgres.NewUserRepository,
)

// RepoSet 整合具体实现与接口绑定
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.ModelCallRepository), new(*postgres.ModelCallRepository)),
	wire.Bind(new(repository.EvalResultRepository), new(*postgres.EvalResultRepository)),
	wire.Bind(new(repository.UserRepository), new(*postgres.UserRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MilvusSet Milvus 提供者集合（不可达时禁用向量检索）
var MilvusSet = wire.NewSet(
	ProvideMilvusClientOptional,
	ProvideMilvusRepositoryOptional,
)

// EmbeddingSet Embedding 客户端提供者集合
var EmbeddingSet = wire.NewSet(
	ProvideEmbeddingClient,
)

// EvaluationSet 评估引擎提供者集合
var EvaluationSet = wire.NewSet(
	evaluation.DefaultRuleSet,
	ProvideGroundingDetector,
	ProvideEvaluationEngine,
)

// AppServiceSet 应用服务提供者集合
var AppServiceSet = wire.NewSet(
	ingestion.NewService,
	analytics.NewEngine,
	ProvideAlertDetector,
	knowledge.NewIngestor,
)

// HandlerSet 处理器提供者集合
var HandlerSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewCallHandler,
	handler.NewEvalHandler,
	handler.NewAnalyticsHandler,
	handler.NewMetricsHandler,
	handler.NewNotificationHandler,
	handler.NewKnowledgeHandler,
)
