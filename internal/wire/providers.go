// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"llm-sentinel-api/internal/application/alerting"
	"llm-sentinel-api/internal/application/evaluation"
	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/domain/repository"
	"llm-sentinel-api/internal/infrastructure/embedding"
	"llm-sentinel-api/internal/infrastructure/persistence/milvus"
	"llm-sentinel-api/internal/infrastructure/persistence/postgres"
	"llm-sentinel-api/internal/infrastructure/persistence/redis"
	"llm-sentinel-api/pkg/logger"
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMilvusClientOptional 提供 Milvus 客户端。
// 不可达时返回 nil，溯源检测与知识库检索降级禁用，不阻塞启动。
func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, grounding disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMilvusRepositoryOptional 提供向量仓储，客户端缺失时为 nil
func ProvideMilvusRepositoryOptional(client *milvus.Client) *milvus.Repository {
	if client == nil {
		return nil
	}
	return milvus.NewRepository(client)
}

// ProvideEmbeddingClient 提供 Embedding 客户端。
// endpoint 未配置时 Configured() 为 false，评估引擎据此快速失败。
func ProvideEmbeddingClient(cfg *config.Config) *embedding.Client {
	return embedding.NewClient(&cfg.Embedding)
}

// ProvideGroundingDetector 提供溯源检测器，向量仓储缺失时禁用
func ProvideGroundingDetector(embedder *embedding.Client, vector *milvus.Repository, cfg *config.Config) *evaluation.GroundingDetector {
	if vector == nil {
		return nil
	}
	return evaluation.NewGroundingDetector(embedder, vector, cfg.Evaluation.RetrievalTopK)
}

// ProvideEvaluationEngine 提供评估引擎
func ProvideEvaluationEngine(
	calls repository.ModelCallRepository,
	evals repository.EvalResultRepository,
	tx repository.Transactor,
	rules *evaluation.RuleSet,
	grounding *evaluation.GroundingDetector,
	cache *redis.Cache,
	cfg *config.Config,
) *evaluation.Engine {
	return evaluation.NewEngine(calls, evals, tx, rules, grounding, cache, &cfg.Evaluation)
}

// ProvideAlertDetector 提供告警检测器
func ProvideAlertDetector(calls repository.ModelCallRepository, cache *redis.Cache, cfg *config.Config) *alerting.Detector {
	return alerting.NewDetector(calls, cache, &cfg.Alerting)
}
