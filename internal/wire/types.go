// Package wire 提供依赖注入配置
package wire

import (
	"llm-sentinel-api/internal/application/evaluation"
	"llm-sentinel-api/internal/application/knowledge"
	"llm-sentinel-api/internal/infrastructure/embedding"
	"llm-sentinel-api/internal/infrastructure/persistence/milvus"
	"llm-sentinel-api/internal/infrastructure/persistence/postgres"
	"llm-sentinel-api/internal/interfaces/http/router"
)

// App API 服务依赖容器
type App struct {
	Router     *router.Router
	EvalEngine *evaluation.Engine
}

// Worker 评估任务依赖容器
type Worker struct {
	EvalEngine *evaluation.Engine
}

// DataLayer 数据层依赖容器（用于 bootstrap 与离线工具）
type DataLayer struct {
	PgClient     *postgres.Client
	CallRepo     *postgres.ModelCallRepository
	EvalRepo     *postgres.EvalResultRepository
	UserRepo     *postgres.UserRepository
	MilvusClient *milvus.Client
	VectorRepo   *milvus.Repository
	Embedder     *embedding.Client
	Ingestor     *knowledge.Ingestor
}
