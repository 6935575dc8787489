// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"llm-sentinel-api/pkg/metrics"
)

// Repository 知识库向量仓储
type Repository struct {
	client *Client
}

// NewRepository 创建知识库向量仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// Chunk 知识库分块
type Chunk struct {
	ID      string
	Title   string
	Content string
	Vector  []float32
}

// SearchResult 检索结果，Score 为相似度（COSINE，越大越相似）
type SearchResult struct {
	ID      string
	Title   string
	Content string
	Score   float32
}

// EnsureCollection 创建集合与索引（已存在则跳过）并加载
func (r *Repository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollection")
	defer span.End()

	has, err := r.client.HasCollection(ctx, CollectionKnowledgeChunks)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !has {
		schema := KnowledgeChunksSchema()
		schema.CollectionName = r.client.CollectionName(schema.CollectionName)

		if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexHNSW(
			entity.COSINE,
			r.client.config.HNSWM,
			r.client.config.HNSWEfConstruction,
		)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to build index: %w", err)
		}
		if err := r.client.milvus.CreateIndex(ctx, schema.CollectionName, "vector", idx, false); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return r.client.LoadCollection(ctx, CollectionKnowledgeChunks)
}

// InsertChunks 批量写入分块
func (r *Repository) InsertChunks(ctx context.Context, chunks []*Chunk) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertChunks",
		trace.WithAttributes(attribute.Int("chunk_count", len(chunks))))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, 0, len(chunks))
	titles := make([]string, 0, len(chunks))
	contents := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))

	for _, c := range chunks {
		if len(c.Vector) != VectorDimension {
			return fmt.Errorf("chunk %s has unexpected vector dimension: %d", c.ID, len(c.Vector))
		}
		ids = append(ids, c.ID)
		titles = append(titles, c.Title)
		contents = append(contents, c.Content)
		vectors = append(vectors, c.Vector)
	}

	collName := r.client.CollectionName(CollectionKnowledgeChunks)
	_, err := r.client.milvus.Insert(ctx, collName, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("vector", VectorDimension, vectors),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("content", contents),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// SearchChunks 按查询向量检索 topK 个最近邻分块，结果按相似度降序
// （即距离升序，最相似的在前）。
func (r *Repository) SearchChunks(ctx context.Context, queryVector []float32, topK int) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	if topK <= 0 {
		topK = 5
	}

	start := time.Now()
	collName := r.client.CollectionName(CollectionKnowledgeChunks)

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		"",
		[]string{"id", "title", "content"},
		[]entity.Vector{entity.FloatVector(queryVector)},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(CollectionKnowledgeChunks).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(CollectionKnowledgeChunks, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(CollectionKnowledgeChunks, "ok").Inc()

	var searchResults []*SearchResult
	for _, result := range results {
		idCol, _ := result.Fields.GetColumn("id").(*entity.ColumnVarChar)
		titleCol, _ := result.Fields.GetColumn("title").(*entity.ColumnVarChar)
		contentCol, _ := result.Fields.GetColumn("content").(*entity.ColumnVarChar)

		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{Score: result.Scores[i]}
			if idCol != nil {
				sr.ID, _ = idCol.ValueByIdx(i)
			}
			if titleCol != nil {
				sr.Title, _ = titleCol.ValueByIdx(i)
			}
			if contentCol != nil {
				sr.Content, _ = contentCol.ValueByIdx(i)
			}
			searchResults = append(searchResults, sr)
		}
	}

	return searchResults, nil
}
