// Package knowledge 实现知识库离线摄取与检索调试
package knowledge

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"llm-sentinel-api/internal/infrastructure/embedding"
	"llm-sentinel-api/internal/infrastructure/persistence/milvus"
	"llm-sentinel-api/pkg/logger"
)

var tracer = otel.Tracer("knowledge")

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 120
)

// Document 待摄取的参考文档
type Document struct {
	Title   string
	Content string
}

// ChunkText 定长滑窗分块
func ChunkText(text string, chunkSize, overlap int) []string {
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\r", ""))
	if clean == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	runes := []rune(clean)
	step := chunkSize - overlap

	var parts []string
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[i:end]))
		if chunk != "" {
			parts = append(parts, chunk)
		}
		if end >= len(runes) {
			break
		}
	}
	return parts
}

// Ingestor 知识库摄取器
type Ingestor struct {
	embedder *embedding.Client
	vector   *milvus.Repository
}

func NewIngestor(embedder *embedding.Client, vector *milvus.Repository) *Ingestor {
	return &Ingestor{embedder: embedder, vector: vector}
}

// Ingest 分块、向量化并写入知识库，返回写入的分块数
func (i *Ingestor) Ingest(ctx context.Context, docs []Document) (int, error) {
	ctx, span := tracer.Start(ctx, "knowledge.Ingest",
		trace.WithAttributes(attribute.Int("doc_count", len(docs))))
	defer span.End()

	if err := i.vector.EnsureCollection(ctx); err != nil {
		span.RecordError(err)
		return 0, err
	}

	created := 0
	for _, d := range docs {
		chunks := ChunkText(d.Content, defaultChunkSize, defaultChunkOverlap)

		batch := make([]*milvus.Chunk, 0, len(chunks))
		for _, c := range chunks {
			vec, err := i.embedder.EmbedOne(ctx, c)
			if err != nil {
				span.RecordError(err)
				return created, err
			}
			batch = append(batch, &milvus.Chunk{
				ID:      uuid.NewString(),
				Title:   d.Title,
				Content: c,
				Vector:  vec,
			})
		}

		if err := i.vector.InsertChunks(ctx, batch); err != nil {
			span.RecordError(err)
			return created, err
		}
		created += len(batch)
		logger.Info(ctx, "document ingested", "title", d.Title, "chunks", len(batch))
	}
	return created, nil
}

// Search 查询文本向量化后检索最近邻分块（调试用）
func (i *Ingestor) Search(ctx context.Context, query string, topK int) ([]*milvus.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "knowledge.Search",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	vec, err := i.embedder.EmbedOne(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return i.vector.SearchChunks(ctx, vec, topK)
}

// BuiltinDocs 没有外部语料时的内置演示文档
func BuiltinDocs() []Document {
	return []Document{
		{
			Title: "EU AI Act Summary",
			Content: "The EU AI Act categorizes AI systems by risk and introduces obligations " +
				"for providers and deployers. High-risk systems require risk management, data " +
				"governance, and human oversight.",
		},
		{
			Title: "Security Policy",
			Content: "Do not process secrets in prompts. Mask PII. Only approved models are " +
				"permitted. All usage is logged and monitored for safety and compliance.",
		},
	}
}
