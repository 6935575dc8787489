// Package main 系统初始化：建表、演示数据与知识库
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/joho/godotenv"

	"llm-sentinel-api/internal/application/ingestion"
	"llm-sentinel-api/internal/application/knowledge"
	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/wire"
)

// 演示数据规模
const (
	seedCallCount = 120
	seedModel     = "demo-1"
	seedProvider  = "local"
	seedFailRate  = 0.08
)

// seedPrompts 演示用 prompt/response 组合
var seedPrompts = []struct {
	Prompt   string
	Response string
}{
	{
		Prompt:   "What is the capital of France?",
		Response: "The capital of France is Paris.",
	},
	{
		Prompt:   "Explain GDPR data subject rights briefly.",
		Response: "GDPR grants data subjects rights including access, rectification and erasure of their personal data.",
	},
	{
		Prompt:   "Summarize our security policy for API keys.",
		Response: "API keys must be stored in a secrets manager, rotated regularly and never committed to source control.",
	},
	{
		Prompt:   "Give three tips for writing unit tests.",
		Response: "Keep tests independent, assert observable behavior instead of internals, and make failure messages actionable.",
	},
}

// hallucinatedResponse 周期性注入的错误回答，用于演示幻觉检测
const hallucinatedResponse = "Paris is the capital of Germany."

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	dataLayer, cleanup, err := wire.InitializeDataLayer(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 1. 建表
	fmt.Println("Running migrations...")
	if err := dataLayer.PgClient.DB().WithContext(ctx).AutoMigrate(
		&entity.User{},
		&entity.ModelCall{},
		&entity.EvalResult{},
	); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// 2. 演示用户
	users := seedUsers(ctx, dataLayer)

	// 3. 演示调用日志
	seedCalls(ctx, dataLayer, users)

	// 4. 知识库（Embedding 与 Milvus 均可用时）
	seedKnowledgeBase(ctx, dataLayer)

	fmt.Println("Bootstrap completed successfully.")
}

func seedUsers(ctx context.Context, dl *wire.DataLayer) []*entity.User {
	seeds := []entity.User{
		{Email: "alice@example.com", Name: "Alice"},
		{Email: "bob@example.com", Name: "Bob"},
	}

	out := make([]*entity.User, 0, len(seeds))
	for i := range seeds {
		u := &seeds[i]
		exists, err := dl.UserRepo.ExistsByEmail(ctx, u.Email)
		if err != nil {
			log.Fatalf("failed to check user existence: %v", err)
		}
		if exists {
			fmt.Printf("User %s already exists, skipping seed data.\n", u.Email)
			existing, err := dl.UserRepo.ListAll(ctx)
			if err != nil {
				log.Fatalf("failed to list users: %v", err)
			}
			return existing
		}
		if err := dl.UserRepo.Create(ctx, u); err != nil {
			log.Fatalf("failed to create user %s: %v", u.Email, err)
		}
		out = append(out, u)
	}
	fmt.Printf("Created %d demo users.\n", len(out))
	return out
}

func seedCalls(ctx context.Context, dl *wire.DataLayer, users []*entity.User) {
	existing, err := dl.CallRepo.ListRecent(ctx, 1)
	if err != nil {
		log.Fatalf("failed to check existing calls: %v", err)
	}
	if len(existing) > 0 {
		fmt.Println("Model calls already present, skipping seed data.")
		return
	}

	rng := rand.New(rand.NewSource(42))
	now := time.Now()

	created := 0
	for i := 0; i < seedCallCount; i++ {
		sample := seedPrompts[i%len(seedPrompts)]
		prompt := sample.Prompt
		response := sample.Response

		// 周期性注入幻觉样本
		if (i+1)%11 == 0 {
			prompt = seedPrompts[0].Prompt
			response = hallucinatedResponse
		}

		status := entity.CallStatusSuccess
		if rng.Float64() < seedFailRate {
			status = entity.CallStatusFail
		}

		user := users[i%len(users)]
		promptTokens := 20 + rng.Intn(80)
		respTokens := 15 + rng.Intn(120)

		call := &entity.ModelCall{
			UserID:       &user.ID,
			Provider:     seedProvider,
			Model:        seedModel,
			Prompt:       prompt,
			Response:     response,
			LatencyMs:    100 + rng.Intn(1200),
			PromptTokens: promptTokens,
			RespTokens:   respTokens,
			CostUsd:      ingestion.EstimateCostUsd(promptTokens, respTokens),
			Status:       status,
			Route:        "/v1/calls",
			IP:           "127.0.0.1",
			CreatedAt:    now.Add(-time.Duration(rng.Intn(14*24*60)) * time.Minute),
		}

		if err := dl.CallRepo.Create(ctx, call); err != nil {
			log.Fatalf("failed to create model call: %v", err)
		}
		created++
	}
	fmt.Printf("Created %d demo model calls.\n", created)
}

func seedKnowledgeBase(ctx context.Context, dl *wire.DataLayer) {
	if dl.VectorRepo == nil {
		fmt.Println("Milvus not available, skipping knowledge base seed.")
		return
	}
	if !dl.Embedder.Configured() {
		fmt.Println("Embedding endpoint not configured, skipping knowledge base seed.")
		return
	}

	chunks, err := dl.Ingestor.Ingest(ctx, knowledge.BuiltinDocs())
	if err != nil {
		log.Fatalf("failed to seed knowledge base: %v", err)
	}
	fmt.Printf("Knowledge base seeded with %d chunks.\n", chunks)
}
