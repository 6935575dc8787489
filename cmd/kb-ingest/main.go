// Package main 知识库摄取工具，将语料目录写入向量库
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"llm-sentinel-api/internal/application/knowledge"
	"llm-sentinel-api/internal/config"
	"llm-sentinel-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "", "directory of .md/.txt documents to ingest (builtin demo docs when empty)")
	flag.Parse()

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

	if dataLayer.VectorRepo == nil {
		log.Fatal("milvus not available, cannot ingest knowledge base")
	}
	if !dataLayer.Embedder.Configured() {
		log.Fatal("embedding endpoint not configured, cannot ingest knowledge base")
	}

	docs, err := loadDocs(*dir)
	if err != nil {
		log.Fatalf("failed to load documents: %v", err)
	}

	chunks, err := dataLayer.Ingestor.Ingest(ctx, docs)
	if err != nil {
		log.Fatalf("failed to ingest documents: %v", err)
	}
	fmt.Printf("Ingested %d documents as %d chunks.\n", len(docs), chunks)
}

// loadDocs 读取目录下的 .md/.txt 文件，目录为空时使用内置文档
func loadDocs(dir string) ([]knowledge.Document, error) {
	if dir == "" {
		fmt.Println("No directory given, using builtin demo documents.")
		return knowledge.BuiltinDocs(), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var docs []knowledge.Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		title := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		docs = append(docs, knowledge.Document{Title: title, Content: string(data)})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no .md or .txt documents found in %s", dir)
	}
	return docs, nil
}
