// Package embedding 提供 Embedding 服务客户端
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"llm-sentinel-api/internal/config"
	apperrors "llm-sentinel-api/pkg/errors"
	"llm-sentinel-api/pkg/metrics"
)

// Client Ollama 风格的 Embedding 服务客户端
type Client struct {
	endpoint   string
	model      string
	dimension  int
	httpClient *http.Client
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewClient(cfg *config.EmbeddingConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 768
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured 返回客户端是否配置了服务地址
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.endpoint) != ""
}

// Dimension 返回期望的向量维度
func (c *Client) Dimension() int {
	return c.dimension
}

// EmbedOne 对单条文本生成向量。
// 服务不可用返回 ErrEmbeddingFailed；返回向量维度与配置不符返回 ErrDimensionMismatch。
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if !c.Configured() {
		return nil, apperrors.ErrMissingEmbedConfig
	}

	start := time.Now()
	vec, err := c.doEmbed(ctx, text)
	metrics.EmbeddingRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(vec) != c.dimension {
		metrics.EmbeddingRequestsTotal.WithLabelValues("dimension_mismatch").Inc()
		return nil, apperrors.Wrap(apperrors.ErrDimensionMismatch, apperrors.CodeDimensionMismatch,
			fmt.Sprintf("expected %d dimensions, got %d", c.dimension, len(vec)))
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
	return vec, nil
}

// Embed 对一批文本逐条生成向量
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := c.EmbedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (c *Client) doEmbed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(&embedRequest{
		Model:  c.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	endpoint := strings.TrimRight(c.endpoint, "/")
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeEmbeddingFailed, "invalid embedding endpoint")
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api/embeddings"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEmbeddingFailed, apperrors.CodeEmbeddingFailed, err.Error())
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, apperrors.Wrap(apperrors.ErrEmbeddingFailed, apperrors.CodeEmbeddingFailed,
			fmt.Sprintf("unexpected status %d", httpResp.StatusCode))
	}

	var resp embedResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrEmbeddingFailed, apperrors.CodeEmbeddingFailed,
			fmt.Sprintf("failed to decode response: %v", err))
	}
	return resp.Embedding, nil
}
