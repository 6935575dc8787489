package evaluation

import (
	"context"
	"encoding/json"
	"strings"

	"llm-sentinel-api/internal/domain/entity"
	"llm-sentinel-api/internal/infrastructure/embedding"
	"llm-sentinel-api/internal/infrastructure/persistence/milvus"
)

const (
	groundingMinSharedWords = 3
	groundingMinWordLen     = 4
	defaultRetrievalTopK    = 5
)

// GroundingDetector 检索式溯源检测器。
// 回复向量化后检索知识库最近邻，任一分块与回复共享
// 至少 3 个长度大于 4 的不同词即视为有依据。
// 词面重叠只是粗粒度代理，不是语义蕴含判断。
type GroundingDetector struct {
	embedder *embedding.Client
	vector   *milvus.Repository
	topK     int
}

func NewGroundingDetector(embedder *embedding.Client, vector *milvus.Repository, topK int) *GroundingDetector {
	if topK <= 0 {
		topK = defaultRetrievalTopK
	}
	return &GroundingDetector{
		embedder: embedder,
		vector:   vector,
		topK:     topK,
	}
}

func (d *GroundingDetector) Kind() entity.EvalKind {
	return entity.EvalKindGrounding
}

// Ready 返回外部依赖是否配置齐全
func (d *GroundingDetector) Ready() bool {
	return d != nil && d.embedder.Configured() && d.vector != nil
}

type groundingFinding struct {
	Supported bool     `json:"supported"`
	Evidence  []string `json:"evidence"`
}

// sharedWords 统计回复与分块内容共享的长词数（去重）
func sharedWords(response, chunkContent string) int {
	content := strings.ToLower(chunkContent)
	seen := make(map[string]struct{})
	for _, w := range nonWordRe.Split(strings.ToLower(response), -1) {
		if len(w) <= groundingMinWordLen {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		if strings.Contains(content, w) {
			seen[w] = struct{}{}
		}
	}
	return len(seen)
}

// Evaluate 失败时返回错误而非"无依据"：
// 服务不可达与"检查过但无依据"必须可区分，避免误报。
func (d *GroundingDetector) Evaluate(ctx context.Context, call *entity.ModelCall) (*Verdict, error) {
	vec, err := d.embedder.EmbedOne(ctx, call.Response)
	if err != nil {
		return nil, err
	}

	chunks, err := d.vector.SearchChunks(ctx, vec, d.topK)
	if err != nil {
		return nil, err
	}

	supported := false
	evidence := make([]string, 0, len(chunks))
	for _, c := range chunks {
		evidence = append(evidence, c.ID)
		if sharedWords(call.Response, c.Content) >= groundingMinSharedWords {
			supported = true
		}
	}

	detail, _ := json.Marshal(groundingFinding{Supported: supported, Evidence: evidence})

	v := &Verdict{
		Kind:    d.Kind(),
		Passed:  supported,
		Details: string(detail),
	}
	if supported {
		v.Score = 1
	}
	return v, nil
}
