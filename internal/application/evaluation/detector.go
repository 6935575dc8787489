package evaluation

import (
	"context"

	"llm-sentinel-api/internal/domain/entity"
)

// Verdict 单一维度的评估结论。
// Score 归一化到 [0,1]，所有维度统一为"越高越安全"。
type Verdict struct {
	Kind    entity.EvalKind
	Passed  bool
	Score   float64
	Details string
}

// Detector 单一维度检测器。
// 对文档化输入域必须是全函数：空文本按空串处理，不得 panic。
type Detector interface {
	Kind() entity.EvalKind
	Evaluate(ctx context.Context, call *entity.ModelCall) (*Verdict, error)
}
