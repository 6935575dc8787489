package evaluation

import (
	"context"
	"strings"

	"llm-sentinel-api/internal/domain/entity"
)

const hallucinationPassThreshold = 0.5

// HallucinationDetector 金标准比对检测器。
// 通过前缀启发式匹配已知问题：金标准 prompt 归一化后的前四个词
// 出现在输入 prompt 中即视为命中该条目。
type HallucinationDetector struct {
	gold []GoldItem
}

func NewHallucinationDetector(rules *RuleSet) *HallucinationDetector {
	return &HallucinationDetector{gold: rules.Gold}
}

func (d *HallucinationDetector) Kind() entity.EvalKind {
	return entity.EvalKindHallucination
}

// Score 计算回复命中预期答案子串的比例
func (d *HallucinationDetector) Score(prompt, response string) (passed bool, score float64, matched bool) {
	p := normalizeText(prompt)
	r := normalizeText(response)

	var gold *GoldItem
	for i := range d.gold {
		words := strings.Split(normalizeText(d.gold[i].Prompt), " ")
		if len(words) > 4 {
			words = words[:4]
		}
		if strings.Contains(p, strings.Join(words, " ")) {
			gold = &d.gold[i]
			break
		}
	}

	// 无金标准条目时不做评判，视为通过
	if gold == nil {
		return true, 1, false
	}

	hits := 0
	for _, e := range gold.Expected {
		if strings.Contains(r, e) {
			hits++
		}
	}
	score = float64(hits) / float64(len(gold.Expected))
	return score >= hallucinationPassThreshold, score, true
}

func (d *HallucinationDetector) Evaluate(_ context.Context, call *entity.ModelCall) (*Verdict, error) {
	passed, score, matched := d.Score(call.Prompt, call.Response)

	details := "gold-compare"
	if !matched {
		details = "gold-compare: no gold entry"
	}
	return &Verdict{
		Kind:    d.Kind(),
		Passed:  passed,
		Score:   score,
		Details: details,
	}, nil
}
