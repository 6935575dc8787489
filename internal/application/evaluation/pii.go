package evaluation

import (
	"context"
	"encoding/json"

	"llm-sentinel-api/internal/domain/entity"
)

// PIIDetector 个人信息与密钥泄露检测器。
// 两族规则相互独立：pii 与 secret 可同时为真。
type PIIDetector struct {
	piiPatterns    []Pattern
	secretPatterns []Pattern
}

func NewPIIDetector(rules *RuleSet) *PIIDetector {
	return &PIIDetector{
		piiPatterns:    rules.PIIPatterns,
		secretPatterns: rules.SecretPatterns,
	}
}

func (d *PIIDetector) Kind() entity.EvalKind {
	return entity.EvalKindPII
}

type piiFinding struct {
	PII    bool     `json:"pii"`
	Secret bool     `json:"secret"`
	Hits   []string `json:"hits"`
}

// Scan 对任意文本执行规则匹配
func (d *PIIDetector) Scan(text string) (pii, secret bool, hits []string) {
	hits = []string{}
	for _, p := range d.piiPatterns {
		if p.Regexp.MatchString(text) {
			pii = true
			hits = append(hits, p.Name)
		}
	}
	for _, p := range d.secretPatterns {
		if p.Regexp.MatchString(text) {
			secret = true
			hits = append(hits, p.Name)
		}
	}
	return pii, secret, hits
}

func (d *PIIDetector) Evaluate(_ context.Context, call *entity.ModelCall) (*Verdict, error) {
	// 提示词与回复都可能泄露，合并扫描
	pii, secret, hits := d.Scan(call.Prompt + "\n" + call.Response)

	detail, _ := json.Marshal(piiFinding{PII: pii, Secret: secret, Hits: hits})

	v := &Verdict{
		Kind:    d.Kind(),
		Passed:  !pii && !secret,
		Details: string(detail),
	}
	if v.Passed {
		v.Score = 1
	}
	return v, nil
}
