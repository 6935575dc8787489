package evaluation

import (
	"context"
	"fmt"

	"llm-sentinel-api/internal/domain/entity"
)

// InjectionDetector 提示注入模式检测器。
// 按顺序匹配，首个命中即返回，details 记录命中的规则名。
type InjectionDetector struct {
	patterns []Pattern
}

func NewInjectionDetector(rules *RuleSet) *InjectionDetector {
	return &InjectionDetector{patterns: rules.InjectionPatterns}
}

func (d *InjectionDetector) Kind() entity.EvalKind {
	return entity.EvalKindInjection
}

// Match 返回首个命中的规则名
func (d *InjectionDetector) Match(text string) (matched bool, pattern string) {
	for _, p := range d.patterns {
		if p.Regexp.MatchString(text) {
			return true, p.Name
		}
	}
	return false, ""
}

func (d *InjectionDetector) Evaluate(_ context.Context, call *entity.ModelCall) (*Verdict, error) {
	matched, pattern := d.Match(call.Prompt)

	v := &Verdict{
		Kind:   d.Kind(),
		Passed: !matched,
	}
	if matched {
		v.Details = fmt.Sprintf("pattern: %s", pattern)
	} else {
		v.Score = 1
		v.Details = "no pattern matched"
	}
	return v, nil
}
