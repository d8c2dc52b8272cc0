package scenario

import "strings"

// 通话类型取值，与人设服务 call_type 字段一致。
const (
	TypeScam       = "scam"
	TypeLegitimate = "legitimate"
)

// Scenario 描述一通模拟来电的人设与脚本。
type Scenario struct {
	ID           string   `json:"id" yaml:"id"`
	Type         string   `json:"type" yaml:"type"`
	Difficulty   string   `json:"difficulty" yaml:"difficulty"`
	Gender       string   `json:"gender,omitempty" yaml:"gender"`
	CallerName   string   `json:"callerName" yaml:"caller_name"`
	Company      string   `json:"company" yaml:"company"`
	Phone        string   `json:"phone" yaml:"phone"`
	Opening      string   `json:"opening" yaml:"opening"`
	Followups    []string `json:"followups,omitempty" yaml:"followups"`
	InfoRequests []string `json:"infoRequests,omitempty" yaml:"info_requests"`
	RedFlags     []string `json:"redFlags,omitempty" yaml:"red_flags"`
}

// IsLegitimate reports whether the caller is a genuine organisation.
func (s Scenario) IsLegitimate() bool {
	return strings.EqualFold(s.Type, TypeLegitimate)
}

// Followup 返回第 n 轮的脚本台词，超出范围时返回 false。
func (s Scenario) Followup(n int) (string, bool) {
	if n < 0 || n >= len(s.Followups) {
		return "", false
	}
	return s.Followups[n], true
}
