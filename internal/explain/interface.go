package explain

import (
	"fmt"
	"strings"

	"log-triage/internal/types"
)

// Explainer turns an alert into a short human-readable sentence
type Explainer interface {
	Explain(alert types.Alert) string
}

// TemplateExplainer uses static string templates (Offline/Fast)
type TemplateExplainer struct{}

func NewTemplateExplainer() *TemplateExplainer {
	return &TemplateExplainer{}
}

func (e *TemplateExplainer) Explain(alert types.Alert) string {
	var msg string
	switch alert.Rule {
	case types.RuleHighRequestRate:
		msg = fmt.Sprintf("IP %s sent %d requests within %s.", alert.IP, alert.Count, seconds(alert.WindowSeconds))
	case types.RuleBruteForceLogin:
		msg = fmt.Sprintf("IP %s received %d auth failures (401/403) within %s.", alert.IP, alert.Count, seconds(alert.WindowSeconds))
	case types.Rule404Scanning:
		msg = fmt.Sprintf("IP %s triggered %d not-found responses in a short burst.", alert.IP, alert.Count)
	case types.RuleSQLiPattern:
		msg = fmt.Sprintf("IP %s requested a path with SQL injection markers: %s", alert.IP, alert.Path)
	case types.RuleXSSPattern:
		msg = fmt.Sprintf("IP %s requested a path with script injection markers: %s", alert.IP, alert.Path)
	case types.RuleSuspiciousUserAgent:
		msg = fmt.Sprintf("IP %s used a scanner or scripted client: %s", alert.IP, alert.Agent)
	default:
		msg = fmt.Sprintf("Rule %s matched for IP %s.", alert.Rule, alert.IP)
	}
	if alert.LineNumber > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, alert.LineNumber)
	}
	return Sanitize(msg)
}

func seconds(s float64) string {
	return fmt.Sprintf("%gs", s)
}

// Sanitize strips control characters (except newline and tab) so log
// content cannot inject terminal escapes
func Sanitize(s string) string {
	var builder strings.Builder
	for _, r := range s {
		if r >= 32 || r == '\n' || r == '\t' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
