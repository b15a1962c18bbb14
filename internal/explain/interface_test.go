package explain

import (
	"strings"
	"testing"

	"log-triage/internal/types"
)

func TestTemplateExplainer_Explain(t *testing.T) {
	e := NewTemplateExplainer()

	tests := []struct {
		alert types.Alert
		want  string
	}{
		{types.Alert{Rule: types.RuleHighRequestRate, IP: "1.1.1.1", Count: 120, WindowSeconds: 60}, "IP 1.1.1.1 sent 120 requests within 60s."},
		{types.Alert{Rule: types.RuleBruteForceLogin, IP: "1.1.1.1", Count: 10, WindowSeconds: 300, LineNumber: 9}, "IP 1.1.1.1 received 10 auth failures (401/403) within 300s. (line 9)"},
		{types.Alert{Rule: types.RuleSuspiciousUserAgent, IP: "2.2.2.2", Agent: "sqlmap/1.5"}, "IP 2.2.2.2 used a scanner or scripted client: sqlmap/1.5"},
		{types.Alert{Rule: "custom", IP: "3.3.3.3"}, "Rule custom matched for IP 3.3.3.3."},
	}

	for _, tt := range tests {
		if got := e.Explain(tt.alert); got != tt.want {
			t.Errorf("Explain(%s) = %q, want %q", tt.alert.Rule, got, tt.want)
		}
	}
}

func TestTemplateExplainer_StripsControlCharacters(t *testing.T) {
	e := NewTemplateExplainer()

	got := e.Explain(types.Alert{Rule: types.RuleXSSPattern, IP: "1.1.1.1", Path: "/x\x1b[31m<script>"})
	if strings.ContainsRune(got, '\x1b') {
		t.Errorf("Expected escape character to be removed, got %q", got)
	}
	if !strings.Contains(got, "[31m<script>") {
		t.Errorf("Expected printable remainder to survive, got %q", got)
	}
}
