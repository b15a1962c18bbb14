package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func keys(a Alert) []string {
	var out []string
	for _, f := range a.Fields() {
		out = append(out, f.Key)
	}
	return out
}

func TestAlert_FieldsPerRule(t *testing.T) {
	tests := []struct {
		alert Alert
		want  []string
	}{
		{Alert{Rule: RuleHighRequestRate, IP: "1.1.1.1", Count: 100, WindowSeconds: 60, Sample: "x"}, []string{"rule", "ip", "count", "window_seconds", "sample"}},
		{Alert{Rule: RuleBruteForceLogin, IP: "1.1.1.1", Count: 10, WindowSeconds: 300, Samples: []string{"a"}}, []string{"rule", "ip", "count", "window_seconds", "samples"}},
		{Alert{Rule: Rule404Scanning, IP: "1.1.1.1", Count: 50, Sample: "x"}, []string{"rule", "ip", "count", "sample"}},
		{Alert{Rule: RuleSQLiPattern, IP: "1.1.1.1", Path: "/p", Sample: "x"}, []string{"rule", "ip", "path", "sample"}},
		{Alert{Rule: RuleXSSPattern, IP: "1.1.1.1", Path: "/p", Sample: "x"}, []string{"rule", "ip", "path", "sample"}},
		{Alert{Rule: RuleSuspiciousUserAgent, IP: "1.1.1.1", Agent: "curl", Sample: "x", LineNumber: 7}, []string{"rule", "ip", "agent", "sample", "log_line_number"}},
	}

	for _, tt := range tests {
		t.Run(tt.alert.Rule, func(t *testing.T) {
			got := keys(tt.alert)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("field %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestAlert_MarshalJSON(t *testing.T) {
	a := Alert{Rule: RuleBruteForceLogin, IP: "10.0.0.1", Count: 10, WindowSeconds: 300, Samples: []string{"l1", "l2"}, LineNumber: 42}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m["rule"] != RuleBruteForceLogin || m["ip"] != "10.0.0.1" {
		t.Errorf("Unexpected base fields %v", m)
	}
	if m["window_seconds"] != 300.0 || m["log_line_number"] != 42.0 {
		t.Errorf("Unexpected numeric fields %v", m)
	}
	if _, ok := m["sample"]; ok {
		t.Error("Did not expect 'sample' on a brute force alert")
	}
	if samples, ok := m["samples"].([]interface{}); !ok || len(samples) != 2 {
		t.Errorf("Expected 2 samples, got %v", m["samples"])
	}
}

func TestAlert_MarshalJSON_KeyOrder(t *testing.T) {
	a := Alert{Rule: RuleHighRequestRate, IP: "10.0.0.1", Count: 100, WindowSeconds: 60, Sample: "GET /", LineNumber: 3}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"rule":"high_request_rate","ip":"10.0.0.1","count":100,"window_seconds":60,"sample":"GET /","log_line_number":3}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}

	out, err := json.MarshalIndent([]Alert{a}, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}
	if strings.Index(string(out), `"rule"`) > strings.Index(string(out), `"ip"`) {
		t.Errorf("Expected rule before ip in %s", out)
	}
}
