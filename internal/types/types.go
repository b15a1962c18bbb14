package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// Rule names carried in Alert.Rule
const (
	RuleHighRequestRate     = "high_request_rate"
	RuleBruteForceLogin     = "brute_force_login"
	Rule404Scanning         = "404_scanning"
	RuleSQLiPattern         = "sqli_pattern"
	RuleXSSPattern          = "xss_pattern"
	RuleSuspiciousUserAgent = "suspicious_user_agent"
)

// Field is one key/value pair of an alert's flat representation
type Field struct {
	Key   string
	Value interface{}
}

// Alert is the evidence record produced by a rule. Only the fields relevant
// to Rule are populated; Fields() exposes exactly that set.
type Alert struct {
	Rule          string
	IP            string
	Count         int
	WindowSeconds float64
	Sample        string
	Samples       []string
	Path          string
	Agent         string

	// LineNumber is attached by the caller, 0 means unknown
	LineNumber int
}

// Fields returns the alert as an ordered flat mapping
func (a Alert) Fields() []Field {
	fields := []Field{{"rule", a.Rule}, {"ip", a.IP}}

	switch a.Rule {
	case RuleHighRequestRate:
		fields = append(fields, Field{"count", a.Count}, Field{"window_seconds", a.WindowSeconds}, Field{"sample", a.Sample})
	case RuleBruteForceLogin:
		fields = append(fields, Field{"count", a.Count}, Field{"window_seconds", a.WindowSeconds}, Field{"samples", a.Samples})
	case Rule404Scanning:
		fields = append(fields, Field{"count", a.Count}, Field{"sample", a.Sample})
	case RuleSQLiPattern, RuleXSSPattern:
		fields = append(fields, Field{"path", a.Path}, Field{"sample", a.Sample})
	case RuleSuspiciousUserAgent:
		fields = append(fields, Field{"agent", a.Agent}, Field{"sample", a.Sample})
	}

	if a.LineNumber > 0 {
		fields = append(fields, Field{"log_line_number", a.LineNumber})
	}
	return fields
}

// Map returns Fields() as a map
func (a Alert) Map() map[string]interface{} {
	m := make(map[string]interface{})
	for _, f := range a.Fields() {
		m[f.Key] = f.Value
	}
	return m
}

// MarshalJSON encodes the alert as its flat field mapping, keys in
// Fields() order. HTML escaping is left to the caller's encoder.
func (a Alert) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, f := range a.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(f.Key); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1) // Encode appends a newline
		buf.WriteByte(':')
		if err := enc.Encode(f.Value); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DetectionRule tunes one stateful rule
type DetectionRule struct {
	Window    time.Duration `yaml:"window"`
	Threshold int           `yaml:"threshold"`
	Samples   int           `yaml:"samples,omitempty"` // brute force only
}

// Alert modes
const (
	AlertModeEvery = "every" // re-fire on every event at or above threshold
	AlertModeEdge  = "edge"  // fire once per crossing from below threshold
)

// Config represents the application configuration
type Config struct {
	Input struct {
		WebLogPath string `yaml:"web_log_path"` // Nginx/Apache
		MaxLines   int    `yaml:"max_lines"`
	} `yaml:"input"`

	Detection struct {
		AlertMode   string        `yaml:"alert_mode"`
		HighRate    DetectionRule `yaml:"high_rate"`
		BruteForce  DetectionRule `yaml:"brute_force"`
		Scanning    DetectionRule `yaml:"scanning"`
		ExtraAgents []string      `yaml:"extra_agents"`
		Shards      int           `yaml:"shards"`
	} `yaml:"detection"`

	Notification struct {
		Webhook   string   `yaml:"webhook"`
		PerMinute int      `yaml:"per_minute"`
		Allowlist []string `yaml:"allowlist"` // IPs never notified about
	} `yaml:"notification"`

	Dashboard struct {
		Enabled bool   `yaml:"enabled"`
		Port    string `yaml:"port"`
	} `yaml:"dashboard"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console, json
	} `yaml:"logging"`

	Output struct {
		Dir          string `yaml:"dir"`
		JSONPath     string `yaml:"json_path"`
		CSVPath      string `yaml:"csv_path"`
		DBPath       string `yaml:"db_path"`
		AuditLogPath string `yaml:"audit_log_path"`
	} `yaml:"output"`
}
