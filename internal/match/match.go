package match

import (
	"regexp"
	"strings"
)

// SQL injection probes. The comment/boolean pattern is deliberately case-sensitive.
var sqliPatterns = []string{
	`(?i)union.*select`,
	`(?i)select.+from`,
	`(?i)or \d+=\d+`,
	`(?i)' or '1'='1`,
	`(--|\bAND\b.*\bOR\b)`,
}

var xssPatterns = []string{
	`(?i)<script\b`,
	`(?i)javascript:`,
	`(?i)onerror=`,
	`(?i)onload=`,
	`(?i)<img.+src=`,
}

// DefaultAgents lists scanners, exploit kits and scripted HTTP clients
var DefaultAgents = []string{
	"sqlmap", "nikto", "acunetix", "fimap", "nmap", "masscan", "curl", "wget", "python-requests",
}

// Matcher holds precompiled stateless detection patterns
type Matcher struct {
	sqli   []*regexp.Regexp
	xss    []*regexp.Regexp
	agents []string
}

// NewMatcher compiles the built-in patterns. extraAgents are appended to
// DefaultAgents after lower-casing; blanks are ignored.
func NewMatcher(extraAgents ...string) *Matcher {
	m := &Matcher{
		sqli: compileAll(sqliPatterns),
		xss:  compileAll(xssPatterns),
	}
	m.agents = append(m.agents, DefaultAgents...)
	for _, a := range extraAgents {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			m.agents = append(m.agents, a)
		}
	}
	return m
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// IsSQLInjection reports whether path looks like a SQL injection probe
func (m *Matcher) IsSQLInjection(path string) bool {
	if path == "" {
		return false
	}
	return anyMatch(m.sqli, path)
}

// IsXSS reports whether path carries a cross-site scripting payload
func (m *Matcher) IsXSS(path string) bool {
	if path == "" {
		return false
	}
	return anyMatch(m.xss, path)
}

// IsSuspiciousAgent reports whether agent names a known tool
func (m *Matcher) IsSuspiciousAgent(agent string) bool {
	if agent == "" {
		return false
	}
	a := strings.ToLower(agent)
	for _, s := range m.agents {
		if strings.Contains(a, s) {
			return true
		}
	}
	return false
}

var std = NewMatcher()

// IsSQLInjection checks path against the default patterns
func IsSQLInjection(path string) bool { return std.IsSQLInjection(path) }

// IsXSS checks path against the default patterns
func IsXSS(path string) bool { return std.IsXSS(path) }

// IsSuspiciousAgent checks agent against DefaultAgents
func IsSuspiciousAgent(agent string) bool { return std.IsSuspiciousAgent(agent) }
