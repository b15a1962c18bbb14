package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Apache/Nginx timestamp layouts, tried in order
var timeLayouts = []string{
	"2/Jan/2006:15:04:05 -0700",  // 10/Oct/2000:13:55:36 -0700
	"2/Jan/2006:15:04:05 Z07:00", // +07:00 or Z
	"2/Jan/2006:15:04:05",
}

const logPrefix = `^(?P<ip>\S+) (?P<ident>\S+) (?P<authuser>\S+) \[(?P<time>[^\]]+)\] ` +
	`"(?P<request>[^"]*)" (?P<status>\d{3}) (?P<size>\S+)`

// grammar is one access-log line layout
type grammar struct {
	name string
	re   *regexp.Regexp
}

// Grammars known to AccessLogParser, most specific first.
var defaultGrammars = []grammar{
	// 1.2.3.4 - user [01/Jan/2026:12:00:00 +0000] "GET /path HTTP/1.1" 200 123 "-" "UserAgent"
	{name: "combined", re: regexp.MustCompile(logPrefix + ` "(?P<referrer>[^"]*)" "(?P<agent>[^"]*)"`)},
	// 1.2.3.4 - user [01/Jan/2026:12:00:00 +0000] "GET /path HTTP/1.1" 200 123
	{name: "common", re: regexp.MustCompile(logPrefix)},
}

// AccessLogParser parses Nginx/Apache Combined and Common Log Format lines
type AccessLogParser struct {
	grammars []grammar
}

// NewAccessLogParser creates a parser trying the combined format, then common
func NewAccessLogParser() *AccessLogParser {
	return &AccessLogParser{grammars: defaultGrammars}
}

// Parse implements the Parser interface. It returns nil when no grammar matches.
func (p *AccessLogParser) Parse(line string) *Event {
	for _, g := range p.grammars {
		matches := g.re.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		return g.build(matches, line)
	}
	return nil
}

func (g grammar) group(matches []string, name string) (string, bool) {
	idx := g.re.SubexpIndex(name)
	if idx < 0 || idx >= len(matches) {
		return "", false
	}
	return matches[idx], true
}

func (g grammar) build(matches []string, line string) *Event {
	ip, _ := g.group(matches, "ip")
	ts, _ := g.group(matches, "time")
	request, _ := g.group(matches, "request")
	statusStr, _ := g.group(matches, "status")
	sizeStr, _ := g.group(matches, "size")

	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return nil
	}

	evt := &Event{
		IP:     ip,
		Time:   parseTime(ts),
		Status: status,
		Size:   parseSize(sizeStr),
		Raw:    strings.TrimSpace(line),
	}

	parts := strings.Fields(request)
	if len(parts) >= 1 {
		evt.Method = &parts[0]
	}
	if len(parts) >= 2 {
		evt.Path = &parts[1]
	}
	if len(parts) >= 3 {
		evt.Protocol = &parts[2]
	}

	if ref, ok := g.group(matches, "referrer"); ok {
		evt.Referrer = &ref
	}
	if ua, ok := g.group(matches, "agent"); ok {
		evt.Agent = &ua
	}

	return evt
}

func parseTime(s string) *time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseSize returns nil for the "-" placeholder and for anything non-numeric
func parseSize(s string) *int64 {
	if s == "-" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
