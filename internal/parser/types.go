package parser

import (
	"encoding/json"
	"time"
)

// Event is one parsed access-log line. Optional fields are nil when the
// line did not carry them or they failed to parse.
type Event struct {
	IP       string
	Time     *time.Time
	Method   *string
	Path     *string
	Protocol *string
	Status   int
	Size     *int64
	Referrer *string
	Agent    *string
	Raw      string // trimmed original line
}

// Parser turns a raw line into an Event, or nil if the line is not recognised
type Parser interface {
	Parse(line string) *Event
}

// PathOrEmpty returns the request path, or "" when absent
func (e *Event) PathOrEmpty() string {
	if e.Path == nil {
		return ""
	}
	return *e.Path
}

// AgentOrEmpty returns the user agent, or "" when absent
func (e *Event) AgentOrEmpty() string {
	if e.Agent == nil {
		return ""
	}
	return *e.Agent
}

// MarshalJSON renders the event with lower-case keys and an RFC 3339 time.
func (e Event) MarshalJSON() ([]byte, error) {
	var ts *string
	if e.Time != nil {
		s := e.Time.Format(time.RFC3339)
		ts = &s
	}
	return json.Marshal(struct {
		IP       string  `json:"ip"`
		Time     *string `json:"time"`
		Method   *string `json:"method"`
		Path     *string `json:"path"`
		Protocol *string `json:"protocol"`
		Status   int     `json:"status"`
		Size     *int64  `json:"size"`
		Referrer *string `json:"referrer"`
		Agent    *string `json:"agent"`
		Raw      string  `json:"raw"`
	}{e.IP, ts, e.Method, e.Path, e.Protocol, e.Status, e.Size, e.Referrer, e.Agent, e.Raw})
}
