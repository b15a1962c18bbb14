package detect

import (
	"strings"
	"time"

	"log-triage/internal/match"
	"log-triage/internal/parser"
	"log-triage/internal/types"
	"log-triage/internal/window"
)

// Options tunes the stateful rules. Zero values are replaced by defaults.
type Options struct {
	HighRate    types.DetectionRule
	BruteForce  types.DetectionRule
	Scanning    types.DetectionRule
	AlertMode   string
	ExtraAgents []string
}

// DefaultOptions returns the stock thresholds
func DefaultOptions() Options {
	return Options{
		HighRate:   types.DetectionRule{Window: 1 * time.Minute, Threshold: 100},
		BruteForce: types.DetectionRule{Window: 5 * time.Minute, Threshold: 10, Samples: 5},
		Scanning:   types.DetectionRule{Window: 1 * time.Minute, Threshold: 50},
		AlertMode:  types.AlertModeEvery,
	}
}

// OptionsFromConfig maps the detection section of cfg onto Options
func OptionsFromConfig(cfg *types.Config) Options {
	return Options{
		HighRate:    cfg.Detection.HighRate,
		BruteForce:  cfg.Detection.BruteForce,
		Scanning:    cfg.Detection.Scanning,
		AlertMode:   cfg.Detection.AlertMode,
		ExtraAgents: cfg.Detection.ExtraAgents,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	fill := func(r, d types.DetectionRule) types.DetectionRule {
		if r.Window <= 0 {
			r.Window = d.Window
		}
		if r.Threshold <= 0 {
			r.Threshold = d.Threshold
		}
		if r.Samples <= 0 {
			r.Samples = d.Samples
		}
		return r
	}
	o.HighRate = fill(o.HighRate, def.HighRate)
	o.BruteForce = fill(o.BruteForce, def.BruteForce)
	o.Scanning = fill(o.Scanning, def.Scanning)
	if o.AlertMode != types.AlertModeEdge {
		o.AlertMode = types.AlertModeEvery
	}
	return o
}

// authFailure is a 401/403 kept for brute force evidence
type authFailure struct {
	t      time.Time
	status int
	path   string
	raw    string
}

func (a authFailure) At() time.Time { return a.t }

// Engine is the core detection engine. It owns all per-IP state and is
// meant to be fed from a single goroutine, in time order.
type Engine struct {
	opts    Options
	matcher *match.Matcher

	requests *window.Window[window.Stamp]
	authFail *window.Window[authFailure]
	notFound *window.Window[window.Stamp]

	// rule+ip currently at or above threshold, edge mode only
	firing map[string]bool
}

// NewEngine creates a new detection engine with empty windows
func NewEngine(opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		opts:     opts,
		matcher:  match.NewMatcher(opts.ExtraAgents...),
		requests: window.New[window.Stamp](opts.HighRate.Window),
		authFail: window.New[authFailure](opts.BruteForce.Window),
		notFound: window.New[window.Stamp](opts.Scanning.Window),
		firing:   make(map[string]bool),
	}
}

// Options returns the effective options
func (e *Engine) Options() Options {
	return e.opts
}

// Feed applies every rule to evt and returns the alerts it raised, in rule
// order. Events without a time skip the windowed rules.
func (e *Engine) Feed(evt *parser.Event) []types.Alert {
	if evt == nil {
		return nil
	}

	var alerts []types.Alert
	ip := evt.IP
	path := evt.PathOrEmpty()

	if evt.Time != nil {
		t := *evt.Time

		// Rule 1: request rate
		count := e.requests.Observe(ip, window.Stamp(t))
		if e.trigger(types.RuleHighRequestRate, ip, count, e.opts.HighRate.Threshold) {
			alerts = append(alerts, types.Alert{
				Rule:          types.RuleHighRequestRate,
				IP:            ip,
				Count:         count,
				WindowSeconds: e.opts.HighRate.Window.Seconds(),
				Sample:        evt.Raw,
			})
		}

		// Rule 2: 401/403 bursts
		if evt.Status == 401 || evt.Status == 403 {
			count := e.authFail.Observe(ip, authFailure{t: t, status: evt.Status, path: path, raw: evt.Raw})
			if e.trigger(types.RuleBruteForceLogin, ip, count, e.opts.BruteForce.Threshold) {
				recent := e.authFail.Recent(ip, e.opts.BruteForce.Samples)
				samples := make([]string, 0, len(recent))
				for _, r := range recent {
					samples = append(samples, r.raw)
				}
				alerts = append(alerts, types.Alert{
					Rule:          types.RuleBruteForceLogin,
					IP:            ip,
					Count:         count,
					WindowSeconds: e.opts.BruteForce.Window.Seconds(),
					Samples:       samples,
				})
			}
		}

		// Rule 3: 404 sweeps
		if evt.Status == 404 {
			count := e.notFound.Observe(ip, window.Stamp(t))
			if e.trigger(types.Rule404Scanning, ip, count, e.opts.Scanning.Threshold) {
				alerts = append(alerts, types.Alert{
					Rule:   types.Rule404Scanning,
					IP:     ip,
					Count:  count,
					Sample: evt.Raw,
				})
			}
		}
	}

	// Stateless checks run regardless of the above
	if e.matcher.IsSQLInjection(path) {
		alerts = append(alerts, types.Alert{Rule: types.RuleSQLiPattern, IP: ip, Path: path, Sample: evt.Raw})
	}
	if e.matcher.IsXSS(path) {
		alerts = append(alerts, types.Alert{Rule: types.RuleXSSPattern, IP: ip, Path: path, Sample: evt.Raw})
	}
	if agent := evt.AgentOrEmpty(); e.matcher.IsSuspiciousAgent(agent) {
		alerts = append(alerts, types.Alert{Rule: types.RuleSuspiciousUserAgent, IP: ip, Agent: agent, Sample: evt.Raw})
	}

	return alerts
}

// trigger decides whether a threshold rule fires for this evaluation
func (e *Engine) trigger(rule, ip string, count, threshold int) bool {
	above := count >= threshold
	if e.opts.AlertMode != types.AlertModeEdge {
		return above
	}

	key := rule + "|" + ip
	if !above {
		delete(e.firing, key)
		return false
	}
	if e.firing[key] {
		return false
	}
	e.firing[key] = true
	return true
}

// TrackedKeys returns the number of IPs holding window state, per rule
func (e *Engine) TrackedKeys() map[string]int {
	return map[string]int{
		types.RuleHighRequestRate: e.requests.Keys(),
		types.RuleBruteForceLogin: e.authFail.Keys(),
		types.Rule404Scanning:     e.notFound.Keys(),
	}
}

// Sweep drops state for IPs idle for longer than their window, relative to
// ref. Only long-running followers call it.
func (e *Engine) Sweep(ref time.Time) int {
	dropped := e.requests.Sweep(ref) + e.authFail.Sweep(ref) + e.notFound.Sweep(ref)
	sizes := map[string]func(string) int{
		types.RuleHighRequestRate: e.requests.Size,
		types.RuleBruteForceLogin: e.authFail.Size,
		types.Rule404Scanning:     e.notFound.Size,
	}
	for key := range e.firing {
		rule, ip, _ := strings.Cut(key, "|")
		if size, ok := sizes[rule]; !ok || size(ip) == 0 {
			delete(e.firing, key)
		}
	}
	return dropped
}
