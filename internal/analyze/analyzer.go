package analyze

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"log-triage/internal/detect"
	"log-triage/internal/metrics"
	"log-triage/internal/parser"
	"log-triage/internal/types"
)

// Stats describes one analysis run
type Stats struct {
	RunID     string
	Source    string
	LinesRead int
	Parsed    int
	Skipped   int
	Alerts    int
	Started   time.Time
	Finished  time.Time
}

// Analyzer drives lines through the parser and detector
type Analyzer struct {
	parser   parser.Parser
	detector detect.Detector
	logger   zerolog.Logger
	maxLines int

	// newest event time fed so far; sweeps are measured against it
	latest time.Time
}

// New creates an analyzer. maxLines <= 0 means no limit.
func New(p parser.Parser, d detect.Detector, logger zerolog.Logger, maxLines int) *Analyzer {
	return &Analyzer{
		parser:   p,
		detector: d,
		logger:   logger.With().Str("component", "analyze").Logger(),
		maxLines: maxLines,
	}
}

// Feed parses one line and returns its alerts stamped with lineNo.
// ok is false when the line was skipped.
func (a *Analyzer) Feed(line string, lineNo int) (alerts []types.Alert, ok bool) {
	metrics.LinesRead.Inc()

	evt := a.parser.Parse(strings.ToValidUTF8(line, "\uFFFD"))
	if evt == nil {
		metrics.LinesSkipped.Inc()
		a.logger.Debug().Int("line", lineNo).Msg("unrecognised line skipped")
		return nil, false
	}
	metrics.EventsProcessed.Inc()
	if evt.Time != nil && evt.Time.After(a.latest) {
		a.latest = *evt.Time
	}

	alerts = a.detector.Feed(evt)
	for i := range alerts {
		alerts[i].LineNumber = lineNo
		metrics.AlertsGenerated.WithLabelValues(alerts[i].Rule).Inc()
	}
	return alerts, true
}

// Run reads r to the end (or maxLines, or ctx cancellation) and passes
// every alert to emit in input order.
func (a *Analyzer) Run(ctx context.Context, r io.Reader, emit func(types.Alert) error) (Stats, error) {
	stats := Stats{RunID: uuid.NewString(), Started: time.Now()}

	reader := bufio.NewReader(r)
	for {
		if a.maxLines > 0 && stats.LinesRead >= a.maxLines {
			break
		}
		if err := ctx.Err(); err != nil {
			stats.Finished = time.Now()
			return stats, err
		}

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			stats.Finished = time.Now()
			return stats, fmt.Errorf("failed to read input: %w", err)
		}
		if line == "" && errors.Is(err, io.EOF) {
			break
		}

		stats.LinesRead++
		alerts, ok := a.Feed(line, stats.LinesRead)
		if ok {
			stats.Parsed++
		} else {
			stats.Skipped++
		}
		for _, alert := range alerts {
			stats.Alerts++
			if emitErr := emit(alert); emitErr != nil {
				stats.Finished = time.Now()
				return stats, fmt.Errorf("failed to emit alert: %w", emitErr)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	a.publishKeys()
	stats.Finished = time.Now()
	a.logger.Info().
		Str("run_id", stats.RunID).
		Int("lines", stats.LinesRead).
		Int("skipped", stats.Skipped).
		Int("alerts", stats.Alerts).
		Msg("analysis finished")
	return stats, nil
}

// AnalyzeFile runs over the file at path and collects every alert
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) ([]types.Alert, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{Source: path}, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var alerts []types.Alert
	stats, err := a.Run(ctx, f, func(alert types.Alert) error {
		alerts = append(alerts, alert)
		return nil
	})
	stats.Source = path
	return alerts, stats, err
}

// Latest returns the newest event time fed so far
func (a *Analyzer) Latest() time.Time {
	return a.latest
}

// Sweep forgets window state idle relative to the newest event seen, not
// the wall clock, and refreshes the tracked-keys gauge. It does nothing
// before the first timed event.
func (a *Analyzer) Sweep() int {
	if a.latest.IsZero() {
		return 0
	}
	dropped := a.detector.Sweep(a.latest)
	a.publishKeys()
	if dropped > 0 {
		a.logger.Debug().Int("dropped", dropped).Time("ref", a.latest).Msg("swept idle window state")
	}
	return dropped
}

func (a *Analyzer) publishKeys() {
	for rule, n := range a.detector.TrackedKeys() {
		metrics.TrackedKeys.WithLabelValues(rule).Set(float64(n))
	}
}
