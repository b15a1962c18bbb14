package analyze

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"log-triage/internal/detect"
	"log-triage/internal/parser"
	"log-triage/internal/types"
)

func accessLine(ip string, at time.Time, status int, path, agent string) string {
	return fmt.Sprintf(`%s - - [%s] "GET %s HTTP/1.1" %d 512 "-" "%s"`,
		ip, at.Format("02/Jan/2006:15:04:05 -0700"), path, status, agent)
}

func newAnalyzer(maxLines int) *Analyzer {
	return New(parser.NewAccessLogParser(), detect.NewEngine(detect.DefaultOptions()), zerolog.Nop(), maxLines)
}

func TestAnalyzer_Run_LineNumbersAndSkips(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	input := strings.Join([]string{
		accessLine("1.1.1.1", base, 200, "/", "Mozilla/5.0"),
		"garbage line",
		accessLine("2.2.2.2", base, 200, "/search?q=<script>alert(1)</script>", "Mozilla/5.0"),
		accessLine("3.3.3.3", base, 200, "/", "sqlmap/1.5"),
	}, "\n")

	var alerts []types.Alert
	stats, err := newAnalyzer(0).Run(context.Background(), strings.NewReader(input), func(a types.Alert) error {
		alerts = append(alerts, a)
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.LinesRead != 4 || stats.Parsed != 3 || stats.Skipped != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.RunID == "" {
		t.Error("Expected a run id")
	}
	if len(alerts) != 2 {
		t.Fatalf("Expected 2 alerts, got %+v", alerts)
	}
	if alerts[0].Rule != types.RuleXSSPattern || alerts[0].LineNumber != 3 {
		t.Errorf("Unexpected first alert %+v", alerts[0])
	}
	if alerts[1].Rule != types.RuleSuspiciousUserAgent || alerts[1].LineNumber != 4 {
		t.Errorf("Unexpected second alert %+v", alerts[1])
	}
}

func TestAnalyzer_Run_MaxLines(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, accessLine("1.1.1.1", base, 200, "/", "curl/8.0"))
	}

	var n int
	stats, err := newAnalyzer(3).Run(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"), func(types.Alert) error {
		n++
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.LinesRead != 3 || n != 3 {
		t.Errorf("Expected 3 lines and 3 alerts, got %d lines and %d alerts", stats.LinesRead, n)
	}
}

func TestAnalyzer_Run_EmitError(t *testing.T) {
	line := accessLine("1.1.1.1", time.Now(), 200, "/", "nikto")
	boom := errors.New("disk full")

	_, err := newAnalyzer(0).Run(context.Background(), strings.NewReader(line), func(types.Alert) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped emit error, got %v", err)
	}
}

func TestAnalyzer_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAnalyzer(0).Run(ctx, strings.NewReader("x\n"), func(types.Alert) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestAnalyzer_AnalyzeFile_BruteForce(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString(accessLine("10.9.8.7", base.Add(time.Duration(i)*time.Second), 401, "/wp-login.php", "Mozilla/5.0"))
		b.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}

	alerts, stats, err := newAnalyzer(0).AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("AnalyzeFile failed: %v", err)
	}
	if stats.Source != path {
		t.Errorf("Expected source %s, got %s", path, stats.Source)
	}
	if len(alerts) != 1 || alerts[0].Rule != types.RuleBruteForceLogin {
		t.Fatalf("Expected one brute force alert, got %+v", alerts)
	}
	if alerts[0].LineNumber != 10 || len(alerts[0].Samples) != 5 {
		t.Errorf("Unexpected alert %+v", alerts[0])
	}
}

func TestAnalyzer_AnalyzeFile_Missing(t *testing.T) {
	if _, _, err := newAnalyzer(0).AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "none.log")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestAnalyzer_Sweep_UsesEventTime(t *testing.T) {
	// a burst logged two hours behind the wall clock
	base := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	a := newAnalyzer(0)

	if dropped := a.Sweep(); dropped != 0 {
		t.Errorf("Expected no-op sweep before any event, dropped %d", dropped)
	}

	var alerts []types.Alert
	for i := 0; i < 10; i++ {
		got, ok := a.Feed(accessLine("10.9.8.7", base.Add(time.Duration(i)*time.Second), 401, "/login", "Mozilla/5.0"), i+1)
		if !ok {
			t.Fatalf("line %d not parsed", i+1)
		}
		alerts = append(alerts, got...)
		if i == 4 {
			a.Sweep()
		}
	}

	if len(alerts) != 1 || alerts[0].Rule != types.RuleBruteForceLogin {
		t.Fatalf("Expected brute force alert to survive a mid-burst sweep, got %+v", alerts)
	}
	if !a.Latest().Equal(base.Add(9 * time.Second)) {
		t.Errorf("Expected latest %v, got %v", base.Add(9*time.Second), a.Latest())
	}
}

func TestAnalyzer_Sweep_DropsIdleIPs(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	a := newAnalyzer(0)

	a.Feed(accessLine("1.1.1.1", base, 404, "/old", "Mozilla/5.0"), 1)
	a.Feed(accessLine("2.2.2.2", base.Add(10*time.Minute), 200, "/", "Mozilla/5.0"), 2)

	// 1.1.1.1 holds request and 404 state, both idle for 10 minutes
	if dropped := a.Sweep(); dropped != 2 {
		t.Errorf("Expected 2 idle keys dropped, got %d", dropped)
	}
}
