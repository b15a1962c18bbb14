package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_ServesMetrics(t *testing.T) {
	LinesRead.Inc()
	AlertsGenerated.WithLabelValues("sqli_pattern").Inc()
	TrackedKeys.WithLabelValues("404_scanning").Set(3)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	for _, want := range []string{
		"logtriage_lines_read_total",
		`logtriage_alerts_total{rule="sqli_pattern"}`,
		`logtriage_tracked_keys{rule="404_scanning"} 3`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in exposition", want)
		}
	}
}
