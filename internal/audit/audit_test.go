package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"log-triage/internal/types"
)

func TestLogger_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "alerts.jsonl")
	logger := NewLogger(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			alert := types.Alert{Rule: types.Rule404Scanning, IP: "1.2.3.4", Count: 50 + n, Sample: "<raw>", LineNumber: n + 1}
			if err := logger.LogAlert(alert); err != nil {
				t.Errorf("LogAlert failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open audit log: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("Line %d is not JSON: %v", lines+1, err)
		}
		if m["rule"] != types.Rule404Scanning || m["sample"] != "<raw>" {
			t.Errorf("Unexpected entry %v", m)
		}
		lines++
	}
	if lines != 20 {
		t.Errorf("Expected 20 lines, got %d", lines)
	}
}
