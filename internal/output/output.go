package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"log-triage/internal/types"
)

// WriteJSON writes alerts as an indented JSON array, creating parent dirs
func WriteJSON(path string, alerts []types.Alert) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create json output: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(alerts); err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}
	return f.Close()
}

// WriteCSV writes alerts with the sorted union of their field names as
// header. List values are joined with ", ". It reports false without
// touching the filesystem when there is nothing to write.
func WriteCSV(path string, alerts []types.Alert) (bool, error) {
	if len(alerts) == 0 {
		return false, nil
	}
	if err := ensureDir(path); err != nil {
		return false, err
	}

	keySet := make(map[string]bool)
	rows := make([]map[string]interface{}, 0, len(alerts))
	for _, a := range alerts {
		m := a.Map()
		for k := range m {
			keySet[k] = true
		}
		rows = append(rows, m)
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("failed to create csv output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(keys); err != nil {
		return false, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, m := range rows {
		record := make([]string, len(keys))
		for i, k := range keys {
			record[i] = flatten(m[k])
		}
		if err := w.Write(record); err != nil {
			return false, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, fmt.Errorf("failed to flush csv: %w", err)
	}
	return true, f.Close()
}

func flatten(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(x, ", ")
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}

// RuleCount is one line of a summary
type RuleCount struct {
	Rule  string `json:"rule"`
	Count int    `json:"count"`
}

// Summarize counts alerts per rule, ordered by first appearance
func Summarize(alerts []types.Alert) []RuleCount {
	index := make(map[string]int)
	var out []RuleCount
	for _, a := range alerts {
		i, ok := index[a.Rule]
		if !ok {
			i = len(out)
			index[a.Rule] = i
			out = append(out, RuleCount{Rule: a.Rule})
		}
		out[i].Count++
	}
	return out
}
