package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"log-triage/internal/types"
)

// Run is the bookkeeping row for one analysis
type Run struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	LinesRead int       `json:"lines_read"`
	Parsed    int       `json:"parsed"`
	Skipped   int       `json:"skipped"`
	Alerts    int       `json:"alerts"`
}

// AlertRecord is a stored alert
type AlertRecord struct {
	ID         int64                  `json:"id"`
	RunID      string                 `json:"run_id"`
	Rule       string                 `json:"rule"`
	IP         string                 `json:"ip"`
	LineNumber int                    `json:"log_line_number"`
	Fields     map[string]interface{} `json:"fields"`
}

// Stats summarises stored alerts
type Stats struct {
	TotalAlerts  int            `json:"total_alerts"`
	TotalRuns    int            `json:"total_runs"`
	ByRule       map[string]int `json:"by_rule"`
	TopOffenders []TopOffender  `json:"top_offenders"`
}

// TopOffender is an IP with its alert count
type TopOffender struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// Store keeps alerts from finished runs in SQLite. Detection windows are
// never persisted.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert store: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT,
		started DATETIME,
		finished DATETIME,
		lines_read INTEGER,
		parsed INTEGER,
		skipped INTEGER,
		alerts INTEGER
	);
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		rule TEXT NOT NULL,
		ip TEXT NOT NULL,
		line_number INTEGER,
		fields TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_rule ON alerts(rule);
	CREATE INDEX IF NOT EXISTS idx_alerts_ip ON alerts(ip);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveRun inserts or replaces a run row
func (s *Store) SaveRun(r Run) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO runs
		(id, source, started, finished, lines_read, parsed, skipped, alerts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Source, r.Started.UTC(), r.Finished.UTC(), r.LinesRead, r.Parsed, r.Skipped, r.Alerts)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.ID, err)
	}
	return nil
}

// SaveAlerts stores alerts for runID in one transaction
func (s *Store) SaveAlerts(runID string, alerts []types.Alert) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO alerts (run_id, rule, ip, line_number, fields)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range alerts {
		fields, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode alert: %w", err)
		}
		if _, err := stmt.Exec(runID, a.Rule, a.IP, a.LineNumber, string(fields)); err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	return tx.Commit()
}

// ListAlerts returns the newest alerts, optionally filtered by rule
func (s *Store) ListAlerts(limit int, rule string) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, run_id, rule, ip, line_number, fields FROM alerts`
	args := []interface{}{}
	if rule != "" {
		query += ` WHERE rule = ?`
		args = append(args, rule)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	records := []AlertRecord{}
	for rows.Next() {
		var r AlertRecord
		var fields string
		if err := rows.Scan(&r.ID, &r.RunID, &r.Rule, &r.IP, &r.LineNumber, &fields); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode alert %d: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListRuns returns the most recent runs
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, source, started, finished, lines_read, parsed, skipped, alerts
		FROM runs ORDER BY started DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Source, &r.Started, &r.Finished, &r.LinesRead, &r.Parsed, &r.Skipped, &r.Alerts); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetStats aggregates stored alerts
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{ByRule: make(map[string]int), TopOffenders: []TopOffender{}}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&stats.TotalAlerts); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&stats.TotalRuns); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	rows, err := s.db.Query(`SELECT rule, COUNT(*) FROM alerts GROUP BY rule`)
	if err != nil {
		return nil, fmt.Errorf("failed to group alerts: %w", err)
	}
	for rows.Next() {
		var rule string
		var n int
		if err := rows.Scan(&rule, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan rule count: %w", err)
		}
		stats.ByRule[rule] = n
	}
	rows.Close()

	rows, err = s.db.Query(`
		SELECT ip, COUNT(*) AS n FROM alerts
		GROUP BY ip ORDER BY n DESC, ip ASC LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to rank offenders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o TopOffender
		if err := rows.Scan(&o.IP, &o.Count); err != nil {
			return nil, fmt.Errorf("failed to scan offender: %w", err)
		}
		stats.TopOffenders = append(stats.TopOffenders, o)
	}

	return stats, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
