package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"log-triage/internal/analyze"
	"log-triage/internal/audit"
	"log-triage/internal/config"
	"log-triage/internal/dashboard"
	"log-triage/internal/detect"
	"log-triage/internal/explain"
	"log-triage/internal/ingest"
	"log-triage/internal/logging"
	"log-triage/internal/metrics"
	"log-triage/internal/notify"
	"log-triage/internal/output"
	"log-triage/internal/parser"
	"log-triage/internal/store"
	"log-triage/internal/types"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	cmd := os.Args[1]
	switch cmd {
	case "analyze":
		err = analyzeCommand(os.Args[2:])
	case "watch":
		err = watchCommand(os.Args[2:])
	case "serve":
		err = serveCommand(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "log-triage %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: log-triage <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  analyze <logfile>  Scan an Apache/Nginx access log and write alerts")
	fmt.Println("  watch              Follow the configured access log and report alerts live")
	fmt.Println("  serve              Serve the dashboard over a stored alert database")
}

// loadConfig reads path, or returns defaults when path is empty
func loadConfig(path string) (*types.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func newLogger(cfg *types.Config) zerolog.Logger {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}

func newDetector(cfg *types.Config) detect.Detector {
	opts := detect.OptionsFromConfig(cfg)
	if cfg.Detection.Shards > 1 {
		return detect.NewSharded(cfg.Detection.Shards, opts)
	}
	return detect.NewEngine(opts)
}

func analyzeCommand(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (defaults when empty)")
	outJSON := fs.String("out-json", "", "Write alerts to JSON (default outputs/alerts.json)")
	outCSV := fs.String("out-csv", "", "Write alerts to CSV (default outputs/alerts.csv)")
	maxLines := fs.Int("max-lines", 0, "Max lines to process (0 = all)")
	dbPath := fs.String("db", "", "Also store alerts in this SQLite database")
	alertMode := fs.String("alert-mode", "", "Threshold re-fire policy: every or edge")

	fs.Parse(args)
	var logfile string
	if fs.NArg() > 0 {
		logfile = fs.Arg(0)
		fs.Parse(fs.Args()[1:])
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if logfile == "" {
		logfile = cfg.Input.WebLogPath
	}
	if *outJSON != "" {
		cfg.Output.JSONPath = *outJSON
	}
	if *outCSV != "" {
		cfg.Output.CSVPath = *outCSV
	}
	if *maxLines > 0 {
		cfg.Input.MaxLines = *maxLines
	}
	if *dbPath != "" {
		cfg.Output.DBPath = *dbPath
	}
	if *alertMode != "" {
		if *alertMode != types.AlertModeEvery && *alertMode != types.AlertModeEdge {
			return fmt.Errorf("unknown alert mode %q", *alertMode)
		}
		cfg.Detection.AlertMode = *alertMode
	}

	logger := newLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer := analyze.New(parser.NewAccessLogParser(), newDetector(cfg), logger, cfg.Input.MaxLines)
	alerts, stats, err := analyzer.AnalyzeFile(ctx, logfile)
	if err != nil {
		return err
	}

	fmt.Printf("Processed %d lines (%d skipped). Alerts found: %d\n", stats.LinesRead, stats.Skipped, len(alerts))
	for _, rc := range output.Summarize(alerts) {
		fmt.Printf("  %-22s %d\n", rc.Rule, rc.Count)
	}

	if err := output.WriteJSON(cfg.Output.JSONPath, alerts); err != nil {
		return err
	}
	written, err := output.WriteCSV(cfg.Output.CSVPath, alerts)
	if err != nil {
		return err
	}
	if written {
		fmt.Printf("Wrote JSON -> %s and CSV -> %s\n", cfg.Output.JSONPath, cfg.Output.CSVPath)
	} else {
		fmt.Printf("Wrote JSON -> %s (no alerts, CSV skipped)\n", cfg.Output.JSONPath)
	}

	if cfg.Output.DBPath != "" {
		if err := persistRun(cfg.Output.DBPath, stats, alerts); err != nil {
			return err
		}
		logger.Info().Str("db", cfg.Output.DBPath).Str("run_id", stats.RunID).Msg("alerts stored")
	}

	if cfg.Notification.Webhook != "" {
		notifier := notify.NewNotifier(cfg.Notification.Webhook, cfg.Notification.Allowlist, cfg.Notification.PerMinute, logger)
		for _, a := range alerts {
			notifier.Notify(a)
		}
		notifier.Wait()
	}
	return nil
}

func persistRun(dbPath string, stats analyze.Stats, alerts []types.Alert) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveRun(runRecord(stats)); err != nil {
		return err
	}
	return st.SaveAlerts(stats.RunID, alerts)
}

func runRecord(stats analyze.Stats) store.Run {
	return store.Run{
		ID:        stats.RunID,
		Source:    stats.Source,
		Started:   stats.Started,
		Finished:  stats.Finished,
		LinesRead: stats.LinesRead,
		Parsed:    stats.Parsed,
		Skipped:   stats.Skipped,
		Alerts:    stats.Alerts,
	}
}

// openRunStore opens the alert store and records stats as an open run.
// The row is replaced with final counts at shutdown.
func openRunStore(dbPath string, stats analyze.Stats) (*store.Store, error) {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.SaveRun(runRecord(stats)); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func watchCommand(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "/etc/log-triage/config.yml", "Path to config file")
	fromStart := fs.Bool("from-start", false, "Read existing file content before following")
	sweepEvery := fs.Duration("sweep", time.Minute, "How often to forget idle per-IP state")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start Prometheus metrics server
	go func() {
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
		if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	auditLogger := audit.NewLogger(cfg.Output.AuditLogPath)
	notifier := notify.NewNotifier(cfg.Notification.Webhook, cfg.Notification.Allowlist, cfg.Notification.PerMinute, logger)
	explainer := explain.NewTemplateExplainer()

	runID := uuid.NewString()
	stats := analyze.Stats{RunID: runID, Source: cfg.Input.WebLogPath, Started: time.Now()}

	var st *store.Store
	if cfg.Output.DBPath != "" {
		st, err = openRunStore(cfg.Output.DBPath, stats)
		if err != nil {
			return err
		}
		defer st.Close()

		if cfg.Dashboard.Enabled {
			srv, err := dashboard.NewServer(st, cfg.Dashboard.Port, logger)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Start(ctx); err != nil {
					logger.Error().Err(err).Msg("dashboard failed")
				}
			}()
		}
	}

	tailer := ingest.NewFileTailer(cfg.Input.WebLogPath, true, *fromStart, logger)
	lines, err := tailer.Start()
	if err != nil {
		return err
	}
	defer tailer.Stop()

	analyzer := analyze.New(parser.NewAccessLogParser(), newDetector(cfg), logger, 0)
	ticker := time.NewTicker(*sweepEvery)
	defer ticker.Stop()

	logger.Info().Str("run_id", runID).Str("path", cfg.Input.WebLogPath).Msg("watching access log")
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			analyzer.Sweep()
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			stats.LinesRead++
			alerts, parsed := analyzer.Feed(line.Content, line.Number)
			if parsed {
				stats.Parsed++
			} else {
				stats.Skipped++
			}
			for _, alert := range alerts {
				stats.Alerts++
				fmt.Printf("[ALERT] %s | %s\n", alert.Rule, explainer.Explain(alert))
				if err := auditLogger.LogAlert(alert); err != nil {
					logger.Error().Err(err).Msg("failed to write to audit log")
				}
				if st != nil {
					if err := st.SaveAlerts(runID, []types.Alert{alert}); err != nil {
						logger.Error().Err(err).Msg("failed to store alert")
					}
				}
				notifier.Notify(alert)
			}
		}
	}

	logger.Info().Msg("shutting down")
	notifier.Wait()
	if st != nil {
		stats.Finished = time.Now()
		if err := st.SaveRun(runRecord(stats)); err != nil {
			return err
		}
	}
	return nil
}

func serveCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (defaults when empty)")
	dbPath := fs.String("db", "", "SQLite alert database")
	port := fs.String("port", "", "Listen address, e.g. :8080")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Output.DBPath = *dbPath
	}
	if *port != "" {
		cfg.Dashboard.Port = *port
	}
	if cfg.Output.DBPath == "" {
		return fmt.Errorf("no database: set output.db_path or pass -db")
	}

	logger := newLogger(cfg)
	st, err := store.NewStore(cfg.Output.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := dashboard.NewServer(st, cfg.Dashboard.Port, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}
