package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LinesRead counts raw lines taken from the input
	LinesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logtriage_lines_read_total",
		Help: "Raw log lines read from the input.",
	})

	// LinesSkipped counts lines no grammar recognised
	LinesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logtriage_lines_skipped_total",
		Help: "Lines that could not be parsed and were skipped.",
	})

	// EventsProcessed counts events fed to the detection engine
	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logtriage_events_processed_total",
		Help: "Parsed events fed to the detection engine.",
	})

	// AlertsGenerated counts alerts by rule
	AlertsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logtriage_alerts_total",
		Help: "Alerts raised, by rule.",
	}, []string{"rule"})

	// TrackedKeys reports how many IPs hold window state, by rule
	TrackedKeys = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logtriage_tracked_keys",
		Help: "Source IPs currently holding sliding-window state, by rule.",
	}, []string{"rule"})

	// NotificationsDropped counts webhook notifications lost to throttling or errors
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logtriage_notifications_dropped_total",
		Help: "Webhook notifications skipped by the rate limiter or failed.",
	})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer serves /metrics on addr until the listener fails
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
