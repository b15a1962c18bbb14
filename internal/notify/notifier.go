package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"log-triage/internal/explain"
	"log-triage/internal/metrics"
	"log-triage/internal/types"
)

// Notifier posts alert summaries to a chat webhook (Discord/Slack style
// {"content": ...} payload). Allowlisted IPs are never reported and
// deliveries are throttled so re-firing threshold rules cannot flood
// the channel.
type Notifier struct {
	webhook   string
	allowlist map[string]bool
	limiter   *rate.Limiter
	client    *http.Client
	explainer explain.Explainer
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// NewNotifier creates a notifier allowing perMinute deliveries per minute
func NewNotifier(webhook string, allowlist []string, perMinute int, logger zerolog.Logger) *Notifier {
	if perMinute <= 0 {
		perMinute = 30
	}
	allowed := make(map[string]bool, len(allowlist))
	for _, ip := range allowlist {
		allowed[ip] = true
	}
	return &Notifier{
		webhook:   webhook,
		allowlist: allowed,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		client:    &http.Client{Timeout: 5 * time.Second},
		explainer: explain.NewTemplateExplainer(),
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Notify delivers alert in the background. It returns false when the
// alert was filtered or throttled.
func (n *Notifier) Notify(alert types.Alert) bool {
	if n.webhook == "" {
		return false
	}
	if n.allowlist[alert.IP] {
		n.logger.Debug().Str("ip", alert.IP).Msg("alert for allowlisted IP not notified")
		return false
	}
	if !n.limiter.Allow() {
		metrics.NotificationsDropped.Inc()
		return false
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.Send(ctx, alert); err != nil {
			metrics.NotificationsDropped.Inc()
			n.logger.Warn().Err(err).Str("rule", alert.Rule).Msg("failed to send webhook notification")
		}
	}()
	return true
}

// Send posts alert synchronously
func (n *Notifier) Send(ctx context.Context, alert types.Alert) error {
	type message struct {
		Content string `json:"content"`
	}

	msg := message{
		Content: fmt.Sprintf("**[%s] log-triage alert**\n**Rule**: %s\n**IP**: %s\n%s",
			time.Now().Format("15:04:05"), alert.Rule, alert.IP, n.explainer.Explain(alert)),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status: %s", resp.Status)
	}
	return nil
}

// Wait blocks until in-flight deliveries finish
func (n *Notifier) Wait() {
	n.wg.Wait()
}
