// Package monitoring turns failed or degraded snapshots into webhook alerts.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/resilience"
)

// AlertType identifies the kind of alert. Failure alerts reuse the error
// kind so receivers can route on it.
type AlertType string

const (
	AlertCircuitOpen        AlertType = "login_circuit_open"
	AlertExtractionWarnings AlertType = "extraction_warnings"
	AlertSnapshotFailure    AlertType = "snapshot_failure"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Outcome is the result of one scheduled snapshot.
type Outcome struct {
	Err      error
	Warnings int
	Holdings int
}

// Config holds the alert destination and thresholds.
type Config struct {
	WebhookURL string
	// WarningThreshold is the number of skipped rows in one snapshot that
	// suggests the page layout changed. Zero disables the check.
	WarningThreshold int
}

// severities ranks failure kinds. Kinds that need an operator are high.
var severities = map[model.ErrorKind]string{
	model.KindInvalidCredentials:     "high",
	model.KindAuthenticationRejected: "high",
	model.KindLoginFormMissing:       "high",
	model.KindDeviceAuthTimeout:      "medium",
	model.KindSiteUnreachable:        "low",
	model.KindUnknownAssetType:       "high",
}

// Alerter evaluates snapshot outcomes and sends alerts via webhook.
type Alerter struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given config.
func NewAlerter(cfg Config) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Evaluate returns the alerts an outcome warrants.
func (a *Alerter) Evaluate(o Outcome) []Alert {
	var alerts []Alert
	now := a.now().UTC()

	switch {
	case errors.Is(o.Err, resilience.ErrCircuitOpen):
		alerts = append(alerts, Alert{
			Type:      AlertCircuitOpen,
			Severity:  "high",
			Message:   "Login circuit is open; scheduled snapshots are paused to avoid an account lock",
			Timestamp: now,
		})
	case o.Err != nil:
		alert := Alert{
			Type:      AlertSnapshotFailure,
			Severity:  "medium",
			Message:   fmt.Sprintf("Snapshot failed: %v", o.Err),
			Timestamp: now,
		}
		if kind, ok := model.KindOf(o.Err); ok {
			alert.Type = AlertType(kind)
			alert.Severity = severities[kind]
			alert.Details = map[string]any{"retryable": kind.Retryable()}
		}
		alerts = append(alerts, alert)
	}

	if a.cfg.WarningThreshold > 0 && o.Warnings >= a.cfg.WarningThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertExtractionWarnings,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d rows skipped in one snapshot (threshold %d); the holdings page layout may have changed",
				o.Warnings, a.cfg.WarningThreshold,
			),
			Details: map[string]any{
				"warnings":  o.Warnings,
				"holdings":  o.Holdings,
				"threshold": a.cfg.WarningThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Notify evaluates o and delivers any resulting alerts.
func (a *Alerter) Notify(ctx context.Context, o Outcome) {
	a.SendAlerts(ctx, a.Evaluate(o))
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
