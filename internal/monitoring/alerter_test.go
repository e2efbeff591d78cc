package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/resilience"
)

func fixedAlerter(cfg Config) *Alerter {
	a := NewAlerter(cfg)
	a.now = func() time.Time { return time.Date(2025, 3, 3, 6, 30, 0, 0, time.UTC) }
	return a
}

func TestAlerter_Evaluate_Success(t *testing.T) {
	a := fixedAlerter(Config{WarningThreshold: 3})

	alerts := a.Evaluate(Outcome{Holdings: 12, Warnings: 1})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_KindedFailure(t *testing.T) {
	a := fixedAlerter(Config{})

	err := model.NewError(model.KindAuthenticationRejected, "session: login", eris.New("still on login page"))
	alerts := a.Evaluate(Outcome{Err: err})

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertType("authentication_rejected"), alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "still on login page")
	assert.Equal(t, false, alerts[0].Details["retryable"])
	assert.Equal(t, time.Date(2025, 3, 3, 6, 30, 0, 0, time.UTC), alerts[0].Timestamp)
}

func TestAlerter_Evaluate_UnreachableIsLow(t *testing.T) {
	a := fixedAlerter(Config{})

	err := eris.Wrap(model.NewError(model.KindSiteUnreachable, "browser: navigate", eris.New("dns")), "scheduler")
	alerts := a.Evaluate(Outcome{Err: err})

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertType(model.KindSiteUnreachable), alerts[0].Type)
	assert.Equal(t, "low", alerts[0].Severity)
	assert.Equal(t, true, alerts[0].Details["retryable"])
}

func TestAlerter_Evaluate_PlainFailure(t *testing.T) {
	a := fixedAlerter(Config{})

	alerts := a.Evaluate(Outcome{Err: eris.New("scheduler: save snapshot: disk full")})

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSnapshotFailure, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Nil(t, alerts[0].Details)
}

func TestAlerter_Evaluate_CircuitOpen(t *testing.T) {
	a := fixedAlerter(Config{})

	alerts := a.Evaluate(Outcome{Err: resilience.ErrCircuitOpen})

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCircuitOpen, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
}

func TestAlerter_Evaluate_WarningThreshold(t *testing.T) {
	a := fixedAlerter(Config{WarningThreshold: 3})

	alerts := a.Evaluate(Outcome{Holdings: 4, Warnings: 3})

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertExtractionWarnings, alerts[0].Type)
	assert.Equal(t, 3, alerts[0].Details["warnings"])
	assert.Equal(t, 4, alerts[0].Details["holdings"])
}

func TestAlerter_Evaluate_ZeroWarningThreshold(t *testing.T) {
	a := fixedAlerter(Config{WarningThreshold: 0}) // disabled

	alerts := a.Evaluate(Outcome{Warnings: 50})
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(Config{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertCircuitOpen, Severity: "high", Message: "test alert 1"},
		{Type: AlertExtractionWarnings, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(Config{WebhookURL: ""})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertSnapshotFailure, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(Config{WebhookURL: "http://example.com"})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(Config{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertSnapshotFailure, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_Notify(t *testing.T) {
	var got Alert
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a := fixedAlerter(Config{WebhookURL: ts.URL})
	a.Notify(context.Background(), Outcome{
		Err: model.NewError(model.KindDeviceAuthTimeout, "session: device auth", eris.New("timed out")),
	})

	assert.Equal(t, AlertType(model.KindDeviceAuthTimeout), got.Type)
	assert.Equal(t, "medium", got.Severity)
}
