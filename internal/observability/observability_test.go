package observability

import (
	"context"
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/jkaninda/samsara/internal/config"
)

func TestNewNilConfig(t *testing.T) {
	obs, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if obs != nil {
		t.Fatalf("expected nil Observability for nil config, got %+v", obs)
	}
	if obs.RegistryOrNil() != nil {
		t.Fatal("RegistryOrNil on nil Observability should be nil")
	}
}

func TestNewMetricsEnabled(t *testing.T) {
	cfg := &config.ObservabilityConfig{
		Metrics: &config.MetricsConfig{Enabled: true},
	}
	obs, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if obs.Metrics == nil {
		t.Fatal("expected metrics collector when metrics enabled")
	}
	if obs.RegistryOrNil() == nil {
		t.Fatal("expected a registry when metrics enabled")
	}
	if obs.Tracer != nil {
		t.Fatal("tracer should be nil when tracing disabled")
	}
	if obs.Health == nil {
		t.Fatal("health checker should always be created")
	}
}

func TestMetricsCollectorHTTP(t *testing.T) {
	m := NewMetricsCollector()

	m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/actions", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("POST", "/v1/actions").Observe(0.01)
	m.ActiveRequests.Inc()
	m.ConnectedPeers.Set(3)

	mfs, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	families := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		families[mf.GetName()] = mf
	}
	for _, name := range []string{
		"samsara_http_requests_total",
		"samsara_http_request_duration_seconds",
		"samsara_active_requests",
		"samsara_connected_stream_peers",
	} {
		if families[name] == nil {
			t.Errorf("metric %s not registered", name)
		}
	}

	requests := families["samsara_http_requests_total"]
	if requests == nil || len(requests.Metric) != 1 {
		t.Fatalf("requests family = %+v", requests)
	}
	if got := requests.Metric[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("requests counter = %v, want 1", got)
	}
	labels := labelMap(requests.Metric[0].GetLabel())
	if labels["method"] != "POST" || labels["path"] != "/v1/actions" || labels["status_code"] != "200" {
		t.Errorf("labels = %v", labels)
	}
}

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string)
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

func TestCheckReady(t *testing.T) {
	h := NewHealthChecker(nil)

	if got := h.CheckReady(context.Background()); got.Status != "ok" {
		t.Fatalf("no checks: status = %q, want ok", got.Status)
	}

	h.AddCheck("store", func(ctx context.Context) error { return nil })
	h.AddCheck("bridge", func(ctx context.Context) error { return errors.New("unreachable") })

	got := h.CheckReady(context.Background())
	if got.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", got.Status)
	}
	if got.Checks["store"].Status != "ok" {
		t.Errorf("store check = %+v, want ok", got.Checks["store"])
	}
	if got.Checks["bridge"].Status != "fail" || got.Checks["bridge"].Message == "" {
		t.Errorf("bridge check = %+v, want fail with message", got.Checks["bridge"])
	}
}

func TestCheckHealthAlwaysOK(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("store", func(ctx context.Context) error { return errors.New("down") })
	if got := h.CheckHealth(); got.Status != "ok" {
		t.Fatalf("liveness = %q, want ok", got.Status)
	}
}
