package stream

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mukulmishra18/wstream/pkg/metrics"
)

func TestControllerMetricsInstrumentable(t *testing.T) {
	sink := &minimalSink{}
	s, err := New(testCtx(t), sink, Strategy{HighWaterMark: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctrl := s.Controller()

	if ctrl.MetricsEnabled() {
		t.Fatal("expected metrics disabled by default")
	}

	if err := ctrl.EnableMetrics(metrics.Config{Registry: prometheus.NewRegistry()}); err != nil {
		t.Fatalf("EnableMetrics: %v", err)
	}
	if ctrl.MetricsEnabled() {
		t.Fatal("EnableMetrics with Enabled: false must not turn metrics on")
	}

	if err := ctrl.EnableMetrics(metrics.Config{Enabled: true, Registry: prometheus.NewRegistry()}); err != nil {
		t.Fatalf("EnableMetrics: %v", err)
	}
	if !ctrl.MetricsEnabled() {
		t.Fatal("expected metrics enabled after EnableMetrics with Enabled: true")
	}

	ctrl.DisableMetrics()
	if ctrl.MetricsEnabled() {
		t.Fatal("expected metrics disabled after DisableMetrics")
	}
}
