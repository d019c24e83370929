package ssache

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsKeyspaceSizeReflectsLiveKeys(t *testing.T) {
	ks := NewKeyspace()
	ks.Set("a", "1")
	ks.Set("b", "2")

	m := NewMetrics(ks)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "ssache_keyspace_size 2") {
		t.Errorf("expected ssache_keyspace_size to report 2, body:\n%s", body)
	}
}

func TestMetricsCommandsTotalIncrements(t *testing.T) {
	ks := NewKeyspace()
	m := NewMetrics(ks)
	m.commandsTotal.WithLabelValues("GET").Inc()
	m.commandsTotal.WithLabelValues("GET").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `ssache_commands_total{verb="GET"} 2`) {
		t.Errorf("expected ssache_commands_total{verb=\"GET\"} 2, body:\n%s", body)
	}
}
