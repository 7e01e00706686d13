package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	m := NewCollector(nil)
	m.Contribution("recorded")
	m.Contribution("recorded")
	m.Contribution("duplicate")
	m.Settlement("completed")
	m.TransactionAppended("investment")

	if got := testutil.ToFloat64(m.contributions.WithLabelValues("recorded")); got != 2 {
		t.Fatalf("expected 2 recorded contributions, got %v", got)
	}
	if got := testutil.ToFloat64(m.contributions.WithLabelValues("duplicate")); got != 1 {
		t.Fatalf("expected 1 duplicate, got %v", got)
	}
	if got := testutil.ToFloat64(m.settlements.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 settlement, got %v", got)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var m *Collector
	m.Contribution("recorded")
	m.Settlement("failed")
	m.HTTPRequest("GET", "/api/children", 200, time.Millisecond)
	m.SetPendingBacklog(3)
	m.ProjectionCache(true)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewCollector(nil)
	m.HTTPRequest("GET", "/api/dashboard-stats", 200, 12*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `babywallet_http_requests_total{code="200",method="GET",route="/api/dashboard-stats"} 1`) {
		t.Fatalf("metric not exposed:\n%s", body)
	}
}
