package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectors(t *testing.T) {
	c := New()
	c.Sweep("completed", 0.5)
	c.Sweep("skipped", 0)
	c.Scanned(3)
	c.ScannerAction("reassign")
	c.SanctionStep("timeout")
	c.Notification("staff_alert", errors.New("boom"))

	if got := testutil.ToFloat64(c.SweepsTotal.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed sweep, got %v", got)
	}
	if got := testutil.ToFloat64(c.TicketsScanned); got != 3 {
		t.Fatalf("expected 3 scanned, got %v", got)
	}
	if got := testutil.ToFloat64(c.Notifications.WithLabelValues("staff_alert", "error")); got != 1 {
		t.Fatalf("expected 1 failed notification, got %v", got)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "ticketbot_inactivity_actions_total") {
		t.Fatalf("expected metrics output to include scanner actions")
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var c *Collectors
	c.Sweep("completed", 1)
	c.ScannerAction("reassign")
	c.Notification("dm", nil)
}
