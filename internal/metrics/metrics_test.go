package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.SessionOpened()
	r.SessionOpened()
	r.SessionClosed()
	r.TransportCommand("play")
	r.TransportCommand("play")
	r.TransportCommand("seek")
	r.StallPause()
	r.FallbackReady("codecA")
	r.AutoAdvanceFired()

	if got := testutil.ToFloat64(r.sessionsActive); got != 1 {
		t.Fatalf("sessions active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.transportCommands.WithLabelValues("play")); got != 2 {
		t.Fatalf("play commands = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.fallbackReady.WithLabelValues("codecA")); got != 1 {
		t.Fatalf("fallback ready = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.autoAdvanceFired); got != 1 {
		t.Fatalf("auto advance = %v, want 1", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.SessionOpened()
	r.TransportCommand("pause")
	r.BackendRequest("poll_decode", "ok")
	if r.Registry() != nil {
		t.Fatal("nil recorder should have no registry")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.StallPause()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "demoflow_stall_pauses_total 1") {
		t.Fatalf("missing stall counter in exposition:\n%s", body)
	}
}
