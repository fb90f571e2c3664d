package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(sessionsActive.WithLabelValues("viewer"))

	SessionJoined("viewer")
	SessionJoined("viewer")
	SessionLeft("viewer")

	after := testutil.ToFloat64(sessionsActive.WithLabelValues("viewer"))
	if after-before != 1 {
		t.Errorf("viewer gauge delta: got %v, want 1", after-before)
	}
}

func TestObserveUpdate(t *testing.T) {
	persisted := testutil.ToFloat64(updatesTotal.WithLabelValues(ResultPersisted))
	failed := testutil.ToFloat64(updatesTotal.WithLabelValues(ResultFailed))

	ObserveUpdate(ResultPersisted, 5*time.Millisecond)
	ObserveUpdate(ResultFailed, time.Millisecond)
	ObserveUpdate(ResultMalformed, 0)

	if got := testutil.ToFloat64(updatesTotal.WithLabelValues(ResultPersisted)) - persisted; got != 1 {
		t.Errorf("persisted delta: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(updatesTotal.WithLabelValues(ResultFailed)) - failed; got != 1 {
		t.Errorf("failed delta: got %v, want 1", got)
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/record/{title}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/record/{title}", "404"))

	req := httptest.NewRequest(http.MethodGet, "/record/some-title", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/record/{title}", "404"))
	if after-before != 1 {
		t.Errorf("request counter delta: got %v, want 1", after-before)
	}
}

func TestHandler(t *testing.T) {
	ObserveFanout(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "codeshare_fanout_recipients") {
		t.Error("metrics output is missing codeshare_fanout_recipients")
	}
}
