package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTaskCountsByStatus(t *testing.T) {
	Init()

	before := testutil.ToFloat64(planTasksTotal.WithLabelValues("completed"))
	ObserveTask("completed")
	ObserveTask("completed")
	ObserveTask("failed")

	if got := testutil.ToFloat64(planTasksTotal.WithLabelValues("completed")); got != before+2 {
		t.Fatalf("completed counter = %v, want %v", got, before+2)
	}
}

func TestObserveRateLimitRejection(t *testing.T) {
	Init()

	before := testutil.ToFloat64(rateLimitRejectionsTotal)
	ObserveRateLimitRejection()
	if got := testutil.ToFloat64(rateLimitRejectionsTotal); got != before+1 {
		t.Fatalf("rejections counter = %v, want %v", got, before+1)
	}
}

func TestObserveHTTPRequestCountsByCode(t *testing.T) {
	Init()

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "202"))
	ObserveHTTPRequest("POST", "/plan", 202, 5*time.Millisecond)
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "202")); got != before+1 {
		t.Fatalf("http counter = %v, want %v", got, before+1)
	}
}

func TestObserversAreNilSafeBeforeInit(t *testing.T) {
	// The collectors are package-level; observing with nil vecs must not
	// panic even if Init was never called in this process.
	ObserveTask("completed")
	ObserveStage("enrich", time.Second)
	ObserveRateLimitRejection()
	ObserveHTTPRequest("GET", "/healthz", 200, time.Millisecond)
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	if planTasksTotal == nil {
		t.Fatal("expected collectors to be registered")
	}
}
