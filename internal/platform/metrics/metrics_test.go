package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncSubmission(t *testing.T) {
	before := testutil.ToFloat64(SubmissionsTotal.WithLabelValues("accepted"))
	IncSubmission("accepted")
	IncSubmission("accepted")
	if got := testutil.ToFloat64(SubmissionsTotal.WithLabelValues("accepted")) - before; got != 2 {
		t.Fatalf("expected 2 increments, got %v", got)
	}
}

func TestObserveRecordsSeries(t *testing.T) {
	ObserveUpstream("relay", "303", 120*time.Millisecond)
	ObserveHops("accepted", 1)
	ObserveHTTPRequest("POST", "/api/submit", 200, 5*time.Millisecond)

	if n := testutil.CollectAndCount(UpstreamDuration); n < 1 {
		t.Fatalf("expected upstream series, got %d", n)
	}
	if n := testutil.CollectAndCount(RelayHops); n < 1 {
		t.Fatalf("expected hop series, got %d", n)
	}
	if n := testutil.CollectAndCount(HTTPRequestDuration); n < 1 {
		t.Fatalf("expected http series, got %d", n)
	}
}
