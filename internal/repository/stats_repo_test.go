package repository

import (
	"context"
	"testing"

	"github.com/weiwei-tsao/form-relay/apps/api/internal/business/relay"
)

func TestOutcomeFieldsCoverPipelineResults(t *testing.T) {
	results := []string{
		relay.ResultAccepted,
		relay.ResultRejected,
		relay.ResultIndeterminate,
		relay.ResultVerificationFailed,
		relay.ResultValidationFailed,
	}
	seen := map[string]bool{}
	for _, r := range results {
		field, ok := outcomeFields[r]
		if !ok {
			t.Fatalf("result %q has no counter field", r)
		}
		if seen[field] {
			t.Fatalf("field %q mapped twice", field)
		}
		seen[field] = true
	}
	if _, ok := outcomeFields[relay.ResultUnexpected]; ok {
		t.Fatalf("unexpected failures are metrics-only")
	}
}

func TestRecordOutcomeIgnoresUnknownResult(t *testing.T) {
	r := NewStatsRepository(nil)
	if err := r.RecordOutcome(context.Background(), "something-else"); err != nil {
		t.Fatalf("unknown results should be ignored, got %v", err)
	}
}
