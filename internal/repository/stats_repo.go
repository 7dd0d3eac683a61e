package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	statsCollection = "relay_stats"
	statsDoc        = "outcomes"
)

// outcomeFields maps pipeline result labels to counter fields on the stats document.
var outcomeFields = map[string]string{
	"accepted":            "accepted",
	"rejected":            "rejected",
	"indeterminate":       "indeterminate",
	"verification_failed": "verificationFailed",
	"validation_failed":   "validationFailed",
}

// StatsRepository manages the relay_stats/outcomes counter document. It stores
// counts only; submissions themselves are never written.
type StatsRepository struct {
	client *firestore.Client
}

func NewStatsRepository(client *firestore.Client) *StatsRepository {
	return &StatsRepository{client: client}
}

// RecordOutcome increments the counter for result. Unknown results are ignored.
func (r *StatsRepository) RecordOutcome(ctx context.Context, result string) error {
	field, ok := outcomeFields[result]
	if !ok {
		return nil
	}
	ref := r.client.Collection(statsCollection).Doc(statsDoc)
	_, err := ref.Set(ctx, map[string]interface{}{
		field:         firestore.Increment(1),
		"lastUpdated": time.Now().UTC(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", result, err)
	}
	return nil
}

// GetOutcomeStats returns the counters, or zeros before the first submission.
func (r *StatsRepository) GetOutcomeStats(ctx context.Context) (model.OutcomeStats, error) {
	ref := r.client.Collection(statsCollection).Doc(statsDoc)
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return model.OutcomeStats{}, nil
	}
	if err != nil {
		return model.OutcomeStats{}, fmt.Errorf("get outcome stats: %w", err)
	}
	var stats model.OutcomeStats
	if err := snap.DataTo(&stats); err != nil {
		return model.OutcomeStats{}, fmt.Errorf("decode outcome stats: %w", err)
	}
	return stats, nil
}
