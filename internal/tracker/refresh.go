package tracker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/david/jd-copilot/internal/models"
)

// Store is the persistence the refresher needs.
type Store interface {
	UpdateOpportunity(ctx context.Context, id int64, patch models.OpportunityPatch) error
	ListForRefresh(ctx context.Context, afterID int64, limit int) ([]models.Opportunity, error)
}

type Refresher struct {
	store Store
}

func NewRefresher(store Store) *Refresher {
	return &Refresher{store: store}
}

type RefreshStats struct {
	Scanned     int            `json:"scanned"`
	Updated     int            `json:"updated"`
	StageCounts map[string]int `json:"stage_counts"`
}

// Refresh recomputes the bucket for opp and writes it back only when it
// diverges from the stored values. opp is updated in place to match what
// was persisted.
func (r *Refresher) Refresh(ctx context.Context, opp *models.Opportunity, now time.Time) (bool, error) {
	bucket := ComputeBucket(opp.Stage, opp.Decision, opp.Day0At, now)
	if !bucket.Differs(*opp) {
		return false, nil
	}

	if err := r.store.UpdateOpportunity(ctx, opp.ID, bucket.Patch()); err != nil {
		return false, fmt.Errorf("persist bucket for opportunity %d: %w", opp.ID, err)
	}

	opp.Stage = bucket.Stage
	opp.BucketDue = bucket.BucketDue
	opp.NextAction = bucket.NextAction
	opp.NextActionDue = bucket.NextActionDue
	return true, nil
}

// RefreshAll sweeps every opportunity in id order, batchSize rows at a time.
func (r *Refresher) RefreshAll(ctx context.Context, now time.Time, batchSize int) (RefreshStats, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	stats := RefreshStats{StageCounts: map[string]int{}}
	var lastID int64

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch, err := r.store.ListForRefresh(ctx, lastID, batchSize)
		if err != nil {
			return stats, fmt.Errorf("bucket sweep query failed: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			opp := &batch[i]
			updated, err := r.Refresh(ctx, opp, now)
			if err != nil {
				return stats, err
			}
			stats.Scanned++
			if updated {
				stats.Updated++
			}
			stats.StageCounts[string(opp.Stage)]++
			lastID = opp.ID
		}

		if len(batch) < batchSize {
			break
		}
	}

	return stats, nil
}

// Watch runs RefreshAll immediately and then on every tick until ctx is done.
// A non-positive interval disables the watcher.
func (r *Refresher) Watch(ctx context.Context, interval time.Duration, batchSize int) {
	if interval <= 0 {
		log.Print("[bucket-sweep] periodic refresh disabled")
		return
	}

	run := func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		stats, err := r.RefreshAll(sweepCtx, time.Now().UTC(), batchSize)
		if err != nil {
			log.Printf("[bucket-sweep] failed after %d rows: %v", stats.Scanned, err)
			return
		}
		log.Printf("[bucket-sweep] scanned=%d updated=%d stages=%v", stats.Scanned, stats.Updated, stats.StageCounts)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		run()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
