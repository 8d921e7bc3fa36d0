package tracker

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/david/jd-copilot/internal/models"
)

type memStore struct {
	rows    map[int64]models.Opportunity
	updates int
	failOn  int64
}

func newMemStore(opps ...models.Opportunity) *memStore {
	s := &memStore{rows: map[int64]models.Opportunity{}}
	for _, o := range opps {
		s.rows[o.ID] = o
	}
	return s
}

func (s *memStore) UpdateOpportunity(_ context.Context, id int64, p models.OpportunityPatch) error {
	if id == s.failOn {
		return errors.New("write refused")
	}
	o, ok := s.rows[id]
	if !ok {
		return models.ErrNotFound
	}
	if p.Stage != nil {
		o.Stage = *p.Stage
	}
	if p.NextAction != nil {
		o.NextAction = *p.NextAction
	}
	if p.ClearBucketDue {
		o.BucketDue = nil
	} else if p.BucketDue != nil {
		o.BucketDue = p.BucketDue
	}
	if p.ClearNextDue {
		o.NextActionDue = nil
	} else if p.NextActionDue != nil {
		o.NextActionDue = p.NextActionDue
	}
	s.rows[id] = o
	s.updates++
	return nil
}

func (s *memStore) ListForRefresh(_ context.Context, afterID int64, limit int) ([]models.Opportunity, error) {
	var ids []int64
	for id := range s.rows {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]models.Opportunity, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rows[id])
	}
	return out, nil
}

func TestRefresh_WritesOnlyOnDivergence(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	opp := models.Opportunity{ID: 1, Stage: models.StageNew, Decision: models.DecisionPending, Day0At: now}
	store := newMemStore(opp)
	r := NewRefresher(store)

	updated, err := r.Refresh(context.Background(), &opp, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated || store.updates != 1 {
		t.Fatalf("expected one write, got updated=%v writes=%d", updated, store.updates)
	}
	if opp.Stage != models.StageDecisionPending {
		t.Fatalf("expected in-memory record to follow, got %s", opp.Stage)
	}

	updated, err = r.Refresh(context.Background(), &opp, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated || store.updates != 1 {
		t.Fatalf("expected no second write, got updated=%v writes=%d", updated, store.updates)
	}
}

func TestRefresh_InterviewingWritesOncePerDay(t *testing.T) {
	now := time.Date(2026, 2, 12, 8, 0, 0, 0, time.UTC)
	opp := models.Opportunity{ID: 7, Stage: models.StageInterviewing, Decision: models.DecisionQualified, Day0At: now.AddDate(0, 0, -10)}
	store := newMemStore(opp)
	r := NewRefresher(store)

	for i := 0; i < 5; i++ {
		if _, err := r.Refresh(context.Background(), &opp, now.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if store.updates != 1 {
		t.Fatalf("expected a single write within one day, got %d", store.updates)
	}

	if _, err := r.Refresh(context.Background(), &opp, now.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.updates != 2 {
		t.Fatalf("expected a write on the next day, got %d", store.updates)
	}
}

func TestRefresh_PropagatesStoreError(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	opp := models.Opportunity{ID: 3, Stage: models.StageNew, Decision: models.DecisionPending, Day0At: now}
	store := newMemStore(opp)
	store.failOn = 3

	if _, err := NewRefresher(store).Refresh(context.Background(), &opp, now); err == nil {
		t.Fatal("expected error from store")
	}
	if opp.Stage != models.StageNew {
		t.Fatalf("record must not change on failed write, got %s", opp.Stage)
	}
}

func TestRefreshAll_SweepsInBatches(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	day0 := now.AddDate(0, 0, -2)

	var opps []models.Opportunity
	for i := int64(1); i <= 7; i++ {
		decision := models.DecisionPending
		if i%2 == 0 {
			decision = models.DecisionUnqualified
		}
		opps = append(opps, models.Opportunity{ID: i, Stage: models.StageNew, Decision: decision, Day0At: day0})
	}
	store := newMemStore(opps...)

	stats, err := NewRefresher(store).RefreshAll(context.Background(), now, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Scanned != 7 || stats.Updated != 7 {
		t.Fatalf("expected 7 scanned and updated, got %+v", stats)
	}
	if stats.StageCounts[string(models.StageDecisionPending)] != 4 || stats.StageCounts[string(models.StageDQ)] != 3 {
		t.Fatalf("unexpected stage counts %v", stats.StageCounts)
	}

	again, err := NewRefresher(store).RefreshAll(context.Background(), now, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Updated != 0 {
		t.Fatalf("expected idempotent second sweep, got %d updates", again.Updated)
	}
}

func TestBuildDQReasons(t *testing.T) {
	reasons, err := BuildDQReasons([]string{"LOCATION_MISMATCH", "comp_below_threshold", "LOCATION_MISMATCH"}, "  remote only ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reasons) != 2 {
		t.Fatalf("expected 2 reasons, got %d", len(reasons))
	}
	if reasons[0].Code != "LOCATION_MISMATCH" || reasons[1].Code != "COMP_BELOW_THRESHOLD" {
		t.Fatalf("unexpected order %+v", reasons)
	}
	if reasons[1].Note != "remote only" {
		t.Fatalf("expected shared trimmed note, got %q", reasons[1].Note)
	}

	if _, err := BuildDQReasons([]string{"NOT_A_CODE"}, ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
