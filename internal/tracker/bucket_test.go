package tracker

import (
	"testing"
	"time"

	"github.com/david/jd-copilot/internal/models"
)

func TestComputeBucket_PendingGoesToDecisionWindow(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	day0 := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

	for _, stage := range []models.Stage{models.StageNew, models.StageAnalyzed, models.StageDecisionPending} {
		t.Run(string(stage), func(t *testing.T) {
			b := ComputeBucket(stage, models.DecisionPending, day0, now)
			if b.Stage != models.StageDecisionPending {
				t.Fatalf("expected DECISION_PENDING, got %s", b.Stage)
			}
			if b.NextAction != ActionDecide {
				t.Fatalf("unexpected action %q", b.NextAction)
			}
			want := day0.AddDate(0, 0, 7)
			if b.BucketDue == nil || !b.BucketDue.Equal(want) {
				t.Fatalf("expected due %s, got %v", want, b.BucketDue)
			}
		})
	}
}

func TestComputeBucket_Day0Example(t *testing.T) {
	day0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	b := ComputeBucket(models.StageNew, models.DecisionPending, day0, now)
	want := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	if b.BucketDue == nil || !b.BucketDue.Equal(want) {
		t.Fatalf("expected bucket_due %s, got %v", want, b.BucketDue)
	}
	if b.NextActionDue == nil || !b.NextActionDue.Equal(want) {
		t.Fatalf("expected next_action_due %s, got %v", want, b.NextActionDue)
	}
}

func TestComputeBucket_QualifiedGoesToPrep(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	day0 := now.AddDate(0, 0, -3)

	for _, stage := range []models.Stage{models.StageNew, models.StageAnalyzed, models.StageDecisionPending, models.StageQualifiedPrep, models.StageDQ} {
		b := ComputeBucket(stage, models.DecisionQualified, day0, now)
		if b.Stage != models.StageQualifiedPrep {
			t.Fatalf("%s: expected QUALIFIED_PREP, got %s", stage, b.Stage)
		}
		if b.NextAction != ActionTailor {
			t.Fatalf("%s: unexpected action %q", stage, b.NextAction)
		}
		want := day0.AddDate(0, 0, 12)
		if b.BucketDue == nil || !b.BucketDue.Equal(want) {
			t.Fatalf("%s: expected due %s, got %v", stage, want, b.BucketDue)
		}
	}
}

func TestComputeBucket_AppliedFollowUp(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		day0 time.Time
		want time.Time
	}{
		{name: "window still open", day0: now.AddDate(0, 0, -3), want: now.AddDate(0, 0, 11)},
		{name: "window passed", day0: now.AddDate(0, 0, -30), want: now},
		{name: "exactly at window", day0: now.AddDate(0, 0, -14), want: now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, decision := range []models.Decision{models.DecisionQualified, models.DecisionPending} {
				b := ComputeBucket(models.StageApplied, decision, tt.day0, now)
				if b.Stage != models.StageApplied {
					t.Fatalf("%s: expected APPLIED, got %s", decision, b.Stage)
				}
				if b.NextAction != ActionFollowUp {
					t.Fatalf("%s: unexpected action %q", decision, b.NextAction)
				}
				if b.BucketDue == nil || !b.BucketDue.Equal(tt.want) {
					t.Fatalf("%s: expected due %s, got %v", decision, tt.want, b.BucketDue)
				}
				if b.BucketDue.Before(now) {
					t.Fatalf("%s: follow-up due %s is before now", decision, b.BucketDue)
				}
			}
		})
	}
}

func TestComputeBucket_InterviewingTracksNow(t *testing.T) {
	day0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	second := first.Add(36 * time.Hour)

	a := ComputeBucket(models.StageInterviewing, models.DecisionQualified, day0, first)
	b := ComputeBucket(models.StageInterviewing, models.DecisionQualified, day0, second)

	if a.Stage != models.StageInterviewing || a.NextAction != ActionInterview {
		t.Fatalf("unexpected bucket %+v", a)
	}
	if !a.BucketDue.Equal(first.Add(48 * time.Hour)) {
		t.Fatalf("expected due now+2d, got %s", a.BucketDue)
	}
	if !b.BucketDue.Equal(second.Add(48 * time.Hour)) {
		t.Fatalf("expected due to follow now, got %s", b.BucketDue)
	}
}

func TestComputeBucket_UnqualifiedMovesToDQ(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	day0 := now.AddDate(0, 0, -20)

	for _, stage := range models.Stages {
		if stage == models.StageApplied || stage == models.StageInterviewing {
			continue
		}
		b := ComputeBucket(stage, models.DecisionUnqualified, day0, now)
		if b.Stage != models.StageDQ {
			t.Fatalf("%s: expected DQ, got %s", stage, b.Stage)
		}
		if b.NextAction != ActionDQ {
			t.Fatalf("%s: unexpected action %q", stage, b.NextAction)
		}
		if b.BucketDue != nil || b.NextActionDue != nil {
			t.Fatalf("%s: expected no due date, got %v / %v", stage, b.BucketDue, b.NextActionDue)
		}
	}
}

func TestComputeBucket_UnqualifiedKeepsStageRuleOnFirstPass(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	day0 := now.AddDate(0, 0, -20)

	tests := []struct {
		stage  models.Stage
		action string
		due    time.Time
	}{
		{models.StageApplied, ActionFollowUp, now},
		{models.StageInterviewing, ActionInterview, now.Add(48 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			b := ComputeBucket(tt.stage, models.DecisionUnqualified, day0, now)
			if b.Stage != models.StageDQ {
				t.Fatalf("expected DQ, got %s", b.Stage)
			}
			if b.NextAction != tt.action {
				t.Fatalf("expected %q, got %q", tt.action, b.NextAction)
			}
			if b.BucketDue == nil || !b.BucketDue.Equal(tt.due) {
				t.Fatalf("expected due %s, got %v", tt.due, b.BucketDue)
			}

			settled := ComputeBucket(b.Stage, models.DecisionUnqualified, day0, now)
			if settled.Stage != models.StageDQ || settled.NextAction != ActionDQ || settled.BucketDue != nil {
				t.Fatalf("expected DQ to settle with no action, got %+v", settled)
			}
		})
	}
}

func TestComputeBucket_FallThroughEchoesStage(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	day0 := now.AddDate(0, 0, -5)

	tests := []struct {
		stage    models.Stage
		decision models.Decision
	}{
		{models.StageClosed, models.DecisionPending},
		{models.StageClosed, models.DecisionQualified},
		{models.StageQualifiedPrep, models.DecisionPending},
		{models.StageDQ, models.DecisionPending},
		{models.Stage("ARCHIVED"), models.DecisionPending},
		{models.StageNew, models.Decision("MAYBE")},
	}

	for _, tt := range tests {
		b := ComputeBucket(tt.stage, tt.decision, day0, now)
		if b.Stage != tt.stage {
			t.Fatalf("%s/%s: expected stage echoed, got %s", tt.stage, tt.decision, b.Stage)
		}
		if b.NextAction != "" || b.BucketDue != nil {
			t.Fatalf("%s/%s: expected empty action, got %+v", tt.stage, tt.decision, b)
		}
	}
}

func TestComputeBucket_Deterministic(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	day0 := now.AddDate(0, 0, -2)

	for _, stage := range models.Stages {
		for _, decision := range models.Decisions {
			a := ComputeBucket(stage, decision, day0, now)
			b := ComputeBucket(stage, decision, day0, now)
			if a.Stage != b.Stage || a.NextAction != b.NextAction || !sameInstant(a.BucketDue, b.BucketDue) || !sameInstant(a.NextActionDue, b.NextActionDue) {
				t.Fatalf("%s/%s: non-deterministic output %+v vs %+v", stage, decision, a, b)
			}
			if (a.BucketDue == nil) != (a.NextActionDue == nil) {
				t.Fatalf("%s/%s: bucket_due and next_action_due disagree", stage, decision)
			}
			if a.BucketDue != nil && !a.BucketDue.Equal(*a.NextActionDue) {
				t.Fatalf("%s/%s: bucket_due %s != next_action_due %s", stage, decision, a.BucketDue, a.NextActionDue)
			}
		}
	}
}

func TestBucketDiffers_ComparesDueByDate(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	day0 := now.AddDate(0, 0, -20)

	stored := ComputeBucket(models.StageInterviewing, models.DecisionQualified, day0, now)
	opp := models.Opportunity{
		Stage:         stored.Stage,
		Decision:      models.DecisionQualified,
		Day0At:        day0,
		BucketDue:     stored.BucketDue,
		NextAction:    stored.NextAction,
		NextActionDue: stored.NextActionDue,
	}

	laterSameDay := ComputeBucket(models.StageInterviewing, models.DecisionQualified, day0, now.Add(6*time.Hour))
	if laterSameDay.Differs(opp) {
		t.Fatal("expected no divergence within the same calendar day")
	}

	nextDay := ComputeBucket(models.StageInterviewing, models.DecisionQualified, day0, now.Add(13*time.Hour))
	if !nextDay.Differs(opp) {
		t.Fatal("expected divergence once the due date moves to the next day")
	}
}

func TestBucketDiffers_DetectsStageActionAndPresence(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	day0 := now.AddDate(0, 0, -1)

	fresh := models.Opportunity{Stage: models.StageNew, Decision: models.DecisionPending, Day0At: day0}
	b := ComputeBucket(fresh.Stage, fresh.Decision, fresh.Day0At, now)
	if !b.Differs(fresh) {
		t.Fatal("expected divergence for a fresh record")
	}

	dq := models.Opportunity{Stage: models.StageDQ, Decision: models.DecisionUnqualified, Day0At: day0, NextAction: ActionDQ}
	if ComputeBucket(dq.Stage, dq.Decision, dq.Day0At, now).Differs(dq) {
		t.Fatal("expected stored DQ record to match")
	}

	due := day0.AddDate(0, 0, 7)
	dq.BucketDue = &due
	if !ComputeBucket(dq.Stage, dq.Decision, dq.Day0At, now).Differs(dq) {
		t.Fatal("expected divergence when a stale due date must be cleared")
	}
}

func TestBucketPatch_ClearsMissingDueDates(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

	p := ComputeBucket(models.StageNew, models.DecisionUnqualified, now, now).Patch()
	if p.Stage == nil || *p.Stage != models.StageDQ {
		t.Fatalf("expected DQ stage in patch, got %v", p.Stage)
	}
	if !p.ClearBucketDue || !p.ClearNextDue {
		t.Fatal("expected due dates to be cleared")
	}

	p = ComputeBucket(models.StageNew, models.DecisionPending, now, now).Patch()
	if p.ClearBucketDue || p.BucketDue == nil {
		t.Fatal("expected bucket due to be set")
	}
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
