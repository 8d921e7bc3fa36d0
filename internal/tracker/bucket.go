package tracker

import (
	"time"

	"github.com/david/jd-copilot/internal/models"
)

const (
	ActionDecide    = "Decide: QUALIFIED or UNQUALIFIED (log DQ reasons if unqualified)"
	ActionTailor    = "Run tailoring workflow: resume deltas + cover letter storyline + outreach note"
	ActionDQ        = "No action (DQ logged)"
	ActionFollowUp  = "Follow up or reach out to hiring manager if no response"
	ActionInterview = "Generate interview prep pack + post-interview follow-up drafts"

	day = 24 * time.Hour

	DecisionWindow  = 7 * day
	PrepWindow      = 12 * day
	FollowUpWindow  = 14 * day
	InterviewWindow = 2 * day
)

// Bucket is the scheduler's recommendation for an opportunity.
// NextActionDue always equals BucketDue.
type Bucket struct {
	Stage         models.Stage
	BucketDue     *time.Time
	NextAction    string
	NextActionDue *time.Time
}

// ComputeBucket derives the recommended stage and next action from the
// current stage, decision and day 0. It has no side effects; the same inputs
// and now always produce the same Bucket.
//
// The APPLIED and INTERVIEWING rules apply to the input stage whatever the
// decision, so an UNQUALIFIED record in one of those stages is moved to DQ but
// keeps that stage's action and due date. Once stored as DQ the next
// computation settles on "No action (DQ logged)" with no due date. Stages and
// decisions outside the known sets fall through every rule and come back
// unchanged with an empty action.
func ComputeBucket(stage models.Stage, decision models.Decision, day0, now time.Time) Bucket {
	b := Bucket{Stage: stage}
	var due *time.Time

	switch {
	case decision == models.DecisionPending && inStages(stage, models.StageNew, models.StageAnalyzed, models.StageDecisionPending):
		b.Stage = models.StageDecisionPending
		b.NextAction = ActionDecide
		due = at(day0.Add(DecisionWindow))

	case decision == models.DecisionQualified && !inStages(stage, models.StageApplied, models.StageInterviewing, models.StageClosed):
		b.Stage = models.StageQualifiedPrep
		b.NextAction = ActionTailor
		due = at(day0.Add(PrepWindow))

	case decision == models.DecisionUnqualified:
		b.Stage = models.StageDQ
		b.NextAction = ActionDQ
	}

	switch stage {
	case models.StageApplied:
		b.NextAction = ActionFollowUp
		followUp := day0.Add(FollowUpWindow)
		if now.After(followUp) {
			followUp = now
		}
		due = at(followUp)
	case models.StageInterviewing:
		b.NextAction = ActionInterview
		due = at(now.Add(InterviewWindow))
	}

	b.BucketDue = due
	if due != nil {
		b.NextActionDue = at(*due)
	}
	return b
}

// Differs reports whether the bucket disagrees with what is stored on opp.
// Due dates are compared at UTC calendar-date granularity so rules anchored
// on now do not force a write on every read.
func (b Bucket) Differs(opp models.Opportunity) bool {
	if b.Stage != opp.Stage || b.NextAction != opp.NextAction {
		return true
	}
	return !sameDate(b.BucketDue, opp.BucketDue) || !sameDate(b.NextActionDue, opp.NextActionDue)
}

// Patch converts the bucket into a store update, clearing due dates that
// the scheduler left empty.
func (b Bucket) Patch() models.OpportunityPatch {
	stage := b.Stage
	action := b.NextAction
	p := models.OpportunityPatch{Stage: &stage, NextAction: &action}
	if b.BucketDue != nil {
		p.BucketDue = at(*b.BucketDue)
	} else {
		p.ClearBucketDue = true
	}
	if b.NextActionDue != nil {
		p.NextActionDue = at(*b.NextActionDue)
	} else {
		p.ClearNextDue = true
	}
	return p
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func inStages(stage models.Stage, set ...models.Stage) bool {
	for _, s := range set {
		if stage == s {
			return true
		}
	}
	return false
}

func at(t time.Time) *time.Time {
	return &t
}
