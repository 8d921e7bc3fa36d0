package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Stage is the lifecycle position of an opportunity.
type Stage string

const (
	StageNew             Stage = "NEW"
	StageAnalyzed        Stage = "ANALYZED"
	StageDecisionPending Stage = "DECISION_PENDING"
	StageQualifiedPrep   Stage = "QUALIFIED_PREP"
	StageApplied         Stage = "APPLIED"
	StageInterviewing    Stage = "INTERVIEWING"
	StageClosed          Stage = "CLOSED"
	StageDQ              Stage = "DQ"
)

var Stages = []Stage{
	StageNew, StageAnalyzed, StageDecisionPending, StageQualifiedPrep,
	StageApplied, StageInterviewing, StageClosed, StageDQ,
}

func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// Decision is the user's qualification verdict.
type Decision string

const (
	DecisionPending     Decision = "PENDING"
	DecisionQualified   Decision = "QUALIFIED"
	DecisionUnqualified Decision = "UNQUALIFIED"
)

var Decisions = []Decision{DecisionPending, DecisionQualified, DecisionUnqualified}

func (d Decision) Valid() bool {
	for _, known := range Decisions {
		if d == known {
			return true
		}
	}
	return false
}

type DQReason struct {
	Code string `json:"code"`
	Note string `json:"note"`
}

type Opportunity struct {
	ID               int64       `json:"id"`
	OwnerID          uuid.UUID   `json:"owner_id"`
	Company          string      `json:"company"`
	RoleTitle        string      `json:"role_title"`
	JDLink           string      `json:"jd_link"`
	JDText           string      `json:"jd_text"`
	Stage            Stage       `json:"stage"`
	Decision         Decision    `json:"decision"`
	Day0At           time.Time   `json:"day0_at"`
	BucketDue        *time.Time  `json:"bucket_due"`
	NextAction       string      `json:"next_action"`
	NextActionDue    *time.Time  `json:"next_action_due"`
	DQReasons        []DQReason  `json:"dq_reasons"`
	Analysis         *JDAnalysis `json:"analysis"`
	AnalysisModel    string      `json:"analysis_model"`
	PromptTokens     int         `json:"prompt_tokens"`
	CompletionTokens int         `json:"completion_tokens"`
	TotalTokens      int         `json:"total_tokens"`
	EstimatedCostUSD float64     `json:"estimated_cost_usd"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// OpportunitySummary is the list-view projection.
type OpportunitySummary struct {
	ID        int64      `json:"id"`
	Company   string     `json:"company"`
	RoleTitle string     `json:"role_title"`
	Stage     Stage      `json:"stage"`
	Decision  Decision   `json:"decision"`
	BucketDue *time.Time `json:"bucket_due"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// OpportunityPatch is a partial update. Nil fields are left untouched.
// ClearDQReasons and ClearBucketDue let callers write NULL explicitly.
type OpportunityPatch struct {
	Company          *string
	RoleTitle        *string
	JDLink           *string
	JDText           *string
	Stage            *Stage
	Decision         *Decision
	BucketDue        *time.Time
	ClearBucketDue   bool
	NextAction       *string
	NextActionDue    *time.Time
	ClearNextDue     bool
	DQReasons        []DQReason
	ClearDQReasons   bool
	Analysis         *JDAnalysis
	AnalysisModel    *string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	EstimatedCostUSD *float64
}

func (p OpportunityPatch) IsEmpty() bool {
	return p.Company == nil && p.RoleTitle == nil && p.JDLink == nil && p.JDText == nil &&
		p.Stage == nil && p.Decision == nil && p.BucketDue == nil && !p.ClearBucketDue &&
		p.NextAction == nil && p.NextActionDue == nil && !p.ClearNextDue &&
		p.DQReasons == nil && !p.ClearDQReasons && p.Analysis == nil && p.AnalysisModel == nil &&
		p.PromptTokens == nil && p.CompletionTokens == nil && p.TotalTokens == nil &&
		p.EstimatedCostUSD == nil
}

// SimilarOpportunity is a nearest-neighbour hit on the JD embedding.
type SimilarOpportunity struct {
	ID         int64    `json:"id"`
	Company    string   `json:"company"`
	RoleTitle  string   `json:"role_title"`
	Stage      Stage    `json:"stage"`
	Decision   Decision `json:"decision"`
	Similarity float64  `json:"similarity"`
}
