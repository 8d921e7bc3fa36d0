package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david/jd-copilot/internal/ai"
	"github.com/david/jd-copilot/internal/auth"
	"github.com/david/jd-copilot/internal/db"
	"github.com/david/jd-copilot/internal/ingest"
	"github.com/david/jd-copilot/internal/models"
)

type fakeStore struct {
	mu         sync.Mutex
	day0       time.Time
	nextID     int64
	rows       map[int64]models.Opportunity
	embeddings map[int64][]float32
	similar    []models.SimilarOpportunity
	updates    int
}

func newFakeStore(day0 time.Time) *fakeStore {
	return &fakeStore{
		day0:       day0,
		rows:       map[int64]models.Opportunity{},
		embeddings: map[int64][]float32{},
	}
}

func (s *fakeStore) CreateOpportunity(_ context.Context, ownerID uuid.UUID, in db.CreateParams) (*models.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.Company == "" || in.RoleTitle == "" {
		return nil, models.ErrInvalidInput
	}
	s.nextID++
	o := models.Opportunity{
		ID:        s.nextID,
		OwnerID:   ownerID,
		Company:   in.Company,
		RoleTitle: in.RoleTitle,
		JDLink:    in.JDLink,
		JDText:    in.JDText,
		Stage:     models.StageNew,
		Decision:  models.DecisionPending,
		Day0At:    s.day0,
		CreatedAt: s.day0,
		UpdatedAt: s.day0,
	}
	s.rows[o.ID] = o
	return &o, nil
}

func (s *fakeStore) GetOpportunity(_ context.Context, ownerID uuid.UUID, id int64) (*models.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	if !ok || o.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	return &o, nil
}

func (s *fakeStore) UpdateOpportunity(_ context.Context, id int64, p models.OpportunityPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.IsEmpty() {
		return nil
	}
	o, ok := s.rows[id]
	if !ok {
		return models.ErrNotFound
	}
	if p.Company != nil {
		o.Company = *p.Company
	}
	if p.RoleTitle != nil {
		o.RoleTitle = *p.RoleTitle
	}
	if p.JDLink != nil {
		o.JDLink = *p.JDLink
	}
	if p.JDText != nil {
		o.JDText = *p.JDText
	}
	if p.Stage != nil {
		o.Stage = *p.Stage
	}
	if p.Decision != nil {
		o.Decision = *p.Decision
	}
	if p.ClearBucketDue {
		o.BucketDue = nil
	} else if p.BucketDue != nil {
		o.BucketDue = p.BucketDue
	}
	if p.NextAction != nil {
		o.NextAction = *p.NextAction
	}
	if p.ClearNextDue {
		o.NextActionDue = nil
	} else if p.NextActionDue != nil {
		o.NextActionDue = p.NextActionDue
	}
	if p.ClearDQReasons {
		o.DQReasons = nil
	} else if p.DQReasons != nil {
		o.DQReasons = p.DQReasons
	}
	if p.Analysis != nil {
		o.Analysis = p.Analysis
	}
	if p.AnalysisModel != nil {
		o.AnalysisModel = *p.AnalysisModel
	}
	if p.PromptTokens != nil {
		o.PromptTokens = *p.PromptTokens
	}
	if p.CompletionTokens != nil {
		o.CompletionTokens = *p.CompletionTokens
	}
	if p.TotalTokens != nil {
		o.TotalTokens = *p.TotalTokens
	}
	if p.EstimatedCostUSD != nil {
		o.EstimatedCostUSD = *p.EstimatedCostUSD
	}
	s.rows[id] = o
	s.updates++
	return nil
}

func (s *fakeStore) ListOpportunities(_ context.Context, ownerID uuid.UUID, params db.ListParams) (*db.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.OpportunitySummary{}
	for _, o := range s.rows {
		if o.OwnerID != ownerID {
			continue
		}
		if params.Stage != "" && string(o.Stage) != params.Stage {
			continue
		}
		if params.Decision != "" && string(o.Decision) != params.Decision {
			continue
		}
		out = append(out, models.OpportunitySummary{ID: o.ID, Company: o.Company, RoleTitle: o.RoleTitle, Stage: o.Stage, Decision: o.Decision, BucketDue: o.BucketDue})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return &db.ListResult{Opportunities: out, Total: len(out), Limit: params.Limit, Offset: params.Offset}, nil
}

func (s *fakeStore) ListForRefresh(_ context.Context, afterID int64, limit int) ([]models.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

func (s *fakeStore) SetEmbedding(_ context.Context, id int64, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[id] = embedding
	return nil
}

func (s *fakeStore) SimilarOpportunities(_ context.Context, _ uuid.UUID, _ int64, limit int) ([]models.SimilarOpportunity, error) {
	if len(s.similar) > limit {
		return s.similar[:limit], nil
	}
	return s.similar, nil
}

func (s *fakeStore) GetStats(_ context.Context, ownerID uuid.UUID) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, o := range s.rows {
		if o.OwnerID == ownerID {
			total++
		}
	}
	return map[string]interface{}{"total": total}, nil
}

func (s *fakeStore) get(id int64) models.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

type fakeAuth struct {
	users map[string]string
}

func (a *fakeAuth) Signup(_ context.Context, req auth.SignupRequest) (*auth.AuthResponse, error) {
	if _, ok := a.users[req.Email]; ok {
		return nil, auth.ErrUserExists
	}
	a.users[req.Email] = req.Password
	return &auth.AuthResponse{Token: "signed", User: auth.User{ID: uuid.New(), Email: req.Email}}, nil
}

func (a *fakeAuth) Login(_ context.Context, req auth.LoginRequest) (*auth.AuthResponse, error) {
	if pw, ok := a.users[req.Email]; !ok || pw != req.Password {
		return nil, auth.ErrInvalidCreds
	}
	return &auth.AuthResponse{Token: "signed", User: auth.User{Email: req.Email}}, nil
}

type stubCompleter struct {
	resp  ai.Completion
	err   error
	calls int
}

func (s *stubCompleter) Complete(_ context.Context, _, _ string) (ai.Completion, error) {
	s.calls++
	return s.resp, s.err
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return s.vec, s.err
}

type stubImporter struct {
	result *ingest.ImportedJD
	err    error
	urls   []string
}

func (s *stubImporter) Import(_ context.Context, rawURL string) (*ingest.ImportedJD, error) {
	s.urls = append(s.urls, rawURL)
	return s.result, s.err
}

var errUpstream = errors.New("upstream exploded")
