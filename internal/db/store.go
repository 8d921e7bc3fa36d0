package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/david/jd-copilot/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type CreateParams struct {
	Company   string
	RoleTitle string
	JDLink    string
	JDText    string
}

type ListParams struct {
	Stage    string
	Decision string
	Limit    int
	Offset   int
}

type ListResult struct {
	Opportunities []models.OpportunitySummary `json:"opportunities"`
	Total         int                         `json:"total"`
	Limit         int                         `json:"limit"`
	Offset        int                         `json:"offset"`
}

// selectCols is the full column list for single-record reads.
const selectCols = `id, owner_id, company, role_title, COALESCE(jd_link, ''), COALESCE(jd_text, ''),
	stage, decision, day0_at, bucket_due, COALESCE(next_action, ''), next_action_due,
	dq_reasons, analysis, COALESCE(analysis_model, ''),
	prompt_tokens, completion_tokens, total_tokens, estimated_cost_usd,
	created_at, updated_at`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	var stage, decision string
	var dqRaw, analysisRaw []byte

	err := scan(
		&o.ID, &o.OwnerID, &o.Company, &o.RoleTitle, &o.JDLink, &o.JDText,
		&stage, &decision, &o.Day0At, &o.BucketDue, &o.NextAction, &o.NextActionDue,
		&dqRaw, &analysisRaw, &o.AnalysisModel,
		&o.PromptTokens, &o.CompletionTokens, &o.TotalTokens, &o.EstimatedCostUSD,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	o.Stage = models.Stage(stage)
	o.Decision = models.Decision(decision)

	if len(dqRaw) > 0 {
		if err := json.Unmarshal(dqRaw, &o.DQReasons); err != nil {
			return o, fmt.Errorf("decode dq_reasons for %d: %w", o.ID, err)
		}
	}
	if len(analysisRaw) > 0 {
		var a models.JDAnalysis
		if err := json.Unmarshal(analysisRaw, &a); err != nil {
			return o, fmt.Errorf("decode analysis for %d: %w", o.ID, err)
		}
		o.Analysis = &a
	}

	return o, nil
}

// CreateOpportunity inserts a NEW/PENDING record with day0 set to now.
func (s *Store) CreateOpportunity(ctx context.Context, ownerID uuid.UUID, in CreateParams) (*models.Opportunity, error) {
	company := strings.TrimSpace(in.Company)
	role := strings.TrimSpace(in.RoleTitle)
	if company == "" || role == "" {
		return nil, fmt.Errorf("%w: company and role title are required", models.ErrInvalidInput)
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO opportunities (owner_id, company, role_title, jd_link, jd_text, stage, decision, day0_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), NOW())
		RETURNING %s
	`, selectCols), ownerID, company, role, nilIfEmpty(strings.TrimSpace(in.JDLink)), nilIfEmpty(in.JDText),
		string(models.StageNew), string(models.DecisionPending))

	o, err := scanOpportunity(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("insert failed: %w", err)
	}
	return &o, nil
}

func (s *Store) GetOpportunity(ctx context.Context, ownerID uuid.UUID, id int64) (*models.Opportunity, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM opportunities
		WHERE id = $1 AND owner_id = $2
	`, selectCols)
	row := s.pool.QueryRow(ctx, sql, id, ownerID)

	o, err := scanOpportunity(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity %d: %w", id, err)
	}

	return &o, nil
}

// UpdateOpportunity applies a partial update and stamps updated_at.
// Ownership is checked by the caller's preceding read.
func (s *Store) UpdateOpportunity(ctx context.Context, id int64, patch models.OpportunityPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	sql, args, err := buildOpportunityUpdate(id, patch)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update opportunity %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func buildOpportunityUpdate(id int64, p models.OpportunityPatch) (string, []interface{}, error) {
	var sets []string
	var args []interface{}

	set := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Company != nil {
		set("company", strings.TrimSpace(*p.Company))
	}
	if p.RoleTitle != nil {
		set("role_title", strings.TrimSpace(*p.RoleTitle))
	}
	if p.JDLink != nil {
		set("jd_link", nilIfEmpty(strings.TrimSpace(*p.JDLink)))
	}
	if p.JDText != nil {
		set("jd_text", nilIfEmpty(*p.JDText))
	}
	if p.Stage != nil {
		set("stage", string(*p.Stage))
	}
	if p.Decision != nil {
		set("decision", string(*p.Decision))
	}
	if p.ClearBucketDue {
		sets = append(sets, "bucket_due = NULL")
	} else if p.BucketDue != nil {
		set("bucket_due", *p.BucketDue)
	}
	if p.NextAction != nil {
		set("next_action", *p.NextAction)
	}
	if p.ClearNextDue {
		sets = append(sets, "next_action_due = NULL")
	} else if p.NextActionDue != nil {
		set("next_action_due", *p.NextActionDue)
	}
	if p.ClearDQReasons {
		sets = append(sets, "dq_reasons = NULL")
	} else if p.DQReasons != nil {
		raw, err := json.Marshal(p.DQReasons)
		if err != nil {
			return "", nil, fmt.Errorf("encode dq_reasons: %w", err)
		}
		set("dq_reasons", raw)
	}
	if p.Analysis != nil {
		raw, err := json.Marshal(p.Analysis)
		if err != nil {
			return "", nil, fmt.Errorf("encode analysis: %w", err)
		}
		set("analysis", raw)
	}
	if p.AnalysisModel != nil {
		set("analysis_model", *p.AnalysisModel)
	}
	if p.PromptTokens != nil {
		set("prompt_tokens", *p.PromptTokens)
	}
	if p.CompletionTokens != nil {
		set("completion_tokens", *p.CompletionTokens)
	}
	if p.TotalTokens != nil {
		set("total_tokens", *p.TotalTokens)
	}
	if p.EstimatedCostUSD != nil {
		set("estimated_cost_usd", *p.EstimatedCostUSD)
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	sql := fmt.Sprintf("UPDATE opportunities SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return sql, args, nil
}

func buildListWhere(ownerID uuid.UUID, params ListParams) (string, []interface{}) {
	where := "WHERE owner_id = $1"
	args := []interface{}{ownerID}
	argIdx := 2

	if params.Stage != "" {
		where += fmt.Sprintf(" AND stage = $%d", argIdx)
		args = append(args, params.Stage)
		argIdx++
	}
	if params.Decision != "" {
		where += fmt.Sprintf(" AND decision = $%d", argIdx)
		args = append(args, params.Decision)
	}

	return where, args
}

// ListOpportunities returns summaries ordered by most recently updated.
func (s *Store) ListOpportunities(ctx context.Context, ownerID uuid.UUID, params ListParams) (*ListResult, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	where, args := buildListWhere(ownerID, params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf(`
		SELECT id, company, role_title, stage, decision, bucket_due, updated_at
		FROM opportunities %s
		ORDER BY updated_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	opps := []models.OpportunitySummary{}
	for rows.Next() {
		var o models.OpportunitySummary
		var stage, decision string
		if err := rows.Scan(&o.ID, &o.Company, &o.RoleTitle, &stage, &decision, &o.BucketDue, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		o.Stage = models.Stage(stage)
		o.Decision = models.Decision(decision)
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &ListResult{
		Opportunities: opps,
		Total:         total,
		Limit:         params.Limit,
		Offset:        params.Offset,
	}, nil
}

// ListForRefresh pages through every owner's records by id for the bucket sweep.
func (s *Store) ListForRefresh(ctx context.Context, afterID int64, limit int) ([]models.Opportunity, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM opportunities
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, selectCols), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("refresh batch query failed: %w", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("refresh batch scan failed: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	_, err := s.pool.Exec(ctx, "UPDATE opportunities SET jd_embedding = $1 WHERE id = $2", pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("store embedding for %d: %w", id, err)
	}
	return nil
}

// SimilarOpportunities ranks the owner's other records by cosine similarity
// of their JD embeddings.
func (s *Store) SimilarOpportunities(ctx context.Context, ownerID uuid.UUID, id int64, limit int) ([]models.SimilarOpportunity, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.company, o.role_title, o.stage, o.decision, 1 - (o.jd_embedding <=> src.jd_embedding) AS similarity
		FROM opportunities o
		JOIN opportunities src ON src.id = $1 AND src.owner_id = $2
		WHERE o.owner_id = $2
		  AND o.id <> src.id
		  AND o.jd_embedding IS NOT NULL
		  AND src.jd_embedding IS NOT NULL
		ORDER BY o.jd_embedding <=> src.jd_embedding
		LIMIT $3
	`, id, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	out := []models.SimilarOpportunity{}
	for rows.Next() {
		var o models.SimilarOpportunity
		var stage, decision string
		if err := rows.Scan(&o.ID, &o.Company, &o.RoleTitle, &stage, &decision, &o.Similarity); err != nil {
			return nil, fmt.Errorf("similarity scan failed: %w", err)
		}
		o.Stage = models.Stage(stage)
		o.Decision = models.Decision(decision)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) GetStats(ctx context.Context, ownerID uuid.UUID) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total, analyzed, overdue int
	var spend float64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE analysis IS NOT NULL),
		       COUNT(*) FILTER (WHERE next_action_due IS NOT NULL AND next_action_due < NOW()),
		       COALESCE(SUM(estimated_cost_usd), 0)::float8
		FROM opportunities
		WHERE owner_id = $1
	`, ownerID).Scan(&total, &analyzed, &overdue, &spend)
	if err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}
	stats["total"] = total
	stats["analyzed"] = analyzed
	stats["overdue"] = overdue
	stats["estimated_spend_usd"] = spend

	stageCounts, err := s.countBy(ctx, "stage", ownerID)
	if err != nil {
		return nil, err
	}
	stats["stage_counts"] = stageCounts

	decisionCounts, err := s.countBy(ctx, "decision", ownerID)
	if err != nil {
		return nil, err
	}
	stats["decision_counts"] = decisionCounts

	return stats, nil
}

// countBy groups the owner's records by a fixed column name.
func (s *Store) countBy(ctx context.Context, column string, ownerID uuid.UUID) (map[string]int, error) {
	if column != "stage" && column != "decision" {
		return nil, fmt.Errorf("unsupported group column %q", column)
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT %s, COUNT(*) FROM opportunities WHERE owner_id = $1 GROUP BY %s", column, column), ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s counts failed: %w", column, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
