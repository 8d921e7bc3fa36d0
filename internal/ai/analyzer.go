package ai

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/david/jd-copilot/internal/models"
)

const Temperature = 0.2

var (
	ErrMissingCredential = errors.New("OPENAI_API_KEY is not set")
	ErrMissingJD         = errors.New("jd text is empty")
	ErrInvalidSchema     = errors.New("model returned invalid schema")
)

//go:embed prompts/jd_analysis.schema.json
var analysisSchema []byte

const day0System = `You are an assistant that analyzes job descriptions for fit, risks, and interview prep.
You must return valid JSON that matches the provided schema. No markdown. No extra keys.
Be specific, avoid fluff, and include evidence quotes from the JD.
If information is missing, put it in unknowns / what_to_verify rather than guessing.
`

// Completion is one model response with its token usage.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	// Local is set by self-hosted backends that cost nothing per token.
	Local bool
}

// Completer sends a system and user prompt to a model in JSON mode.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (Completion, error)
}

type AnalysisRequest struct {
	Company   string
	RoleTitle string
	JDText    string
	Rubric    string
	Profile   string
}

type AnalysisResult struct {
	Analysis         *models.JDAnalysis `json:"analysis"`
	Model            string             `json:"model"`
	PromptTokens     int                `json:"prompt_tokens"`
	CompletionTokens int                `json:"completion_tokens"`
	TotalTokens      int                `json:"total_tokens"`
	Local            bool               `json:"local"`
}

type Analyzer struct {
	completer Completer
	validate  *validator.Validate
}

// NewAnalyzer accepts a nil completer; Run then reports ErrMissingCredential.
func NewAnalyzer(completer Completer) *Analyzer {
	return &Analyzer{
		completer: completer,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Run performs a single Day 0 analysis. Failures are returned as-is; there
// is no retry.
func (a *Analyzer) Run(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if strings.TrimSpace(req.JDText) == "" {
		return nil, ErrMissingJD
	}
	if a.completer == nil {
		return nil, ErrMissingCredential
	}

	resp, err := a.completer.Complete(ctx, day0System, BuildDay0Prompt(req))
	if err != nil {
		return nil, err
	}

	analysis, err := a.parseAnalysis(resp.Text)
	if err != nil {
		return nil, err
	}

	return &AnalysisResult{
		Analysis:         analysis,
		Model:            resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
		Local:            resp.Local,
	}, nil
}

// BuildDay0Prompt renders the user prompt for a Day 0 analysis.
func BuildDay0Prompt(req AnalysisRequest) string {
	return fmt.Sprintf(`
Company: %s
Role Title: %s

USER RUBRIC (core qualities to score 1-5):
%s

USER PROFILE (resume summary, strengths, story bank):
%s

JOB DESCRIPTION (raw):
%s

Return JSON ONLY matching this JSON Schema:
%s
`, req.Company, req.RoleTitle, req.Rubric, req.Profile, req.JDText, schemaHint())
}

func schemaHint() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, analysisSchema); err != nil {
		return string(analysisSchema)
	}
	return buf.String()
}
