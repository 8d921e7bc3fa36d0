package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/david/jd-copilot/internal/ai"
	"github.com/david/jd-copilot/internal/ingest"
	"github.com/david/jd-copilot/internal/models"
	"github.com/david/jd-copilot/internal/tracker"
)

type analyzeRequest struct {
	Rubric  string `json:"rubric" validate:"max=20000"`
	Profile string `json:"profile" validate:"max=20000"`
}

type dqSuggestionRequest struct {
	Rubric string `json:"rubric" validate:"max=20000"`
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// llmFailure maps analysis errors. Sentinels keep their own status;
// anything else is an upstream model failure.
func llmFailure(c echo.Context, prefix string, err error) error {
	switch {
	case errors.Is(err, ai.ErrMissingJD), errors.Is(err, ai.ErrMissingCredential),
		errors.Is(err, ai.ErrInvalidSchema), errors.Is(err, models.ErrInvalidInput):
		return respondError(c, err)
	}
	return c.JSON(http.StatusBadGateway, map[string]string{"error": fmt.Sprintf("%s: %v", prefix, err)})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	opp, err := s.loadOpportunity(c)
	if err != nil {
		return respondError(c, err)
	}

	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.analysisTimeout)
	defer cancel()

	result, err := s.analyzer.Run(ctx, ai.AnalysisRequest{
		Company:   opp.Company,
		RoleTitle: opp.RoleTitle,
		JDText:    opp.JDText,
		Rubric:    orDefault(req.Rubric, tracker.DefaultRubric),
		Profile:   orDefault(req.Profile, tracker.DefaultProfile),
	})
	if err != nil {
		log.Printf("[analyze] opportunity %d failed: %v", opp.ID, err)
		return llmFailure(c, "Analysis failed", err)
	}

	cost := result.Cost()
	stage := models.StageAnalyzed
	patch := models.OpportunityPatch{
		Stage:            &stage,
		Analysis:         result.Analysis,
		AnalysisModel:    &result.Model,
		PromptTokens:     &result.PromptTokens,
		CompletionTokens: &result.CompletionTokens,
		TotalTokens:      &result.TotalTokens,
		EstimatedCostUSD: &cost,
	}
	if err := s.store.UpdateOpportunity(c.Request().Context(), opp.ID, patch); err != nil {
		return respondError(c, err)
	}
	log.Printf("[analyze] opportunity %d: model=%s tokens=%d cost=$%.6f", opp.ID, result.Model, result.TotalTokens, cost)

	s.storeEmbedding(c.Request().Context(), opp)

	updated, err := s.store.GetOpportunity(c.Request().Context(), opp.OwnerID, opp.ID)
	if err != nil {
		return respondError(c, err)
	}
	s.refreshBucket(c, updated)
	return c.JSON(http.StatusOK, updated)
}

// storeEmbedding indexes the JD for similarity search when an embedder is
// configured. Failures only log.
func (s *Server) storeEmbedding(ctx context.Context, opp *models.Opportunity) {
	if s.embedder == nil || strings.TrimSpace(opp.JDText) == "" {
		return
	}
	vec, err := s.embedder.GenerateEmbedding(ctx, opp.JDText)
	if err != nil {
		log.Printf("[analyze] embedding for %d skipped: %v", opp.ID, err)
		return
	}
	if err := s.store.SetEmbedding(ctx, opp.ID, vec); err != nil {
		log.Printf("[analyze] storing embedding for %d failed: %v", opp.ID, err)
	}
}

func (s *Server) handleExportAnalysis(c echo.Context) error {
	opp, err := s.loadOpportunity(c)
	if err != nil {
		return respondError(c, err)
	}
	if opp.Analysis == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No analysis to export yet"})
	}

	data, err := json.MarshalIndent(opp.Analysis, "", "  ")
	if err != nil {
		return respondError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="analysis_%d.json"`, opp.ID))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (s *Server) handleImportJD(c echo.Context) error {
	opp, err := s.loadOpportunity(c)
	if err != nil {
		return respondError(c, err)
	}
	if strings.TrimSpace(opp.JDLink) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Set a JD link first."})
	}

	imported, err := s.importer.Import(c.Request().Context(), opp.JDLink)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidLink) {
			return respondError(c, err)
		}
		log.Printf("[jd-import] opportunity %d: %v", opp.ID, err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": fmt.Sprintf("JD import failed: %v", err)})
	}

	updated, err := s.applyPatch(c, opp, models.OpportunityPatch{JDText: &imported.Text})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"opportunity": updated,
		"import": map[string]interface{}{
			"canonical_url": imported.CanonicalURL,
			"title":         imported.Title,
			"format":        imported.Format,
			"truncated":     imported.Truncated,
			"chars":         len([]rune(imported.Text)),
			"fetched_at":    imported.FetchedAt,
		},
	})
}

func (s *Server) handleSuggestDQ(c echo.Context) error {
	opp, err := s.loadOpportunity(c)
	if err != nil {
		return respondError(c, err)
	}

	var req dqSuggestionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.analysisTimeout)
	defer cancel()

	suggestion, err := ai.SuggestDQCodes(ctx, s.completer, opp.Analysis, orDefault(req.Rubric, tracker.DefaultRubric), tracker.DQCodes)
	if err != nil {
		return llmFailure(c, "DQ suggestion failed", err)
	}
	return c.JSON(http.StatusOK, suggestion)
}
