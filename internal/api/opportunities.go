package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/jd-copilot/internal/auth"
	"github.com/david/jd-copilot/internal/db"
	"github.com/david/jd-copilot/internal/ingest"
	"github.com/david/jd-copilot/internal/models"
	"github.com/david/jd-copilot/internal/tracker"
)

type createOpportunityRequest struct {
	Company   string `json:"company" validate:"required,max=200"`
	RoleTitle string `json:"role_title" validate:"required,max=200"`
	JDLink    string `json:"jd_link" validate:"max=2048"`
	JDText    string `json:"jd_text"`
}

type updateOpportunityRequest struct {
	Company   *string `json:"company" validate:"omitempty,max=200"`
	RoleTitle *string `json:"role_title" validate:"omitempty,max=200"`
	JDLink    *string `json:"jd_link" validate:"omitempty,max=2048"`
	JDText    *string `json:"jd_text"`
	Stage     *string `json:"stage" validate:"omitempty,oneof=NEW ANALYZED DECISION_PENDING QUALIFIED_PREP DQ APPLIED INTERVIEWING CLOSED"`
	Decision  *string `json:"decision" validate:"omitempty,oneof=PENDING QUALIFIED UNQUALIFIED"`
}

type disqualifyRequest struct {
	Codes []string `json:"codes"`
	Note  string   `json:"note" validate:"max=2000"`
}

func ownerAndID(c echo.Context) (uuid.UUID, int64, error) {
	ownerID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return uuid.Nil, 0, err
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return ownerID, 0, fmt.Errorf("%w: invalid opportunity id", models.ErrInvalidInput)
	}
	return ownerID, id, nil
}

// loadOpportunity reads the owner's record named by the :id path param.
func (s *Server) loadOpportunity(c echo.Context) (*models.Opportunity, error) {
	ownerID, id, err := ownerAndID(c)
	if err != nil {
		return nil, err
	}
	return s.store.GetOpportunity(c.Request().Context(), ownerID, id)
}

// refreshBucket brings the stored bucket up to date. A failed write is
// logged and the record is still served.
func (s *Server) refreshBucket(c echo.Context, opp *models.Opportunity) {
	if _, err := s.refresher.Refresh(c.Request().Context(), opp, s.now().UTC()); err != nil {
		log.Printf("[bucket] refresh for opportunity %d failed: %v", opp.ID, err)
	}
}

// applyPatch writes patch to opp, re-reads it and refreshes its bucket.
func (s *Server) applyPatch(c echo.Context, opp *models.Opportunity, patch models.OpportunityPatch) (*models.Opportunity, error) {
	ctx := c.Request().Context()
	if err := s.store.UpdateOpportunity(ctx, opp.ID, patch); err != nil {
		return nil, err
	}
	updated, err := s.store.GetOpportunity(ctx, opp.OwnerID, opp.ID)
	if err != nil {
		return nil, err
	}
	s.refreshBucket(c, updated)
	return updated, nil
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	ownerID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	stage := strings.ToUpper(strings.TrimSpace(c.QueryParam("stage")))
	if stage != "" && !models.Stage(stage).Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown stage %q", stage)})
	}
	decision := strings.ToUpper(strings.TrimSpace(c.QueryParam("decision")))
	if decision != "" && !models.Decision(decision).Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown decision %q", decision)})
	}

	limit := 50
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	result, err := s.store.ListOpportunities(c.Request().Context(), ownerID, db.ListParams{
		Stage:    stage,
		Decision: decision,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleCreateOpportunity(c echo.Context) error {
	ownerID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	var req createOpportunityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	link, err := normalizeLink(req.JDLink)
	if err != nil {
		return respondError(c, err)
	}

	opp, err := s.store.CreateOpportunity(c.Request().Context(), ownerID, db.CreateParams{
		Company:   req.Company,
		RoleTitle: req.RoleTitle,
		JDLink:    link,
		JDText:    ingest.NormalizeJDText(req.JDText),
	})
	if err != nil {
		return respondError(c, err)
	}

	s.refreshBucket(c, opp)
	return c.JSON(http.StatusCreated, opp)
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	opp, err := s.loadOpportunity(c)
	if err != nil {
		return respondError(c, err)
	}
	s.refreshBucket(c, opp)
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleUpdateOpportunity(c echo.Context) error {
	opp, err := s.loadOpportunity(c)
	if err != nil {
		return respondError(c, err)
	}

	var req updateOpportunityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	patch, err := req.toPatch()
	if err != nil {
		return respondError(c, err)
	}

	updated, err := s.applyPatch(c, opp, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (r updateOpportunityRequest) toPatch() (models.OpportunityPatch, error) {
	var patch models.OpportunityPatch

	if r.Company != nil {
		v := strings.TrimSpace(*r.Company)
		if v == "" {
			return patch, fmt.Errorf("%w: company cannot be empty", models.ErrInvalidInput)
		}
		patch.Company = &v
	}
	if r.RoleTitle != nil {
		v := strings.TrimSpace(*r.RoleTitle)
		if v == "" {
			return patch, fmt.Errorf("%w: role title cannot be empty", models.ErrInvalidInput)
		}
		patch.RoleTitle = &v
	}
	if r.JDLink != nil {
		link, err := normalizeLink(*r.JDLink)
		if err != nil {
			return patch, err
		}
		patch.JDLink = &link
	}
	if r.JDText != nil {
		text := ingest.NormalizeJDText(*r.JDText)
		patch.JDText = &text
	}
	if r.Stage != nil {
		stage := models.Stage(*r.Stage)
		patch.Stage = &stage
	}
	if r.Decision != nil {
		decision := models.Decision(*r.Decision)
		patch.Decision = &decision
	}
	return patch, nil
}

// normalizeLink canonicalizes a non-empty JD link. An empty link clears it.
func normalizeLink(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	link, err := ingest.ValidateJDLink(raw)
	if err != nil {
		return "", err
	}
	return ingest.CanonicalizeURL(link), nil
}

func (s *Server) handleQualify(c echo.Context) error {
	opp, err := s.loadOpportunity(c)
	if err != nil {
		return respondError(c, err)
	}

	decision := models.DecisionQualified
	updated, err := s.applyPatch(c, opp, models.OpportunityPatch{Decision: &decision})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDisqualify(c echo.Context) error {
	opp, err := s.loadOpportunity(c)
	if err != nil {
		return respondError(c, err)
	}

	var req disqualifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	reasons, err := tracker.BuildDQReasons(req.Codes, req.Note)
	if err != nil {
		return respondError(c, err)
	}

	decision := models.DecisionUnqualified
	updated, err := s.applyPatch(c, opp, models.OpportunityPatch{Decision: &decision, DQReasons: reasons})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleReset(c echo.Context) error {
	opp, err := s.loadOpportunity(c)
	if err != nil {
		return respondError(c, err)
	}

	decision := models.DecisionPending
	updated, err := s.applyPatch(c, opp, models.OpportunityPatch{Decision: &decision, ClearDQReasons: true})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleSimilar(c echo.Context) error {
	ownerID, id, err := ownerAndID(c)
	if err != nil {
		return respondError(c, err)
	}
	if _, err := s.store.GetOpportunity(c.Request().Context(), ownerID, id); err != nil {
		return respondError(c, err)
	}

	limit := 5
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 20 {
		limit = l
	}

	similar, err := s.store.SimilarOpportunities(c.Request().Context(), ownerID, id, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, similar)
}

func (s *Server) handleGetStats(c echo.Context) error {
	ownerID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	stats, err := s.store.GetStats(c.Request().Context(), ownerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
