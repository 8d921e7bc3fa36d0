package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/jd-copilot/internal/ai"
	"github.com/david/jd-copilot/internal/auth"
	"github.com/david/jd-copilot/internal/config"
	"github.com/david/jd-copilot/internal/db"
	"github.com/david/jd-copilot/internal/ingest"
	"github.com/david/jd-copilot/internal/models"
	"github.com/david/jd-copilot/internal/tracker"
)

// OpportunityStore is the persistence the handlers need. *db.Store
// satisfies it.
type OpportunityStore interface {
	CreateOpportunity(ctx context.Context, ownerID uuid.UUID, in db.CreateParams) (*models.Opportunity, error)
	GetOpportunity(ctx context.Context, ownerID uuid.UUID, id int64) (*models.Opportunity, error)
	UpdateOpportunity(ctx context.Context, id int64, patch models.OpportunityPatch) error
	ListOpportunities(ctx context.Context, ownerID uuid.UUID, params db.ListParams) (*db.ListResult, error)
	ListForRefresh(ctx context.Context, afterID int64, limit int) ([]models.Opportunity, error)
	SetEmbedding(ctx context.Context, id int64, embedding []float32) error
	SimilarOpportunities(ctx context.Context, ownerID uuid.UUID, id int64, limit int) ([]models.SimilarOpportunity, error)
	GetStats(ctx context.Context, ownerID uuid.UUID) (map[string]interface{}, error)
}

type Authenticator interface {
	Signup(ctx context.Context, req auth.SignupRequest) (*auth.AuthResponse, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResponse, error)
}

type JDImporter interface {
	Import(ctx context.Context, rawURL string) (*ingest.ImportedJD, error)
}

// Deps are the collaborators a Server is built from. Completer, Embedder
// and Importer may be nil.
type Deps struct {
	Store     OpportunityStore
	Auth      Authenticator
	Completer ai.Completer
	Embedder  ai.Embedder
	Importer  JDImporter
}

type Server struct {
	Echo *echo.Echo

	store     OpportunityStore
	auth      Authenticator
	refresher *tracker.Refresher
	analyzer  *ai.Analyzer
	completer ai.Completer
	embedder  ai.Embedder
	importer  JDImporter

	adminSecret     string
	analysisTimeout time.Duration
	batchSize       int
	now             func() time.Time

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

func NewServer(cfg config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewAppValidator()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := cfg.CORSOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))

	importer := deps.Importer
	if importer == nil {
		importer = ingest.NewImporter(nil)
	}

	timeout := cfg.AnalysisTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	s := &Server{
		Echo:            e,
		store:           deps.Store,
		auth:            deps.Auth,
		refresher:       tracker.NewRefresher(deps.Store),
		analyzer:        ai.NewAnalyzer(deps.Completer),
		completer:       deps.Completer,
		embedder:        deps.Embedder,
		importer:        importer,
		adminSecret:     resolveAdminSecret(cfg.AdminSecret),
		analysisTimeout: timeout,
		batchSize:       cfg.RefreshBatchSize,
		now:             time.Now,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/meta", s.handleMeta)

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected Routes
	protected := api.Group("")
	protected.Use(auth.Middleware)
	protected.GET("/opportunities", s.handleListOpportunities)
	protected.POST("/opportunities", s.handleCreateOpportunity)
	protected.GET("/opportunities/:id", s.handleGetOpportunity)
	protected.PATCH("/opportunities/:id", s.handleUpdateOpportunity)
	protected.POST("/opportunities/:id/qualify", s.handleQualify)
	protected.POST("/opportunities/:id/disqualify", s.handleDisqualify)
	protected.POST("/opportunities/:id/reset", s.handleReset)
	protected.POST("/opportunities/:id/analyze", s.handleAnalyze)
	protected.GET("/opportunities/:id/analysis/export", s.handleExportAnalysis)
	protected.POST("/opportunities/:id/import-jd", s.handleImportJD)
	protected.POST("/opportunities/:id/dq-suggestions", s.handleSuggestDQ)
	protected.GET("/opportunities/:id/similar", s.handleSimilar)
	protected.GET("/stats", s.handleGetStats)

	// Admin Routes
	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/refresh-buckets", s.handleRefreshBuckets)
	admin.GET("/job/:id", s.handleJobStatus)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// Shutdown stops the HTTP server and cancels a running sweep job.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" && s.runningJob.Cancel != nil {
		s.runningJob.Cancel()
	}
	s.jobMu.Unlock()
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleMeta(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"stages":          models.Stages,
		"decisions":       models.Decisions,
		"dq_codes":        tracker.DQCodes,
		"default_rubric":  tracker.DefaultRubric,
		"default_profile": tracker.DefaultProfile,
	})
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp, err := s.auth.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		log.Printf("[auth] signup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp, err := s.auth.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		log.Printf("[auth] login failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, resp)
}

// respondError maps domain errors onto HTTP status codes.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, ingest.ErrInvalidLink):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ai.ErrMissingJD):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Paste the JD text first."})
	case errors.Is(err, ai.ErrMissingCredential):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, ai.ErrInvalidSchema):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		log.Printf("[api] %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminSecret == "" {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		if secretMatches(c.Request().Header.Get("X-Admin-Secret"), s.adminSecret) {
			return next(c)
		}
		parts := strings.Fields(c.Request().Header.Get("Authorization"))
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && secretMatches(parts[1], s.adminSecret) {
			return next(c)
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func secretMatches(given, secret string) bool {
	return given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}

// resolveAdminSecret falls back to a random per-process secret so admin
// routes are never open.
func resolveAdminSecret(configured string) string {
	if secret := strings.TrimSpace(configured); secret != "" {
		return secret
	}

	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		log.Printf("failed to generate ADMIN_SECRET fallback: %v", err)
		return ""
	}
	log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	return base64.RawURLEncoding.EncodeToString(buf)
}

func jobPollPath(id string) string {
	return fmt.Sprintf("/api/v1/admin/job/%s", id)
}
