package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/david/tender-intel/internal/auth"
	"github.com/david/tender-intel/internal/db"
	"github.com/david/tender-intel/internal/observability/metrics"
	"github.com/david/tender-intel/internal/scan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	Store        *db.Store
	AuthService  *auth.Service
	Echo         *echo.Echo
	DB           *pgxpool.Pool
	Orchestrator *scan.Orchestrator

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

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool, orchestrator *scan.Orchestrator, scanMetrics *metrics.ScanMetrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		DB:           pool,
		Store:        db.NewStore(pool),
		AuthService:  auth.NewService(pool),
		Echo:         e,
		Orchestrator: orchestrator,
	}

	s.routes(scanMetrics)
	return s
}

func (s *Server) routes(scanMetrics *metrics.ScanMetrics) {
	s.Echo.GET("/health", s.handleHealth)
	if scanMetrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(scanMetrics.Handler()))
	}

	api := s.Echo.Group("/api/v1")
	api.GET("/tenders", s.handleListTenders)
	api.GET("/tenders/:id", s.handleGetTender)
	api.GET("/critical-dates", s.handleCriticalDates)
	api.GET("/renewals", s.handleRenewals)
	api.GET("/competitors", s.handleCompetitors)
	api.GET("/stats", s.handleGetStats)
	api.GET("/report", s.handleReport)

	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	protected := api.Group("")
	protected.Use(auth.Middleware)
	protected.GET("/alerts", s.handleListAlerts)
	protected.POST("/alerts/:id/ack", s.handleAckAlert)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/scan", s.handleTriggerScan)
	admin.GET("/runs", s.handleListRuns)
	admin.GET("/job/:id", s.handleJobStatus)
	admin.POST("/complete-stale", s.handleCompleteStale)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrOperatorExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListTenders(c echo.Context) error {
	params := db.ListParams{
		Query:  c.QueryParam("q"),
		Source: c.QueryParam("source"),
		Status: c.QueryParam("status"),
		Stage:  c.QueryParam("stage"),
		SortBy: c.QueryParam("sort"),
	}
	if v := c.QueryParam("agency_name"); v != "" {
		params.AgencyName = splitCSV(v)
	}
	if v := c.QueryParam("service_type"); v != "" {
		params.ServiceType = splitCSV(v)
	}
	if v, err := strconv.Atoi(c.QueryParam("min_score")); err == nil && v > 0 {
		params.MinScore = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_value"), 64); err == nil && v > 0 {
		params.MinValue = v
	}
	if v, err := strconv.Atoi(c.QueryParam("closing_days")); err == nil && v > 0 {
		params.ClosingDays = v
	}
	if c.QueryParam("awarded") == "true" {
		params.AwardedOnly = true
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 100 {
		params.Limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		params.Offset = v
	}

	result, err := s.Store.ListTenders(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list tenders: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetTender(c echo.Context) error {
	tender, err := s.Store.GetTender(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, tender)
}

func (s *Server) handleCriticalDates(c echo.Context) error {
	days := 30
	if v, err := strconv.Atoi(c.QueryParam("days")); err == nil && v > 0 && v <= 365 {
		days = v
	}
	dates, err := s.Store.UpcomingCriticalDates(c.Request().Context(), days)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"days": days, "critical_dates": dates})
}

func (s *Server) handleRenewals(c echo.Context) error {
	months := 12
	if v, err := strconv.Atoi(c.QueryParam("months")); err == nil && v > 0 && v <= 60 {
		months = v
	}
	renewals, err := s.Store.ListRenewals(c.Request().Context(), months)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"months": months, "renewals": renewals})
}

func (s *Server) handleCompetitors(c echo.Context) error {
	limit := 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	competitors, err := s.Store.ListCompetitors(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, competitors)
}

func (s *Server) handleListAlerts(c echo.Context) error {
	limit := 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	alerts, err := s.Store.ListOpenAlerts(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, alerts)
}

func (s *Server) handleAckAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert ID"})
	}
	if err := s.Store.AcknowledgeAlert(c.Request().Context(), id, time.Now().UTC()); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "acknowledged"})
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

// handleReport assembles the morning briefing: headline stats, the threat
// landscape, upcoming critical dates and open alerts in one payload.
func (s *Server) handleReport(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := s.Store.GetStats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	threats, err := s.Store.ThreatDistribution(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	dates, err := s.Store.UpcomingCriticalDates(ctx, 14)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	alerts, err := s.Store.ListOpenAlerts(ctx, 20)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	renewals, err := s.Store.ListRenewals(ctx, 6)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"generated_at":        time.Now().UTC(),
		"stats":               stats,
		"threat_distribution": threats,
		"critical_dates_14d":  dates,
		"open_alerts":         alerts,
		"renewals_6mo":        renewals,
	})
}

func (s *Server) handleTriggerScan(c echo.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A scan job is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from the HTTP lifecycle but preserves
	// trace values. The timeout bounds a hung portal.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()
		run, err := s.Orchestrator.RunScan(jobCtx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			slog.Error("scan job failed", "job_id", jobID, "err", err)
			return
		}
		job.Status = "completed"
		job.Result = run
		slog.Info("scan job completed", "job_id", jobID, "run_id", run.RunID, "saved", run.ItemsSaved)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Scan job started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 20
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	runs, err := s.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, runs)
}

// handleCompleteStale marks tenders whose closing date passed long ago as
// completed so they stop appearing in the tracked set.
func (s *Server) handleCompleteStale(c echo.Context) error {
	days := 90
	if v, err := strconv.Atoi(c.QueryParam("days")); err == nil && v > 0 && v <= 730 {
		days = v
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	updated, err := s.Store.MarkCompleted(c.Request().Context(), cutoff)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Stale tenders completed",
		"cutoff":  cutoff,
		"updated": updated,
	})
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		slog.Warn("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
