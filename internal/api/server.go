package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pinnacle/tender-finder/internal/db"
	"github.com/pinnacle/tender-finder/internal/ingest"
	"github.com/pinnacle/tender-finder/internal/models"
	"github.com/pinnacle/tender-finder/internal/runlog"
)

const tenderURLBase = "https://www.mercadopublico.cl/Procurement/Modules/RFB/DetailsAcquisition.aspx?idlicitacion="

type Server struct {
	Store    *db.Store
	Pipeline *ingest.Pipeline
	Echo     *echo.Echo
	DB       *pgxpool.Pool

	// Background refresh tracking
	jobMu      sync.Mutex
	runningJob *refreshJob
	lastLog    *runlog.Log
}

type refreshJob struct {
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

func NewServer(pool *pgxpool.Pool, pipeline *ingest.Pipeline) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow dashboard origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:8501"}
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
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		DB:       pool,
		Store:    db.NewStore(pool),
		Pipeline: pipeline,
		Echo:     e,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleOpportunities)
	api.GET("/opportunities.csv", s.handleOpportunitiesCSV)
	api.GET("/runs", s.handleRuns)
	api.GET("/runlog", s.handleRunLog)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/refresh", s.handleTriggerRefresh)
	admin.GET("/refresh/:id", s.handleRefreshStatus)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// handleOpportunities serves the latest snapshot in the feed envelope the
// dashboard consumes.
func (s *Server) handleOpportunities(c echo.Context) error {
	stats, opps, err := s.Store.LatestSnapshot(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to load snapshot: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	feed := models.Feed{
		FechaCache:    "No disponible",
		Oportunidades: []models.Opportunity{},
	}
	if stats != nil {
		feed.FechaCache = stats.GeneratedAt.Format("02/01/2006 15:04")
	}
	if opps != nil {
		feed.Oportunidades = opps
	}

	return c.JSON(http.StatusOK, feed)
}

// handleOpportunitiesCSV exports the latest snapshot as a spreadsheet
// download. The BOM keeps Excel decoding the accented column names as UTF-8.
func (s *Server) handleOpportunitiesCSV(c echo.Context) error {
	_, opps, err := s.Store.LatestSnapshot(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to load snapshot: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="oportunidades_cenabast.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	if _, err := c.Response().Write([]byte("\xEF\xBB\xBF")); err != nil {
		return err
	}

	w := csv.NewWriter(c.Response())
	header := []string{
		"Tender_id", "Producto de mi Catálogo", "Nombre_Producto Licitación",
		"Descripcion", "Quantity", "Fecha Cierre", "Vencimiento",
		"Nombre Licitación General", "URL",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, o := range opps {
		row := []string{
			o.TenderID, o.CatalogProduct, o.ItemName,
			o.Description, o.Quantity, o.ClosingDate, o.DaysToClose.String(),
			o.TenderName, tenderURLBase + o.TenderID,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Server) handleRuns(c echo.Context) error {
	limit := 10
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	runs, err := s.Store.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		c.Logger().Errorf("Failed to list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if runs == nil {
		runs = []db.RunStats{}
	}

	return c.JSON(http.StatusOK, runs)
}

// handleRunLog exposes the diagnostic trail of the most recent refresh, so
// a skipped tender or a rate-limit streak can be inspected without shell
// access to the server.
func (s *Server) handleRunLog(c echo.Context) error {
	s.jobMu.Lock()
	rl := s.lastLog
	s.jobMu.Unlock()

	if rl == nil {
		return c.JSON(http.StatusOK, []runlog.Entry{})
	}
	return c.JSON(http.StatusOK, rl.Entries())
}

func (s *Server) handleTriggerRefresh(c echo.Context) error {
	job, err := s.TriggerRefresh()
	if err != nil {
		s.jobMu.Lock()
		running := s.runningJob
		s.jobMu.Unlock()
		if running != nil {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":  "A refresh is already running",
				"job_id": running.ID,
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Refresh started",
		"job_id":  job.ID,
		"poll":    fmt.Sprintf("/api/v1/refresh/%s", job.ID),
	})
}

// TriggerRefresh starts a background watch run unless one is in flight.
// The scheduler and the admin endpoint share this entry point.
func (s *Server) TriggerRefresh() (*refreshJob, error) {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		s.jobMu.Unlock()
		return nil, fmt.Errorf("refresh already running")
	}

	// context.WithoutCancel detaches from the HTTP lifecycle; the timeout
	// bounds a run stuck on a slow upstream.
	jobCtx, jobCancel := context.WithTimeout(context.WithoutCancel(context.Background()), 30*time.Minute)

	jobID := newJobID()
	job := &refreshJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()

		res := s.Pipeline.Run(jobCtx)

		s.jobMu.Lock()
		s.lastLog = res.Log
		s.jobMu.Unlock()

		stats := db.RunStats{
			RunID:          res.RunID,
			GeneratedAt:    res.GeneratedAt,
			TendersScanned: res.TendersScanned,
			TendersFailed:  res.TendersFailed,
		}
		if err := s.Store.SaveRun(jobCtx, stats, res.Opportunities); err != nil {
			s.jobMu.Lock()
			job.Status = "failed"
			job.Error = err.Error()
			job.EndedAt = time.Now()
			s.jobMu.Unlock()
			log.Printf("[refresh %s] failed to save snapshot: %v", jobID, err)
			return
		}

		s.jobMu.Lock()
		job.Status = "completed"
		job.EndedAt = time.Now()
		job.Result = map[string]interface{}{
			"run_id":          res.RunID,
			"opportunities":   len(res.Opportunities),
			"tenders_scanned": res.TendersScanned,
			"tenders_failed":  res.TendersFailed,
		}
		s.jobMu.Unlock()
		log.Printf("[refresh %s] completed: %d opportunities from %d tenders",
			jobID, len(res.Opportunities), res.TendersScanned)
	}()

	return job, nil
}

func (s *Server) handleRefreshStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	job := s.runningJob
	s.jobMu.Unlock()

	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	s.jobMu.Lock()
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
	s.jobMu.Unlock()

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func newJobID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return fmt.Sprintf("%x", buf)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
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
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
