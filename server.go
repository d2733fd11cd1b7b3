package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staffprobot/payroll_backend/config"
	"github.com/staffprobot/payroll_backend/models"
	"github.com/staffprobot/payroll_backend/utils"
	"github.com/staffprobot/payroll_backend/workflow"
)

const defaultPort = "8080"

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// ShiftClosedHint is the payload the scheduling side publishes when a shift
// reaches a terminal state. A hint only narrows the reconcile window; losing
// one is harmless because the scheduled watermark run covers everything.
type ShiftClosedHint struct {
	OwnerId       string    `json:"owner_id"`
	ShiftId       int       `json:"shift_id"`
	ClosedAt      time.Time `json:"closed_at"`
	CorrelationId string    `json:"correlation_id"`
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// opsAuthorized gates the internal ops endpoints on a shared token. When
// OPS_ADMIN_TOKEN is unset the endpoints are disabled entirely.
func opsAuthorized(c *gin.Context) bool {
	want := os.Getenv("OPS_ADMIN_TOKEN")
	if want == "" {
		return false
	}
	got := c.GetHeader("x-ops-token")
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func shiftClosedPubSubHandler(job *workflow.ReconcileJob) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "shiftClosedPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "shiftClosedPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var hint ShiftClosedHint
		if err := json.Unmarshal(msg.Message.Data, &hint); err != nil {
			config.LogError(logger, "server.go", "shiftClosedPubSubHandler", "Unmarshal hint", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if hint.OwnerId == "" || hint.ShiftId == 0 || hint.ClosedAt.IsZero() {
			config.LogError(logger, "server.go", "shiftClosedPubSubHandler", "invalid hint (missing required fields)", hint, fmt.Errorf("owner_id/shift_id/closed_at required"))
			c.Status(http.StatusNoContent)
			return
		}

		correlationID := hint.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationID)
		ctx = utils.SetOwnerIdInContext(ctx, hint.OwnerId)

		// Narrow window around the hinted close. The existence guard makes it
		// safe that the scheduled run will re-cover the same span later.
		from := hint.ClosedAt.Add(-time.Minute)
		to := time.Now().UTC().Add(time.Minute)
		stats, err := job.RunScoped(ctx, hint.OwnerId, from, to)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "shiftClosedPubSubHandler",
				"owner_id":       hint.OwnerId,
				"shift_id":       hint.ShiftId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("hint reconcile failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}
		if stats.Errored > 0 {
			// Partial failure: retry the hint, guarded postings stay single.
			c.Status(http.StatusInternalServerError)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

type reconcileTriggerRequest struct {
	OwnerId string     `json:"owner_id"`
	From    *time.Time `json:"from"`
	To      *time.Time `json:"to"`
}

func reconcileTriggerHandler(job *workflow.ReconcileJob) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		if !opsAuthorized(c) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req reconcileTriggerRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		// Best-effort lock so two operators clicking at once do not double the
		// DB load; posting stays correct either way.
		lock, err := utils.OwnerLock(c.Request.Context(), req.OwnerId, "reconcile_manual", time.Minute)
		if err == redislock.ErrNotObtained {
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
			return
		} else if err != nil {
			config.LogError(logger, "server.go", "reconcileTriggerHandler", "obtain lock", req.OwnerId, err)
		}
		defer func() {
			if lock != nil {
				_ = lock.Release(c.Request.Context())
			}
		}()

		var stats *workflow.ReconcileStats
		if req.From != nil && req.To != nil {
			stats, err = job.RunScoped(c.Request.Context(), req.OwnerId, *req.From, *req.To)
		} else {
			stats, err = job.Run(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "stats": stats})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": stats})
	}
}

func recentRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !opsAuthorized(c) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		runs, err := models.RecentRuns(config.GetDB(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func visibleReasonsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId := c.Query("owner_id")
		reasons, err := workflow.ListVisibleReasons(config.GetDB(), config.GetLogger(), ownerId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reasons": reasons})
	}
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, ginErr := range c.Errors {
			logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"status": c.Writer.Status(),
			}).Error(ginErr.Error())
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until the DB is ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("x-ops-token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	job := workflow.NewReconcileJob(nil, logger)

	r.POST("/pubsub/shift-closed", shiftClosedPubSubHandler(job))
	r.GET("/cancellation-reasons", visibleReasonsHandler())
	// Ops tooling (admin only).
	r.POST("/internal/ops/reconcile/run", reconcileTriggerHandler(job))
	r.GET("/internal/ops/reconcile/runs", recentRunsHandler())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()

	db := config.GetDB()
	job.DB = db
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.Migrate(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	// Outbox dispatcher publishes AFTER commit.
	go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)

	reconcileInterval := time.Duration(config.IntFromEnv("RECONCILE_INTERVAL_SECONDS", 300)) * time.Second
	go job.RunLoop(workerCtx, reconcileInterval)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	log.Println("Server started successfully on port " + port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while draining.
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
