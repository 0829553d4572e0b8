package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plannerhq/vendorbook/config"
	"github.com/plannerhq/vendorbook/pkg/api/handlers"
	"github.com/plannerhq/vendorbook/pkg/auth"
	"github.com/plannerhq/vendorbook/pkg/backfill"
	"github.com/plannerhq/vendorbook/pkg/cache"
	"github.com/plannerhq/vendorbook/pkg/candidates"
	"github.com/plannerhq/vendorbook/pkg/database"
	"github.com/plannerhq/vendorbook/pkg/detection"
	"github.com/plannerhq/vendorbook/pkg/email"
	"github.com/plannerhq/vendorbook/pkg/enrichment"
	"github.com/plannerhq/vendorbook/pkg/export"
	"github.com/plannerhq/vendorbook/pkg/jobs"
	"github.com/plannerhq/vendorbook/pkg/livesync"
	"github.com/plannerhq/vendorbook/pkg/logger"
	"github.com/plannerhq/vendorbook/pkg/mailbox"
	"github.com/plannerhq/vendorbook/pkg/metrics"
	custommiddleware "github.com/plannerhq/vendorbook/pkg/middleware"
	"github.com/plannerhq/vendorbook/pkg/projects"
	"github.com/plannerhq/vendorbook/pkg/proposals"
	"github.com/plannerhq/vendorbook/pkg/scorer"
	"github.com/plannerhq/vendorbook/pkg/scrape"
	"github.com/plannerhq/vendorbook/pkg/signals"
	"github.com/plannerhq/vendorbook/pkg/slack"
	"github.com/plannerhq/vendorbook/pkg/store"
	"github.com/plannerhq/vendorbook/pkg/store/memory"
	"github.com/plannerhq/vendorbook/pkg/store/postgres"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
	"github.com/plannerhq/vendorbook/pkg/testdata"
	"github.com/plannerhq/vendorbook/pkg/threads"
)

// demoOwnerID is the account the fake mailbox provider seeds in
// development mode.
const demoOwnerID = 1

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.APIEnvironment,
			TracesSampleRate: 1.0, // Capture 100% of transactions in development, adjust in production
			AttachStacktrace: true,
			BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
				// Filter out sensitive data or customize events here
				return event
			},
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.APIEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Structured request logger
	appLog := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize storage backend
	var st store.Store
	switch cfg.StorageBackend {
	case "memory":
		st = memory.New()
		log.Printf("✅ In-memory store initialized (data is not persisted)")
	default:
		db, err := database.NewClient(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer db.Close()

		st, err = postgres.New(db.DB)
		if err != nil {
			log.Fatalf("❌ Failed to prepare database schema: %v", err)
		}
		log.Printf("✅ Postgres store initialized")
	}

	// Initialize Redis cache. Every consumer tolerates a nil client, so
	// a missing Redis only costs caching, token revocation and webhook
	// nudge persistence.
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, continuing without cache: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var revocations *auth.RevocationList
	if redisClient != nil {
		revocations = auth.NewRevocationList(redisClient)
	}

	// Initialize mailbox provider
	var mail mailbox.Client
	switch cfg.MailboxProvider {
	case "fake":
		fake := mailbox.NewFakeClient()
		seeded := testdata.SeedDemoMailbox(fake, demoOwnerID, "planner@vendorbook.local", "Demo Planner")
		mail = fake
		log.Printf("🎭 Fake mailbox provider active (%d messages seeded for owner %d)", seeded, demoOwnerID)
	default:
		if cfg.GmailCredentialsJSON == "" {
			log.Fatalf("❌ GMAIL_CREDENTIALS_JSON is required when MAILBOX_PROVIDER=gmail")
		}
		gmail, err := mailbox.NewGmailClient([]byte(cfg.GmailCredentialsJSON), &mailbox.FileTokenProvider{Dir: cfg.GmailTokenDir})
		if err != nil {
			log.Fatalf("❌ Failed to initialize Gmail client: %v", err)
		}
		mail = gmail
		log.Printf("✅ Gmail provider initialized (tokens from %s)", cfg.GmailTokenDir)
	}

	// Initialize relevance scorer
	var classifier scorer.Classifier
	if cfg.OpenAIAPIKey != "" {
		classifier = scorer.NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.ScorerTimeout, log.Default())
		log.Printf("✅ OpenAI scorer initialized (model: %s)", cfg.OpenAIModel)
	} else {
		classifier = scorer.NewFakeClassifier()
		log.Printf("ℹ️  No OpenAI key configured, candidates will queue for manual review")
	}

	var summarizer *scrape.Summarizer
	if cfg.ScrapeDomainsByDefault {
		summarizer = scrape.NewSummarizer(15 * time.Second)
		log.Printf("✅ Website summarizer enabled for enrichment")
	}

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Initialize services
	supplierService := suppliers.NewService(st, st)
	projectService := projects.NewService(st)
	candidateService := candidates.NewService(st, supplierService, redisClient)
	signalService := signals.NewService(st, redisClient)
	detectionEngine := detection.NewEngine(cfg.DetectionMinConfidence)
	proposalService := proposals.NewService(st, supplierService, cfg.ProposalTTL)
	threadService := threads.NewService(st, st)
	backfillService := backfill.NewService(st, st, candidateService, mail, redisClient, cfg.BackfillPageSize, cfg.BackfillMaxConsecFails)
	enrichmentService := enrichment.NewService(candidateService, st, classifier, summarizer, cfg.AutoImportThreshold, cfg.EnrichmentBatchSize, log.Default())
	liveSyncService := livesync.NewService(mail, st, st, signalService, detectionEngine, proposalService, supplierService, redisClient, cfg.LiveSyncWindow, log.Default())
	exportService := export.NewService(st, candidateService, supplierService, cfg.ExportStoragePath, log.Default())
	emailService := email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.FrontendURL, cfg.SendGridAPIKey)

	// Initialize Slack service (if webhook URL configured)
	var slackService *slack.Service
	if cfg.SlackWebhookURL != "" {
		slackService = slack.NewService(slack.NewWebhookClient(cfg.SlackWebhookURL))
		log.Printf("✅ Slack notifications enabled")
	} else {
		slackService = slack.NewService(nil)
		log.Printf("ℹ️  Slack notifications disabled (no webhook URL configured)")
	}

	// Initialize cron manager for the pipeline background jobs
	cronManager := jobs.NewManager(cfg, jobs.Deps{
		Runs:       st,
		Backfill:   backfillService,
		Enrichment: enrichmentService,
		Proposals:  proposalService,
		LiveSync:   liveSyncService,
		Suppliers:  supplierService,
		Projects:   projectService,
		Mailer:     emailService,
		Slack:      slackService,
		Metrics:    prometheusMetrics,
	}, log.Default())
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Initialize rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	webhookRateLimiter := custommiddleware.NewRateLimiter(100, 20) // provider nudges can burst

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				appLog.Error("request", "method", c.Request().Method, "uri", v.URI, "status", v.Status, "error", v.Error)
			} else {
				appLog.Info("request", "method", c.Request().Method, "uri", v.URI, "status", v.Status)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Repanic after capturing to let the Recover middleware handle it
		}))
	}

	// Prometheus metrics middleware
	e.Use(prometheusMetrics.Middleware())

	// CORS with restricted origins
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())

	// Global rate limiting (default 60 req/min)
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health check endpoints (public)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "VendorBook API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}

		cacheStatus := "disabled"
		if redisClient != nil {
			cacheStatus = "up"
			if _, err := redisClient.Redis.Ping(ctx).Result(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]any{
					"status": "unhealthy",
					"cache":  "down",
				})
			}
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    cacheStatus,
		})
	})

	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{"ready": false})
		}
		return c.JSON(http.StatusOK, map[string]any{"ready": true})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes group with versioning middleware
	v1 := e.Group("/api/v1")
	v1.Use(custommiddleware.APIVersionMiddleware(custommiddleware.CurrentAPIVersion))

	// Version info endpoint (public)
	v1.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, custommiddleware.VersionInfo(custommiddleware.CurrentAPIVersion))
	})

	// Ping endpoint (public)
	v1.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"message": "pong",
		})
	})

	// Initialize handlers
	backfillHandler := handlers.NewBackfillHandler(backfillService)
	candidateHandler := handlers.NewCandidateHandler(candidateService, enrichmentService)
	proposalHandler := handlers.NewProposalHandler(proposalService, prometheusMetrics)
	threadHandler := handlers.NewThreadHandler(threadService)
	statusHandler := handlers.NewStatusHandler(signalService)
	supplierHandler := handlers.NewSupplierHandler(supplierService)
	exportHandler := handlers.NewExportHandler(exportService, prometheusMetrics)
	mailboxWebhookHandler := handlers.NewMailboxWebhookHandler(liveSyncService)

	// Provider webhook (shared-secret header, not JWT)
	v1.POST("/webhooks/mailbox", mailboxWebhookHandler.Notify,
		custommiddleware.WebhookSecret(cfg.MailboxWebhookSecret),
		webhookRateLimiter.RateLimitMiddleware())

	// Export downloads accept the token as a query parameter so plain
	// links work
	v1.GET("/exports/:id/download", exportHandler.Download,
		custommiddleware.JWTFromQueryOrHeader(cfg.JWTSecret, revocations))

	// Protected routes (require JWT, revoked tokens rejected)
	protected := v1.Group("")
	protected.Use(custommiddleware.JWTMiddlewareWithRevocation(cfg.JWTSecret, revocations))
	{
		// Backfill run routes
		backfillGroup := protected.Group("/backfill/runs")
		{
			backfillGroup.POST("", backfillHandler.Start)
			backfillGroup.GET("", backfillHandler.List)
			backfillGroup.GET("/:id", backfillHandler.Get)
			backfillGroup.POST("/:id/tick", backfillHandler.Tick)
			backfillGroup.POST("/:id/cancel", backfillHandler.Cancel)
		}

		// Candidate review queue routes
		candidatesGroup := protected.Group("/candidates")
		{
			candidatesGroup.GET("", candidateHandler.List)
			candidatesGroup.GET("/counts", candidateHandler.Counts)
			candidatesGroup.POST("/bulk-accept", candidateHandler.BulkAccept)
			candidatesGroup.POST("/bulk-dismiss", candidateHandler.BulkDismiss)
			candidatesGroup.POST("/enrich", candidateHandler.Enrich)
			candidatesGroup.GET("/:id", candidateHandler.Get)
			candidatesGroup.POST("/:id/accept", candidateHandler.Accept)
			candidatesGroup.POST("/:id/dismiss", candidateHandler.Dismiss)
			candidatesGroup.POST("/:id/merge", candidateHandler.Merge)
		}

		// Status proposal routes
		proposalsGroup := protected.Group("/proposals")
		{
			proposalsGroup.GET("", proposalHandler.List)
			proposalsGroup.POST("/:id/resolve", proposalHandler.Resolve)
		}

		// Thread linking routes
		threadsGroup := protected.Group("/threads")
		{
			threadsGroup.GET("/needs-link", threadHandler.NeedsLink)
			threadsGroup.POST("/:id/link", threadHandler.Link)
			threadsGroup.POST("/:id/dismiss", threadHandler.Dismiss)
		}

		// Pipeline status catalog routes
		statusesGroup := protected.Group("/statuses")
		{
			statusesGroup.GET("", statusHandler.List)
			statusesGroup.PUT("/:slug/enabled", statusHandler.SetEnabled)
		}

		// Supplier routes
		suppliersGroup := protected.Group("/suppliers")
		{
			suppliersGroup.GET("", supplierHandler.List)
			suppliersGroup.GET("/:id", supplierHandler.Get)
		}

		// Export routes
		exportsGroup := protected.Group("/exports")
		{
			exportsGroup.POST("/candidates", exportHandler.CreateCandidates)
			exportsGroup.POST("/suppliers", exportHandler.CreateSuppliers)
			exportsGroup.GET("", exportHandler.List)
			exportsGroup.GET("/:id", exportHandler.Get)
		}
	}

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 VendorBook API starting on %s", address)
	log.Printf("📝 Log level: %s, Log format: %s", cfg.LogLevel, cfg.LogFormat)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	log.Printf("🔐 Mailbox provider: %s, storage: %s", cfg.MailboxProvider, cfg.StorageBackend)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Stop cron jobs
	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	// Gracefully shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
