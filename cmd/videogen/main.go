package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/videogen-ai/videogen/app/controllers"
	"github.com/videogen-ai/videogen/internal/pkg/archive"
	"github.com/videogen-ai/videogen/internal/pkg/auth"
	"github.com/videogen-ai/videogen/internal/pkg/billing"
	"github.com/videogen-ai/videogen/internal/pkg/cache"
	"github.com/videogen-ai/videogen/internal/pkg/config"
	"github.com/videogen-ai/videogen/internal/pkg/credits"
	"github.com/videogen-ai/videogen/internal/pkg/database"
	"github.com/videogen-ai/videogen/internal/pkg/env"
	"github.com/videogen-ai/videogen/internal/pkg/jobqueue"
	"github.com/videogen-ai/videogen/internal/pkg/mail"
	"github.com/videogen-ai/videogen/internal/pkg/notify"
	"github.com/videogen-ai/videogen/internal/pkg/projects"
	"github.com/videogen-ai/videogen/internal/pkg/ratelimit"
	"github.com/videogen-ai/videogen/internal/pkg/realtime"
	"github.com/videogen-ai/videogen/internal/pkg/router"
	"github.com/videogen-ai/videogen/internal/pkg/security"
	"github.com/videogen-ai/videogen/internal/pkg/statistics"
	"github.com/videogen-ai/videogen/internal/pkg/workflow"
)

const shutdownTimeout = 10 * time.Second

func main() {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}
	log.SetLevel(parseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := NewApplication(ctx, cfg)
	if err != nil {
		log.Fatalf("[Startup] %v", err)
	}
	app := application.App

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port))
	})
	g.Go(func() error {
		return application.Hub.Run(gctx)
	})
	if application.Jobs != nil {
		g.Go(func() error {
			return application.Jobs.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("[Startup] Shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}

// Application is the HTTP app plus the background loops main has to run.
type Application struct {
	App  *fiber.App
	Hub  *realtime.Hub
	Jobs *jobqueue.Queue
}

// NewApplication opens the backing stores and builds the services.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	db, err := database.SetupDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	rdb := cache.SetupCache(cfg.Cache)

	// mails go through the job queue when Redis answers
	var mailer mail.Mailer = mail.NewSMTPMailer(cfg.SMTP)
	var jobs *jobqueue.Queue
	if rdb != nil && rdb.Ping(ctx).Err() == nil {
		jobs = jobqueue.NewQueue(rdb, jobqueue.DefaultWorkers)
		mailer = jobqueue.NewMailer(jobs, mailer)
	}

	dispatcher, err := notify.NewDispatcher(mailer, cfg.FrontendURL, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("notifications: %w", err)
	}
	tokens := security.NewTokenService(cfg.Auth.JWTSecret)
	ledger := credits.NewLedger(db)

	var processor billing.Processor
	var stripeProcessor *billing.StripeProcessor
	if cfg.Stripe.SecretKey != "" {
		stripeProcessor = billing.NewStripeProcessor(cfg.Stripe)
	}
	switch cfg.Payments.Provider {
	case "stripe":
		processor = stripeProcessor
	default:
		processor = billing.NewLinkClient(cfg.Link)
	}
	billingService := billing.NewServiceFromDB(db, processor, billing.Options{
		SuccessURL: cfg.FrontendLink("/payment/success"),
		CancelURL:  cfg.FrontendLink("/payment/cancel"),
		Cache:      cache.NewStore(rdb),
		Notifier:   dispatcher,
	})

	hub := realtime.NewHub(rdb)
	statsService := statistics.NewService(db, ledger, cache.NewStore(rdb))
	projectService := projects.NewService(db, ledger, workflow.NewClient(cfg.Workflow.BaseURL, cfg.Workflow.Timeout), projects.Options{
		RefundOnDelegationFailure: cfg.Workflow.RefundOnFail,
		Notifier:                  dispatcher,
		Links:                     archive.NewLinker(ctx, cfg),
		Publisher:                 hub,
		Stats:                     statsService,
	})
	authService := auth.NewService(db, tokens, dispatcher)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: 4 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.FrontendURL,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
	}))

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	controllers.InitializeControllers(controllers.Services{
		DB:                db,
		Cache:             rdb,
		Auth:              authService,
		Billing:           billingService,
		Ledger:            ledger,
		Projects:          projectService,
		Statistics:        statsService,
		Jobs:              jobs,
		Stripe:            stripeProcessor,
		LinkWebhookSecret: cfg.Link.WebhookSecret,
	})

	router.InstallRouter(app, router.Dependencies{
		Config:         cfg,
		Authenticator:  authService,
		Tokens:         tokens,
		Hub:            hub,
		LimiterStorage: ratelimit.NewStorage(rdb),
	})

	return &Application{App: app, Hub: hub, Jobs: jobs}, nil
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
