package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinscribe/clinscribe/internal/config"
	"github.com/clinscribe/clinscribe/internal/domain/audit"
	"github.com/clinscribe/clinscribe/internal/domain/fact"
	"github.com/clinscribe/clinscribe/internal/domain/note"
	"github.com/clinscribe/clinscribe/internal/domain/session"
	"github.com/clinscribe/clinscribe/internal/domain/validation"
	"github.com/clinscribe/clinscribe/internal/domain/writeback"
	"github.com/clinscribe/clinscribe/internal/platform/db"
	"github.com/clinscribe/clinscribe/internal/platform/middleware"
	"github.com/clinscribe/clinscribe/internal/platform/queue"
	"github.com/clinscribe/clinscribe/internal/platform/telemetry"
)

func main() {
	root := &cobra.Command{
		Use:   "clinscribe-server",
		Short: "Clinical documentation pipeline: ingest, compose, validate, write back",
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API server",
			RunE:  func(cmd *cobra.Command, args []string) error { return runServe(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Run the fact-extraction worker",
			RunE:  func(cmd *cobra.Command, args []string) error { return runWorker(cmd.Context()) },
		},
		migrateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE:  func(cmd *cobra.Command, args []string) error { return runMigrate(cmd.Context(), true) },
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE:  func(cmd *cobra.Command, args []string) error { return runMigrate(cmd.Context(), false) },
		},
	)
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

// app holds every wired service so serve and worker assemble once.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   interface{ Close() }

	queue        queue.FactExtractionQueue
	sessionSvc   *session.Service
	factSvc      *fact.Service
	noteSvc      *note.Service
	validateSvc  *validation.Service
	writebackSvc *writeback.Service
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var (
		sessionRepo session.Repository
		segmentRepo session.SegmentRepository
		factRepo    fact.Repository
		noteRepo    note.Repository
		valRepo     validation.Repository
		jobRepo     writeback.Repository
		auditRepo   audit.Repository
		txRunner    db.TxRunner
	)

	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.pool = pool
		sessionRepo = session.NewRepoPG(pool)
		segmentRepo = session.NewSegmentRepoPG(pool)
		factRepo = fact.NewRepoPG(pool)
		noteRepo = note.NewRepoPG(pool)
		valRepo = validation.NewRepoPG(pool)
		jobRepo = writeback.NewRepoPG(pool)
		auditRepo = audit.NewRepoPG(pool)
		txRunner = db.NewTxRunner(pool)
	} else {
		sessionRepo = session.NewRepoMem()
		segmentRepo = session.NewSegmentRepoMem()
		factRepo = fact.NewRepoMem()
		noteRepo = note.NewRepoMem()
		valRepo = validation.NewRepoMem()
		jobRepo = writeback.NewRepoMem()
		auditRepo = audit.NewRepoMem()
		txRunner = db.NewPassthroughTxRunner()
	}

	if cfg.RedisURL != "" {
		q, err := queue.NewRedisFactExtractionQueue(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.queue = q
	} else {
		a.queue = queue.NewMemoryFactExtractionQueue()
	}

	a.sessionSvc = session.NewService(sessionRepo, segmentRepo, a.queue, auditRepo, logger)
	a.factSvc = fact.NewService(factRepo, segmentRepo, sessionRepo, auditRepo, logger)
	a.noteSvc = note.NewService(noteRepo, a.factSvc, a.sessionSvc, auditRepo, logger)
	a.validateSvc = validation.NewService(valRepo, a.noteSvc, auditRepo, logger)
	a.writebackSvc = writeback.NewService(jobRepo, a.noteSvc, a.validateSvc, auditRepo, txRunner, cfg.WritebackMaxAttempts, logger)
	return a, nil
}

func (a *app) close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(telemetry.Handler()))

	api := e.Group("/api/v1")
	session.NewHandler(a.sessionSvc).RegisterRoutes(api)
	fact.NewHandler(a.factSvc).RegisterRoutes(api)
	note.NewHandler(a.noteSvc).RegisterRoutes(api)
	validation.NewHandler(a.validateSvc).RegisterRoutes(api)

	operator := api.Group("/operator", middleware.OperatorAuth(middleware.OperatorAuthConfig{
		APIKey:    cfg.APIKey,
		JWTSecret: cfg.OperatorJWTSecret,
		Dev:       cfg.IsDev(),
	}, logger))
	writeback.NewHandler(a.writebackSvc).RegisterRoutes(api, operator)

	// With the in-memory queue there is no separate worker process to drain
	// it, so extraction runs inside the server.
	if _, embedded := a.queue.(*queue.MemoryFactExtractionQueue); embedded {
		go workerLoop(ctx, a, logger)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
	if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runWorker(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg).With().Str("component", "worker").Logger()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	logger.Info().Msg("fact-extraction worker starting")
	workerLoop(ctx, a, logger)
	logger.Info().Msg("fact-extraction worker stopped")
	return nil
}

func workerLoop(ctx context.Context, a *app, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := a.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("dequeue fact extraction job")
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			// In-memory queue never blocks; avoid a busy loop.
			if _, mem := a.queue.(*queue.MemoryFactExtractionQueue); mem {
				time.Sleep(200 * time.Millisecond)
			}
			continue
		}

		if err := a.factSvc.ExtractSession(ctx, job); err != nil {
			logger.Error().Err(err).Str("session_id", job.SessionID).Msg("fact extraction failed")
		}
	}
}

func runMigrate(ctx context.Context, up bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	m := db.NewMigrator(pool, "migrations")
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return err
	}

	if up {
		applied, err := m.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("applied %d migration(s)\n", applied)
		return nil
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied " + s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Printf("%03d %-40s %s\n", s.Version, s.Name, state)
	}
	return nil
}
