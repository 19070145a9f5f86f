package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusportal/go-auth"
	"github.com/campusportal/go-auth/mailer"
	"github.com/campusportal/go-auth/storage/s3store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

const uploadBodyLimit = 10 * 1024 * 1024

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth HTTP server",
		Long: `Start the HTTP server exposing registration, login, logout and the
password reset endpoints, plus a Prometheus metrics listener.`,
		RunE: runServe,
	}
}

type server struct {
	app      *fiber.App
	registry *prometheus.Registry
	closer   io.Closer
}

func runServe(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.LogFormat, cfg.Debug)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.closer.Close(); err != nil {
			logger.Warn("error closing store", "error", err)
		}
	}()

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsListen,
		Handler:           promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("metrics server started", "addr", cfg.MetricsListen)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- oops.With("addr", cfg.MetricsListen).Wrap(err)
		}
	}()
	go func() {
		logger.Info("auth server started", "addr", cfg.Listen)
		if err := srv.app.Listen(cfg.Listen); err != nil {
			errCh <- oops.With("addr", cfg.Listen).Wrap(err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err = <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if serr := srv.app.ShutdownWithContext(shutdownCtx); serr != nil {
		logger.Warn("error stopping auth server", "error", serr)
	}
	if serr := metricsSrv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("error stopping metrics server", "error", serr)
	}

	logger.Info("shutdown complete")
	return err
}

// buildServer wires the store, the auth services and the fiber app
func buildServer(ctx context.Context, cfg Config, logger *slog.Logger) (*server, error) {
	alog := slogLogger{log: logger}

	repo, closer, err := openStore(ctx, cfg, alog)
	if err != nil {
		return nil, err
	}
	repo.MustValidate()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := auth.NewMetrics(registry)

	activity := auth.MultiActivitySink{
		metrics,
		auth.ActivitySinkFunc(func(_ context.Context, e auth.ActivityEvent) error {
			logger.Info("auth activity", "event", string(e.EventType), "user_id", e.UserID, "email", e.Email)
			return nil
		}),
	}

	tokens := auth.NewTokenService([]byte(cfg.Auth.GetSigningKey()), cfg.Auth.GetIssuer(), auth.WithTokenLogger(alog))

	sessions := auth.NewSessionRegistry(repo.Users(), tokens).
		WithTTL(cfg.Auth.GetSessionTTL()).
		WithLogger(alog).
		WithActivitySink(activity)

	var m auth.Mailer = mailer.LogMailer{Logger: alog}
	if cfg.SMTP.Host != "" {
		smtp, err := mailer.NewSMTPMailer(cfg.SMTP, alog)
		if err != nil {
			_ = closer.Close()
			return nil, err
		}
		m = smtp
	}

	resets := auth.NewPasswordResetFlow(repo.Users(), tokens, m).
		WithTTL(cfg.Auth.GetResetTTL()).
		WithBaseURL(cfg.Auth.GetBaseURL()).
		WithSessionRegistry(sessions).
		WithLogger(alog).
		WithActivitySink(activity)

	register := auth.NewRegisterUserHandler(repo, sessions).
		WithPhoneValidation(cfg.PhoneRegion).
		WithLogger(alog).
		WithActivitySink(activity)

	if cfg.S3.Bucket != "" {
		files, err := s3store.New(ctx, cfg.S3)
		if err != nil {
			_ = closer.Close()
			return nil, err
		}
		register.WithFileStore(files)
	}

	app := fiber.New(fiber.Config{
		AppName:               "authd",
		BodyLimit:             uploadBodyLimit,
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Auth.GetBaseURL(),
		AllowCredentials: true,
	}))
	app.Use(metrics.Middleware())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}).Name("healthz")

	auth.RegisterAuthRoutes(app,
		auth.WithControllerConfig(cfg.Auth),
		auth.WithControllerLogger(alog),
		auth.WithControllerDebug(cfg.Debug),
		auth.WithRegisterHandler(register),
		auth.WithSessionRegistry(sessions),
		auth.WithPasswordResetFlow(resets),
	)

	return &server{app: app, registry: registry, closer: closer}, nil
}
