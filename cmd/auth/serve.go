package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/auth_service/internal/config"
	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/httpserver"
	"github.com/Skotchmaster/auth_service/internal/mail"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/ratelimit"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/pkg/db"
	loggingmw "github.com/Skotchmaster/auth_service/pkg/middleware/logging"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, l, err := bootstrap(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer sqlDB.Close()

	m := metrics.New()
	store := &repo.GormRepo{DB: gdb}

	signer, err := session.NewSigner(cfg.JWTSecret)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	var (
		publisher events.Publisher = events.Nop{}
		transport mail.Transport   = mail.LogTransport{Logger: l}
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers)
		defer producer.Close()
		publisher = producer
		transport = mail.KafkaTransport{Publisher: producer}
		l.Info("kafka_enabled", "brokers", cfg.KafkaBrokers)
	} else if cfg.Production() {
		l.Warn("mail_transport_not_configured", "transport", "log")
	}
	outbox := &mail.Outbox{Transport: transport, From: cfg.FromEmail, OnFailure: m.MailFailed}
	userEvents := events.NewAsync(publisher, events.DefaultQueueSize, events.DefaultPublishTimeout)
	defer userEvents.Close()

	limiter, closeLimiter, err := newLimiter(ctx, cfg, m, l)
	if err != nil {
		return err
	}
	defer closeLimiter()

	policies, err := cfg.Policies()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	cookies := session.DefaultCookies(cfg.CookieSecure)
	svc := &service.AuthService{
		Repo:     store,
		Sessions: signer,
		Mailer:   outbox,
		Links:    mail.Links{BaseURL: cfg.AppURL},
		Events:   userEvents,
		Metrics:  m,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(l))
	e.Use(echomw.Recover())

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc, Cookies: cookies, AppURL: cfg.AppURL},
		Session: &middleware.Session{
			Validator: &session.Validator{Signer: signer, Users: store, Interval: cfg.RevalidateInterval},
			Cookies:   cookies,
			Metrics:   m,
		},
		Limiter:  limiter,
		Policies: policies,
		Metrics:  m,
		CSRF:     middleware.CSRFConfig{AllowedOrigins: []string{cfg.AppURL}},
		Ready:    sqlDB.PingContext,
	})

	errCh := make(chan error, 1)
	go func() {
		l.Info("http_listening", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return oops.Code("HTTP_START_FAILED").Wrap(err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		l.Error("echo_shutdown_failed", "error", err)
	}
	outbox.Wait()
	l.Info("shutdown_complete")
	return nil
}

// newLimiter builds the configured backend. The returned func releases it.
func newLimiter(ctx context.Context, cfg *config.Config, m *metrics.Metrics, l *slog.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimit.Backend == config.BackendRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.RedisAddr).Wrap(err)
		}
		l.Info("rate_limit_backend", "backend", "redis", "addr", cfg.RedisAddr)
		return ratelimit.NewRedisLimiter(client, "auth:ratelimit:", nil), func() { _ = client.Close() }, nil
	}

	mem := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{
		CleanupInterval: cfg.RateLimit.CleanupInterval,
		Retention:       cfg.RateLimit.Retention,
		Registerer:      m.Registry,
	})
	mem.Start()
	l.Info("rate_limit_backend", "backend", "memory")
	return mem, mem.Stop, nil
}
