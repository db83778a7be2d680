package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-gateway/internal/adapters/db/memory"
	"whatsapp-gateway/internal/adapters/db/postgres"
	"whatsapp-gateway/internal/adapters/provider/cloudapi"
	"whatsapp-gateway/internal/adapters/queue/rabbitmq"
	"whatsapp-gateway/internal/breaker"
	"whatsapp-gateway/internal/config"
	"whatsapp-gateway/internal/dispatch"
	"whatsapp-gateway/internal/health"
	"whatsapp-gateway/internal/logging"
	"whatsapp-gateway/internal/middleware"
	"whatsapp-gateway/internal/ports"
	"whatsapp-gateway/internal/ratelimit"
	"whatsapp-gateway/internal/retry"
	"whatsapp-gateway/internal/transport"
	"whatsapp-gateway/internal/webhook"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	conf := config.FromEnv()
	log := logging.New(conf.LogLevel)

	if err := run(conf, log); err != nil {
		log.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(conf config.Config, log *slog.Logger) error {
	// ── Storage collaborator ─────────────────────────────────────────────────
	var store ports.MessageStore
	if conf.DatabaseURL != "" {
		pg, err := postgres.New(conf.DatabaseURL)
		if err != nil {
			return errors.New("failed to connect to postgres: " + err.Error())
		}
		defer pg.Close()
		store = pg
	} else {
		log.Warn("no DATABASE_URL configured, using in-memory message store")
		store = memory.New()
	}

	// ── Async send path (optional) ───────────────────────────────────────────
	var publisher ports.JobPublisher
	if conf.AMQPURL != "" {
		pub, err := rabbitmq.NewPublisher(conf.AMQPURL)
		if err != nil {
			return errors.New("failed to connect to rabbitmq: " + err.Error())
		}
		defer pub.Close()
		publisher = pub
	}

	// ── Reliability layer ────────────────────────────────────────────────────
	limiter := ratelimit.NewLimiter(conf.RateLimitMax, conf.RateLimitWindow)
	brk := breaker.New(conf.BreakerThreshold, conf.BreakerCooldown, log)
	retrier := retry.NewManager(conf.MaxRetries, conf.RetryBaseDelay, log)
	monitor := health.NewMonitor()

	// ── Core components ──────────────────────────────────────────────────────
	client := cloudapi.New(conf.ProviderBaseURL, conf.AccessToken, conf.PhoneNumberID, conf.ProviderTimeout)
	credentials := conf.AccessToken != "" && conf.PhoneNumberID != ""

	dispatcher := dispatch.NewDispatcher(
		client, store, limiter, brk, retrier, monitor, log,
		conf.PhoneNumberID, credentials, conf.ProviderTimeout,
	)
	processor := webhook.NewProcessor(limiter, store, nil, dispatcher, monitor, log)

	// ── HTTP surface ─────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:               "webhook-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           120 * time.Second,
		ServerHeader:          "",
		BodyLimit:             1 * 1024 * 1024,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${method} ${path} ${latency}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.CORS())
	app.Use(middleware.RateLimit(200, time.Minute))

	handler := transport.NewHandler(processor, dispatcher, publisher, monitor, brk, transport.Config{
		VerifyToken:             conf.VerifyToken,
		AppSecret:               conf.AppSecret,
		AccessTokenConfigured:   conf.AccessToken != "",
		PhoneNumberIDConfigured: conf.PhoneNumberID != "",
	}, log)
	handler.Register(app)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("webhook-api started", "addr", conf.HTTPAddr)
		if err := app.Listen(conf.HTTPAddr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return errors.New("failed to shutdown gracefully: " + err.Error())
	}

	log.Info("webhook-api stopped gracefully")
	return nil
}
