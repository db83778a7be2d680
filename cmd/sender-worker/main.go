package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"whatsapp-gateway/internal/adapters/db/memory"
	"whatsapp-gateway/internal/adapters/db/postgres"
	"whatsapp-gateway/internal/adapters/provider/cloudapi"
	"whatsapp-gateway/internal/adapters/queue/rabbitmq"
	"whatsapp-gateway/internal/breaker"
	"whatsapp-gateway/internal/config"
	"whatsapp-gateway/internal/dispatch"
	"whatsapp-gateway/internal/health"
	"whatsapp-gateway/internal/logging"
	"whatsapp-gateway/internal/ports"
	"whatsapp-gateway/internal/ratelimit"
	"whatsapp-gateway/internal/retry"
)

func main() {
	conf := config.FromEnv()
	log := logging.New(conf.LogLevel)

	// ── Adapters ─────────────────────────────────────────────────────────────
	var store ports.MessageStore
	if conf.DatabaseURL != "" {
		pg, err := postgres.New(conf.DatabaseURL)
		if err != nil {
			log.Error("connect postgres", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	} else {
		log.Warn("no DATABASE_URL configured, using in-memory message store")
		store = memory.New()
	}

	consumer, err := rabbitmq.NewConsumer(conf.AMQPURL, log)
	if err != nil {
		log.Error("connect rabbitmq consumer", "err", err)
		os.Exit(1)
	}
	defer consumer.Close()

	client := cloudapi.New(conf.ProviderBaseURL, conf.AccessToken, conf.PhoneNumberID, conf.ProviderTimeout)

	// ── Reliability layer + dispatcher ───────────────────────────────────────
	limiter := ratelimit.NewLimiter(conf.RateLimitMax, conf.RateLimitWindow)
	brk := breaker.New(conf.BreakerThreshold, conf.BreakerCooldown, log)
	retrier := retry.NewManager(conf.MaxRetries, conf.RetryBaseDelay, log)
	monitor := health.NewMonitor()

	credentials := conf.AccessToken != "" && conf.PhoneNumberID != ""
	dispatcher := dispatch.NewDispatcher(
		client, store, limiter, brk, retrier, monitor, log,
		conf.PhoneNumberID, credentials, conf.ProviderTimeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("sender-worker started")

	if err := consumer.Consume(ctx, func(ctx context.Context, job ports.SendJob) error {
		var result dispatch.SendResult
		switch job.Kind {
		case "template":
			result = dispatcher.SendTemplate(ctx, job.To, job.TemplateName, job.LanguageCode, job.Components)
		default:
			result = dispatcher.SendText(ctx, job.To, job.Body, job.ReplyToID)
		}
		if !result.Success {
			return result.Err
		}
		log.Info("queued message delivered",
			"to", job.To,
			"correlation_id", job.CorrelationID,
			"provider_id", result.MessageID,
		)
		return nil
	}); err != nil && ctx.Err() == nil {
		log.Error("consumer error", "err", err)
		os.Exit(1)
	}

	log.Info("shutting down sender-worker")
}
