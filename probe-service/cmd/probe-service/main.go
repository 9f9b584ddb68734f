package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/agsys-platform/svclink/internal/publisher"
	"github.com/agsys-platform/svclink/internal/store"
	"github.com/agsys-platform/svclink/pkg/client"
	"github.com/agsys-platform/svclink/pkg/logger"
	"github.com/agsys-platform/svclink/pkg/secrets"
	"github.com/agsys-platform/svclink/pkg/utils"
	"github.com/agsys-platform/svclink/probe-service/internal/api"
	"github.com/agsys-platform/svclink/probe-service/internal/commands"
	"github.com/agsys-platform/svclink/probe-service/internal/relay"
	"github.com/agsys-platform/svclink/probe-service/pkg/config"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	logg := logger.S()
	logg.Info("starting [probe-service]...")

	if err := cfg.Validate(); err != nil {
		logg.Fatalw("invalid configuration", "error", err)
	}
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
	}

	// --- AWS Secrets Manager provider ---
	awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
	}

	// --- Authenticated gateway client (own API key cached in-memory) ---
	opts := []client.Option{client.WithSecretsProvider(awsProvider)}
	if cfg.ThrottleRPS > 0 {
		opts = append(opts, client.WithThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst))
	}
	cli, err := client.New(logger.L(), client.Config{
		ServiceName: cfg.ServiceName,
		Project:     cfg.Project,
		Environment: cfg.Env,
		GatewayURL:  cfg.GatewayURL,
		Region:      cfg.AWSRegion,
		Timeout:     cfg.HTTPTimeout,
		CacheTTL:    cfg.CacheTTL,
	}, opts...)
	if err != nil {
		logg.Fatalw("failed to init gateway client", "error", err)
	}

	stopCleaner := make(chan struct{})
	go cli.StartCacheCleaner(cfg.CleanupFreq, stopCleaner)

	// --- Announce relayable targets ---
	if len(cfg.ProbeTargets) > 0 {
		logg.Infow("probe targets configured", "count", len(cfg.ProbeTargets), "targets", cfg.ProbeTargets)
	} else if discovered, err := cli.DiscoverTargets(ctx); err != nil {
		logg.Warnw("failed to discover targets from AWS Secrets Manager", "error", err)
	} else {
		logg.Infow("discovered relay targets", "count", len(discovered), "targets", discovered)
	}

	// --- Connect to NATS ---
	var (
		nc  *nats.Conn
		pub *publisher.Publisher
	)
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err = publisher.New(nc, cfg.RelaySubject, cfg.Project, cfg.ServiceName)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
	} else {
		logg.Warn("NATS_URL not configured; event publishing disabled")
	}

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Relay service ---
	// Assign through a nil check so a disabled publisher stays a nil
	// interface inside the service.
	var eventPub relay.EventPublisher
	if pub != nil {
		eventPub = pub
	}
	relaySvc := relay.New(logg.Desugar(), cli, st, eventPub,
		cfg.Project, cfg.Env, cfg.ProbeTargets, cfg.StatusTTL)

	// --- Background prober ---
	var prober *relay.Prober
	if cfg.ProbeInterval > 0 {
		prober = relay.NewProber(logg.Desugar(), relaySvc,
			cfg.ProbeInterval, cfg.ProbeTimeout, cfg.ProbePath)
		go prober.Start(ctx)
	} else {
		logg.Warn("PROBE_INTERVAL is 0; background prober disabled")
	}

	// --- Command consumer (optional) ---
	var consumer *commands.Consumer
	if cfg.RabbitURL != "" {
		consumer, err = commands.NewConsumer(cfg.RabbitURL, cfg.Project, relaySvc, logg.Desugar())
		if err != nil {
			logg.Fatalw("failed to connect to RabbitMQ", "error", err)
		}
		if err := consumer.Start(ctx); err != nil {
			logg.Fatalw("failed to start command consumer", "error", err)
		}
	} else {
		logg.Warn("RABBITMQ_URL not configured; command consumer disabled")
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})
	app.Use(api.RequestID())
	app.Use(api.RequestLogger(logger.L()))

	targetValidator := api.NewDiscoveryValidator(relaySvc)
	relayHandler := api.NewRelayHandler(logg.Desugar(), relaySvc, targetValidator)
	statusHandler := api.NewStatusHandler(logg.Desugar(), st, cfg.Project)
	api.RegisterRoutes(app, nc, st, relayHandler, statusHandler, version)

	// Start HTTP server
	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	// --- Main process stays alive until interrupted ---
	logg.Infow("[probe-service] running",
		"gateway", cfg.GatewayURL,
		"env", cfg.Env,
		"probe_interval", cfg.ProbeInterval)

	<-ctx.Done()
	logg.Info("shutting down [probe-service]...")

	close(stopCleaner)
	if prober != nil {
		prober.Stop()
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logg.Warnw("rabbitmq.close_failed", "error", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
	cli.Close()
	logger.Sync()
}
