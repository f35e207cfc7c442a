// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/internal/config"
	"github.com/capitalize-ai/callerid-relay/internal/devauth"
	"github.com/capitalize-ai/callerid-relay/internal/events"
	"github.com/capitalize-ai/callerid-relay/internal/handler"
	"github.com/capitalize-ai/callerid-relay/internal/phone"
	"github.com/capitalize-ai/callerid-relay/internal/ratelimit"
	"github.com/capitalize-ai/callerid-relay/internal/relay"
	"github.com/capitalize-ai/callerid-relay/internal/telegram"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
	"github.com/capitalize-ai/callerid-relay/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting API server", zap.String("target", cfg.TargetBot))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "callerid-relay", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	plan, err := phone.NewPlan(cfg.PhoneCountryCode, cfg.PhoneMobilePrefix)
	if err != nil {
		return fmt.Errorf("invalid phone plan: %w", err)
	}

	// Connect to Telegram
	tgClient, err := telegram.Connect(ctx, telegram.Config{
		AppID:         cfg.APIID,
		AppHash:       cfg.APIHash,
		SessionFile:   cfg.SessionFile(),
		SessionString: cfg.SessionString,
		PollInterval:  cfg.PollInterval,
	}, log)
	if err != nil {
		return err
	}
	defer tgClient.Close()

	readiness := []handler.Check{{Name: "telegram", Ready: tgClient.IsConnected}}

	// Lookup events
	var sink relay.EventSink = events.Noop{}
	natsCfg := events.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}
	if natsCfg.Enabled() {
		natsClient, err := events.Connect(ctx, natsCfg, log)
		if err != nil {
			return err
		}
		defer natsClient.Close()

		publisher := events.NewPublisher(natsClient)
		if err := publisher.EnsureStream(ctx); err != nil {
			return err
		}
		sink = publisher
		readiness = append(readiness, handler.Check{Name: "nats", Ready: natsClient.IsConnected})
	}

	// Developer mode limiter
	var counter ratelimit.Counter = ratelimit.NewMemoryCounter(cfg.RateLimitCacheSize)
	if cfg.RedisURL != "" {
		redisCounter, err := ratelimit.NewRedisCounter(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisCounter.Close()
		counter = redisCounter
	}

	rl := relay.New(tgClient.Transport(), cfg.TargetBot, log,
		relay.WithPlan(plan),
		relay.WithEvents(sink),
	)

	devAuth := handler.NewDevAuthHandler(cfg.DevPassword, devauth.NewService(cfg.SecretKey, cfg.DevTokenTTL), cfg.CookieSecure, log)

	router := handler.NewRouter(handler.RouterConfig{
		Lookup:            handler.NewLookupHandler(rl, cfg.BatchMaxItems, cfg.ServerWriteTimeout, cfg.IsDevelopment(), log),
		DevAuth:           devAuth,
		Health:            handler.NewHealthHandler(tgClient, devAuth, log, readiness...),
		TrustProxy:        cfg.TrustProxy,
		APIBase:           cfg.FrontendAPIBase,
		FrontendOrigin:    cfg.FrontendOrigin,
		APIKey:            cfg.APIKey,
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		DevAuthLimiter:    ratelimit.New(counter),
		DevAuthPerMinute:  cfg.DevAuthPerMinute,
		Logger:            log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
