package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/livechat/internal/chat"
	"github.com/xiaot623/livechat/internal/config"
	"github.com/xiaot623/livechat/internal/escalation"
	"github.com/xiaot623/livechat/internal/hub"
	"github.com/xiaot623/livechat/internal/logging"
	"github.com/xiaot623/livechat/internal/repository"
	"github.com/xiaot623/livechat/internal/service"
	httpserver "github.com/xiaot623/livechat/internal/transport/http"
	"github.com/xiaot623/livechat/policy"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("chat server failed")
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Str("prefix", cfg.APIPrefix).
		Str("database", cfg.DatabaseURL).
		Msg("starting chat server")

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize policy engine
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.EscalationPolicyFile)
	if err != nil {
		return err
	}

	// Initialize escalation channels
	var channels []escalation.Broadcaster
	cleanup := func() {}
	if cfg.BroadcastersFile != "" {
		fileCfg, err := escalation.LoadFile(cfg.BroadcastersFile)
		if err != nil {
			return err
		}
		channels, cleanup, err = escalation.Build(fileCfg)
		if err != nil {
			return err
		}
	}
	defer cleanup()

	dispatcher := escalation.NewDispatcher(channels,
		escalation.WithMarker(cfg.EscalationMarker),
		escalation.WithTimeout(cfg.EscalationTimeout),
		escalation.WithConcurrency(cfg.EscalationConcurrency),
		escalation.WithPolicy(policyEngine),
		escalation.WithRecorder(db),
	)
	log.Info().Strs("channels", dispatcher.Channels()).Str("marker", cfg.EscalationMarker).Msg("escalation configured")

	// Initialize service
	h := hub.NewHub()
	registry := chat.NewRegistry(
		chat.WithPublisher(h),
		chat.WithInternalMarker(cfg.InternalMarker),
	)
	svc := service.New(registry, dispatcher, h, db, cfg)

	go svc.RunRetentionMonitor(ctx)

	e := httpserver.NewServer(cfg, svc)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("addr", cfg.Addr()).Msg("chat API started")

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info().Msg("shutting down chat server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("failed to shutdown server gracefully")
	}
	svc.WaitEscalations()

	log.Info().Msg("chat server stopped")
	return nil
}
