package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/audit"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/cache"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/config"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/consent"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/guard"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/handler"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/orchestrator"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatcher HTTP server with the cache sweeper",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr config)")
	rootCmd.AddCommand(serveCmd)
}

// buildFactory selects the handler backend: an OpenAI-compatible endpoint
// when configured, canned static responses otherwise.
func buildFactory(cfg *config.Config) handler.Factory {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIBaseURL == "" && apiKey == "" {
		log.Warn().Msg("no LLM backend configured — serving canned static responses")
		return handler.StaticFactory(0)
	}
	return func(kind route.Kind) (handler.Handler, error) {
		if cfg.OpenAIBaseURL != "" {
			return handler.NewOpenAIHandlerWithBaseURL(kind, apiKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
		}
		return handler.NewOpenAIHandler(kind, apiKey, cfg.OpenAIModel), nil
	}
}

// buildConsentService selects the grant backend for the configured mode.
func buildConsentService(cfg *config.Config) (consent.Service, func(), error) {
	if cfg.ConsentMode == config.ConsentModeAllowAll {
		log.Warn().Msg("consent_mode=allow-all — every purpose is granted, demo use only")
		return consent.AllowAllService{}, func() {}, nil
	}
	store, err := consent.NewStoreService(cfg.ConsentDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("initializing consent store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	g, err := guard.NewDefault(cfg.ThreatPatterns)
	if err != nil {
		return fmt.Errorf("compiling threat patterns: %w", err)
	}
	router, err := route.NewDefault(cfg.RoutingKeywords)
	if err != nil {
		return fmt.Errorf("compiling routing keywords: %w", err)
	}
	policy, err := consent.NewPurposePolicy(ctx)
	if err != nil {
		return fmt.Errorf("compiling consent policy: %w", err)
	}

	svc, closeSvc, err := buildConsentService(cfg)
	if err != nil {
		return err
	}
	defer closeSvc()
	gate := consent.NewGate(svc, policy)

	handlerCache := cache.New(buildFactory(cfg))
	sweeper, err := cache.NewSweeper(handlerCache, cfg.SweepSchedule, cfg.IdleEviction)
	if err != nil {
		return fmt.Errorf("configuring cache sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	auditStore, err := audit.NewStore(cfg.AuditDBPath())
	if err != nil {
		return fmt.Errorf("initializing audit store: %w", err)
	}
	defer auditStore.Close()
	recorder := audit.NewRecorder(auditStore, cfg.AuditQueueSize)
	defer recorder.Close()

	orch := orchestrator.New(g, gate, router, handlerCache, recorder, orchestrator.Config{
		MaxMessageLen:  cfg.MaxMessageLen,
		MaxAttempts:    cfg.MaxAttempts,
		HandlerTimeout: cfg.HandlerTimeout,
	})

	srv := server.NewServer(orch,
		server.WithAuditStore(auditStore),
		server.WithRateLimiter(server.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)),
	)

	addr := cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("consent_mode", cfg.ConsentMode).
		Bool("llm_backend", cfg.OpenAIBaseURL != "" || os.Getenv("OPENAI_API_KEY") != "").
		Msg("chatbuddy_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
