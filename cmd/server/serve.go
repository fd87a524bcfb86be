package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bookbotinsight/bookbot/internal/api"
	"github.com/bookbotinsight/bookbot/internal/auth"
	"github.com/bookbotinsight/bookbot/internal/config"
	"github.com/bookbotinsight/bookbot/internal/core"
	"github.com/bookbotinsight/bookbot/internal/logging"
	"github.com/bookbotinsight/bookbot/internal/store"
)

// Session cookies outlive the inactivity timeout; expiry is enforced server side.
const sessionTokenTTL = 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, dotenv, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !dotenv {
		logger.Debug("No .env file found, using process environment")
	}

	backend, err := store.Open(cfg.StoreDriver, cfg.UserDBPath)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}
	defer backend.Close()
	logger.Info("User store ready", zap.String("driver", cfg.StoreDriver), zap.String("path", cfg.UserDBPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := core.NewSessionManager(cfg.SessionTimeout, logger)
	go sessions.Run(ctx, max(sessions.Timeout()/2, time.Second))
	logger.Info("Session manager started", zap.Duration("inactivity_timeout", sessions.Timeout()))

	var model core.Generator
	var unavailable error
	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	switch {
	case errors.Is(err, core.ErrMissingAPIKey):
		logger.Warn("GOOGLE_GEMINI_KEY not set, questions will be rejected")
		unavailable = err
	case err != nil:
		logger.Error("Failed to initialize Gemini model", zap.Error(err))
		unavailable = err
	default:
		defer llmService.Close()
		model = llmService
		logger.Info("Gemini model ready", zap.String("model", llmService.ModelName()))
	}

	chatService := core.NewChatService(model, sessions, logger)
	if unavailable != nil {
		chatService.SetUnavailableReason(unavailable)
	}

	secret, err := sessionSecret(cfg.SessionSecret, logger)
	if err != nil {
		return err
	}

	apiHandler := api.NewAPIHandler(api.HandlerDeps{
		Accounts:       core.NewAccountService(backend, sessions, logger),
		Chat:           chatService,
		Documents:      core.NewDocumentService(sessions, logger),
		Sessions:       sessions,
		Tokens:         auth.NewTokenIssuer(secret, sessionTokenTTL),
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	router := api.NewRouter(apiHandler, logger)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  60 * time.Second, // uploads can be large
		WriteTimeout: 90 * time.Second, // model calls can take time
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting gracefully")
	return nil
}

// sessionSecret returns the configured signing key, or a random one that
// invalidates all cookies on restart.
func sessionSecret(configured string, logger *zap.Logger) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	logger.Warn("SESSION_SECRET not set, using a random secret for this process")
	return secret, nil
}
