package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/database"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/server"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/storage"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 20 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	cfg := config.Cfg

	logger.L.Info("Smart Trader backend server starting...")

	if len(cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		return errors.New("JWT_SECRET must be at least 32 characters")
	}

	logger.L.Info("Initializing database...", "path", cfg.DatabasePath)
	database.InitDB(cfg.DatabasePath)
	database.RunMigrations()
	defer database.DB.Close()

	store, err := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	images := services.NewCachedImageLoader(store)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ai, err := services.NewAIService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AIInsightRowLimit, images)
	switch {
	case errors.Is(err, services.ErrAIKeyMissing):
		logger.L.Warn("AI features disabled", "reason", err)
	case err != nil:
		return err
	}

	router := server.NewRouter(cfg, server.Deps{
		DB:     database.DB,
		Store:  store,
		Email:  services.NewEmailService(),
		AI:     ai,
		Images: images,
		Events: services.NewSessionEvents(),
	})
	srv := server.NewHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("Server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.L.Error("Server failed", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	logger.L.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.L.Info("Server stopped")
	return nil
}
