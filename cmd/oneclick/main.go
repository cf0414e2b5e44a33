package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/oneclick-dev/oneclick/db"
	"github.com/oneclick-dev/oneclick/internal/auth"
	"github.com/oneclick-dev/oneclick/internal/config"
	"github.com/oneclick-dev/oneclick/internal/handlers"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/observability"
	"github.com/oneclick-dev/oneclick/internal/router"
	"github.com/oneclick-dev/oneclick/internal/services"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.New(cfg.LogMode)

	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, appLog); err != nil {
		appLog.Error("Server exited with error", "error", err)
		appLog.Sync()
		os.Exit(1)
	}

	appLog.Sync()
}

func run(cfg *config.Config, appLog *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.Init(ctx, appLog, cfg.Env)

	conn, err := db.Connect(cfg.DatabaseURL)

	if err != nil {
		return err
	}

	defer func() {
		if err := db.Close(conn); err != nil {
			appLog.Warn("Failed to close database", "error", err)
		}
	}()

	if err := db.Migrate(conn); err != nil {
		return err
	}

	tokens := auth.NewTokenService(cfg.JWTSecret)
	cookies := auth.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.IsProduction()}
	provider := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL())

	users := services.NewUserDirectory(conn, appLog)
	surveys := services.NewSurveyDirectory(conn, appLog)
	session := services.NewSession(tokens, users, appLog)
	extractor := services.NewDeepSeekClient(services.DeepSeekConfig{
		APIKey:  cfg.DeepSeekAPIKey,
		URL:     cfg.DeepSeekURL,
		Model:   cfg.DeepSeekModel,
		Timeout: cfg.ExtractionTimeout,
	}, appLog)
	generator := services.NewSurveyGenerator(extractor, surveys, extractor.Model(), appLog)

	if cfg.DeepSeekAPIKey == "" {
		appLog.Warn("DEEPSEEK_API_KEY not set, uploads will use the fallback survey")
	}

	r := router.NewRouter(router.Handlers{
		Health:    handlers.NewHealthHandler(conn),
		Auth:      handlers.NewAuthHandler(provider, session, tokens, cookies, cfg.AppURL, appLog),
		Surveys:   handlers.NewSurveyHandler(generator, surveys, session, cfg.MaxUploadBytes, appLog),
		Dashboard: handlers.NewDashboardHandler(surveys, session, appLog),
	}, router.Options{
		Tokens:         tokens,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            appLog,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLog.Info("Server listening", "port", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return shutdownTracing(shutdownCtx)
	})

	return g.Wait()
}
