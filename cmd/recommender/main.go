package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greattalk/feed-recommender/internal/cache"
	"github.com/greattalk/feed-recommender/internal/config"
	"github.com/greattalk/feed-recommender/internal/metrics"
	"github.com/greattalk/feed-recommender/internal/moderation"
	"github.com/greattalk/feed-recommender/internal/notifications"
	"github.com/greattalk/feed-recommender/internal/recommendation"
	"github.com/greattalk/feed-recommender/internal/rules"
	"github.com/greattalk/feed-recommender/internal/scheduler"
	"github.com/greattalk/feed-recommender/internal/session"
	"github.com/greattalk/feed-recommender/internal/sources"
	"github.com/greattalk/feed-recommender/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting GreatTalk feed recommender")

	collector := metrics.NewCollector("greattalk")

	source := sources.NewFirestoreSource(cfg.FirestoreBaseURL, cfg.FirestoreProjectID, cfg.FirestoreAPIKey)

	archive, err := newStorage(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	ruleSet, err := loadRules(cfg.RulesFile)
	if err != nil {
		logrus.Fatalf("Failed to load rules: %v", err)
	}
	engine, err := rules.NewEngine(ruleSet, collector)
	if err != nil {
		logrus.Fatalf("Invalid rule set: %v", err)
	}

	evaluator := moderation.NewEvaluator(cfg.ExtraSpamPhrases)
	notificationService := notifications.NewService(cfg)

	recommendationService := recommendation.NewService(cfg, source, archive, evaluator, cache.New(cfg.CacheMaxEntries), collector)
	moderationService := moderation.NewService(cfg, source, archive, notificationService, evaluator, collector)

	schedulerService := scheduler.NewService(cfg, moderationService, recommendationService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	handlers := &api{
		recommender: recommendationService,
		moderator:   moderationService,
		engine:      engine,
		sessions:    session.NewManager(source, collector),
		collector:   collector,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handlers.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// newStorage uses Azure Blob Storage when an account is configured and a local
// directory otherwise
func newStorage(cfg *config.Config) (storage.StorageInterface, error) {
	if cfg.StorageAccount == "" {
		logrus.Warnf("AZURE_STORAGE_ACCOUNT not set, archiving to %s", cfg.LocalStorageDir)
		return storage.NewLocalStorage(cfg.LocalStorageDir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
}

func loadRules(path string) ([]rules.BusinessRule, error) {
	if path == "" {
		logrus.Info("RULES_FILE not set, using built-in rules")
		return rules.DefaultRules(), nil
	}
	return rules.LoadFile(path)
}
