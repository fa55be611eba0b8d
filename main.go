package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/username/commissioncalc/backend/src/config"
	"github.com/username/commissioncalc/backend/src/database"
	"github.com/username/commissioncalc/backend/src/handlers"
	"github.com/username/commissioncalc/backend/src/llm"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/rules"
	"github.com/username/commissioncalc/backend/src/services"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Commission calculator backend starting...")

	if err := config.Cfg.Validate(); err != nil {
		logger.L.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	db, err := database.InitDB(config.Cfg.DatabasePath)
	if err != nil {
		logger.L.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.L.Info("Database initialized successfully.")

	rulesStore := newRulesStore(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := llm.NewFromConfig(ctx, config.Cfg.Model)
	if !llm.Configured(model) {
		logger.L.Warn("No model backend configured; calculation endpoints will fail until one is set")
	}

	logger.L.Info("Initializing report cache...", "ttl", config.Cfg.BatchResultTTL)
	reportCache := cache.New(config.Cfg.BatchResultTTL, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	commissionService := services.NewCommissionService(model, config.Cfg.Model.MaxTokens)
	rulesService := services.NewRulesService(rulesStore)
	batchService := services.NewBatchService(commissionService, model, rulesStore, reportCache, database.NewBatchRepository(db))
	insightService := services.NewInsightService(model, database.NewBusinessDataRepository(db))

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	handlers.Routes{
		Commission: handlers.NewCommissionHandler(commissionService, rulesService),
		Batch:      handlers.NewBatchHandler(batchService, config.Cfg.MaxUploadSizeBytes),
		Rules:      handlers.NewRulesHandler(rulesService, config.Cfg.MaxUploadSizeBytes),
		Business:   handlers.NewBusinessHandler(insightService, config.Cfg.MaxUploadSizeBytes),
	}.Register(rootMux)

	rootMux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Commission calculator backend is running"})
	})

	logger.L.Info("Applying global middleware...")
	limiter := rate.NewLimiter(rate.Limit(config.Cfg.HTTPRateLimitRPS), config.Cfg.HTTPRateLimitBurst)
	finalHandler := handlers.Global(rootMux, config.Cfg.AllowedOrigins, limiter)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.Cfg.Model.Timeout + 10*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.L.Info("Server starting", "address", serverAddr, "modelBackend", model.Name(), "rulesStore", config.Cfg.RulesStore)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	logger.L.Info("Server stopped gracefully.")
}

// newRulesStore picks the rules backend named by RULES_STORE.
func newRulesStore(db *sql.DB) rules.Store {
	if config.Cfg.RulesStore == config.RulesStoreSQLite {
		return database.NewRulesRepository(db)
	}
	return rules.NewFileStore(filepath.Join(config.Cfg.DataDir, rules.DefaultFileName))
}
