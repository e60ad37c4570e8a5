package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-mapper/pkg/audit"
	"github.com/ekaya-inc/ekaya-mapper/pkg/config"
	"github.com/ekaya-inc/ekaya-mapper/pkg/database"
	"github.com/ekaya-inc/ekaya-mapper/pkg/handlers"
	"github.com/ekaya-inc/ekaya-mapper/pkg/knowledgebase"
	"github.com/ekaya-inc/ekaya-mapper/pkg/logging"
	"github.com/ekaya-inc/ekaya-mapper/pkg/mapping"
	"github.com/ekaya-inc/ekaya-mapper/pkg/metrics"
	"github.com/ekaya-inc/ekaya-mapper/pkg/middleware"
	"github.com/ekaya-inc/ekaya-mapper/pkg/repositories"
	"github.com/ekaya-inc/ekaya-mapper/pkg/services"
	"github.com/ekaya-inc/ekaya-mapper/pkg/validation"
)

// Version is set at build time via ldflags
var Version = "dev"

// janitorInterval is how often idle editor sessions are swept.
const janitorInterval = time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	connStr := cfg.Database.ConnectionString()
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(connStr)),
		zap.String("knowledge_base", cfg.KnowledgeBase.BaseURL),
		zap.Bool("autosave_on_drop", cfg.Editor.AutosaveOnDrop))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database and migrations
	if err := database.MigrateURL(connStr, logger.Named("migrations")); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Knowledge base
	kb, err := knowledgebase.NewClient(knowledgebase.Options{
		BaseURL:   cfg.KnowledgeBase.BaseURL,
		APIPath:   cfg.KnowledgeBase.APIPath,
		UserAgent: cfg.KnowledgeBase.UserAgent + "/" + cfg.Version,
		Timeout:   cfg.KnowledgeBase.Timeout(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create knowledge base client", zap.Error(err))
	}

	// Completeness rules
	var rules []validation.Rule
	if cfg.Editor.RulesFile != "" {
		rules, err = validation.LoadRules(cfg.Editor.RulesFile)
		if err != nil {
			logger.Fatal("Failed to load completeness rules",
				zap.String("path", cfg.Editor.RulesFile),
				zap.Error(err))
		}
		logger.Info("Loaded completeness rules",
			zap.String("path", cfg.Editor.RulesFile),
			zap.Int("count", len(rules)))
	}

	m := metrics.New()
	editorService := services.NewEditorSessionService(
		repositories.NewSchemaMappingRepository(),
		database.NewProjectScopeProvider(db),
		kb,
		m,
		services.EditorConfig{
			Limits: mapping.Limits{
				LabelMaxLength: cfg.Editor.LabelMaxLength,
				AliasMaxLength: cfg.Editor.AliasMaxLength,
			},
			Rules:           rules,
			AutosaveOnDrop:  cfg.Editor.AutosaveOnDrop,
			SessionTTL:      cfg.Editor.SessionTTL(),
			DefaultLanguage: cfg.KnowledgeBase.DefaultLanguage,
		},
		logger,
		services.WithAuditor(audit.NewMappingAuditor(logger)),
	)
	editorService.RunJanitor(ctx, janitorInterval)

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, db, editorService, logger).RegisterRoutes(mux)
	handlers.NewEditorHandler(editorService, logger).RegisterRoutes(mux)
	projectScope := handlers.ProjectScopeMiddleware(database.RequireProjectScope(db, logger))
	handlers.NewMappingsHandler(editorService, logger).RegisterRoutes(mux, projectScope)
	mux.Handle("GET /metrics", m.Handler())

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-mapper",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			serverErr <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			serverErr <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
