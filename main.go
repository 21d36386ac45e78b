package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/database"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/generator"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/handlers"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/mcp"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/metrics"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/middleware"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/render"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/rules"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	logger, err := logging.NewLogger(cfg.Env, level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", fmt.Sprintf("%s://%s@%s:%d/%s", cfg.Database.Type, cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("storage", cfg.Storage.Backend))

	ruleSet, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// An unconfigured LLM is not fatal: the service starts, reports itself
	// uninitialized and still serves conversations.
	client, err := llm.NewFromConfig(cfg.LLM, logger)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("LLM client not configured; chat is unavailable until it is")
	case err != nil:
		return fmt.Errorf("create llm client: %w", err)
	}

	trainingDB, err := database.Open(ctx, cfg.Generator.TrainingDBPath, logger)
	if err != nil {
		return fmt.Errorf("open training store: %w", err)
	}
	defer trainingDB.Close()

	gen := generator.NewLLMGenerator(client, generator.NewSQLiteTrainingStore(trainingDB.DB), generator.Config{
		Dialect:        datasource.DisplayName(cfg.Database.Type),
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		MaxExamples:    cfg.Generator.MaxExamples,
	}, m, logger)

	convRepo, closeRepo, err := openConversationRepository(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	connections := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{}, nil, logger)
	defer connections.Close()
	mainDatasource := services.NewManagedDatasource(connections, datasource.FromConfig(cfg.Database))

	conversationService := services.NewConversationService(convRepo, logger)
	trainingService := services.NewTrainingService(gen, logger)
	tableService := services.NewTableService(gen, mainDatasource, logger)
	healthService := services.NewHealthService(gen, mainDatasource, logger)
	profileService := services.NewDatabaseProfileService(connections, client, m, logger)
	chatService := services.NewChatService(services.ChatDeps{
		Generator:     gen,
		Datasources:   mainDatasource,
		Conversations: conversationService,
		Expander:      services.NewQuestionExpander(client, m, logger),
		Resolver:      services.NewSchemaResolver(ruleSet, logger),
		SQL:           services.NewSQLGenerator(gen, ruleSet, m, logger),
		Runner:        services.NewQueryRunner(m, logger),
		Suggestions:   services.NewSuggestionGenerator(client, m, logger),
		Renderer:      render.NewRenderer(ruleSet, logger),
		Rules:         ruleSet,
		Pacing:        services.PacingFromConfig(cfg.Stream),
		Metrics:       m,
	}, logger)

	mux := http.NewServeMux()
	handlers.NewRootHandler(cfg.Version, logger).RegisterRoutes(mux)
	handlers.NewHealthHandler(cfg, healthService, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chatService, logger).RegisterRoutes(mux)
	handlers.NewConversationsHandler(conversationService, logger).RegisterRoutes(mux)
	handlers.NewTrainingHandler(trainingService, logger).RegisterRoutes(mux)
	handlers.NewTablesHandler(tableService, logger).RegisterRoutes(mux)
	handlers.NewDatabaseHandler(profileService, logger).RegisterRoutes(mux)

	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("ekaya-sqlchat", cfg.Version, mcp.NewCallRecorder(m, logger), logger)
		tools.RegisterAll(mcpServer.MCP(), &tools.Deps{
			Chat:     chatService,
			Tables:   tableService,
			Training: trainingService,
			Health:   healthService,
			Version:  cfg.Version,
			Logger:   logger.Named("mcp"),
		})
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	}

	// Metrics wraps the mux directly so it sees the matched route pattern.
	var handler http.Handler = middleware.Metrics(m)(mux)
	handler = middleware.RequestLogger(logger)(handler)
	handler = chimw.Recoverer(handler)
	handler = chimw.RealIP(handler)
	handler = chimw.RequestID(handler)

	// WriteTimeout stays zero: chat responses stream for as long as the turn runs.
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ekaya-sqlchat", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openConversationRepository returns the configured transcript store and a
// function releasing it.
func openConversationRepository(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (repositories.ConversationRepository, func(), error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := database.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open conversation store: %w", err)
		}
		return repositories.NewSQLiteConversationRepository(db.DB), func() { _ = db.Close() }, nil
	case "file", "":
		repo, err := repositories.NewFileConversationRepository(cfg.ConversationsDir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open conversation store: %w", err)
		}
		return repo, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
