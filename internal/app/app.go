// Package app assembles the application from configuration: AI provider,
// vector index backend, document store, session persistence, and the
// assistant orchestrator. cmd handlers consume the App; they never construct
// components themselves.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/lumencrm/lumen/db"
	"github.com/lumencrm/lumen/internal/chat"
	"github.com/lumencrm/lumen/internal/config"
	"github.com/lumencrm/lumen/internal/document"
	"github.com/lumencrm/lumen/internal/knowledge"
	"github.com/lumencrm/lumen/internal/log"
	"github.com/lumencrm/lumen/internal/observability"
	"github.com/lumencrm/lumen/internal/session"
	"github.com/lumencrm/lumen/internal/vector"
)

// DefaultSessionKey identifies the single local chat session.
const DefaultSessionKey = "default"

// generateRatePerMinute caps model calls client-side.
const generateRatePerMinute = 30

// App holds the assembled application.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	Index     vector.Index
	Documents *document.Store
	Ingestor  *knowledge.Ingestor
	Retriever *knowledge.Retriever
	Sessions  *session.Manager
	Assistant *chat.Assistant

	otelCleanup func()
	dbCleanup   func()
	storeClose  func() error
}

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	a.Genkit = g

	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	index, err := provideIndex(ctx, a, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Index = index

	querier, err := provideDocumentQuerier(ctx, a, cfg)
	if err != nil {
		return nil, err
	}
	a.Documents = document.New(querier, logger)

	namespace := cfg.Namespace
	a.Ingestor = knowledge.NewIngestor(a.Documents, a.Embedder, index, namespace, cfg.EmbedderDimension, logger)
	a.Retriever = knowledge.NewRetriever(a.Embedder, index, namespace, cfg.EmbedderDimension, logger)

	store, err := provideSessionStore(cfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		a.storeClose = closer.Close
	}
	a.Sessions = session.NewManager(DefaultSessionKey, store, logger)

	generator, err := chat.NewGenkitGenerator(chat.GeneratorConfig{
		Genkit:          g,
		ModelName:       cfg.FullModelName(),
		Temperature:     float64(cfg.Temperature),
		MaxOutputTokens: cfg.MaxOutputTokens,
		Limiter:         rate.NewLimiter(rate.Every(time.Minute/generateRatePerMinute), 1),
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	assistant, err := chat.NewAssistant(chat.AssistantConfig{
		Manager:   a.Sessions,
		Retriever: a.Retriever,
		Assembler: chat.NewAssembler("", cfg.MaxPromptChars),
		Generator: generator,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	a.Assistant = assistant

	return a, nil
}

// Close drains in-flight replies and releases all resources.
func (a *App) Close() {
	if a.Assistant != nil {
		a.Assistant.Close()
	}
	if a.storeClose != nil {
		if err := a.storeClose(); err != nil {
			a.Logger.Warn("failed to close session store", "error", err)
		}
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
}

// provideOtelShutdown sets up trace export before Genkit initialization so
// the TracerProvider is ready when the first span starts. Disabled when no
// endpoint is configured.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: cfg.ServiceName,
	}, logger)
	if err != nil {
		logger.Warn("tracing setup failed, continuing without traces", "error", err)
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("trace exporter shutdown failed", "error", err)
		}
	}
}

// provideIndex builds the configured vector index backend.
func provideIndex(ctx context.Context, a *App, cfg *config.Config, logger log.Logger) (vector.Index, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendMemory:
		return vector.NewMemory(), nil

	case config.VectorBackendRedis:
		return vector.NewRedis(ctx, vector.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Dimension: cfg.EmbedderDimension,
		}, logger)

	case config.VectorBackendPostgres:
		pool, err := providePool(ctx, a, cfg)
		if err != nil {
			return nil, err
		}
		return vector.NewPostgres(pool, cfg.EmbedderDimension, logger), nil

	default:
		return nil, fmt.Errorf("unsupported vector backend: %q", cfg.VectorBackend)
	}
}

// provideDocumentQuerier picks document persistence to match the vector
// backend: PostgreSQL when available, process memory otherwise.
func provideDocumentQuerier(ctx context.Context, a *App, cfg *config.Config) (document.Querier, error) {
	if cfg.VectorBackend == config.VectorBackendPostgres {
		pool, err := providePool(ctx, a, cfg)
		if err != nil {
			return nil, err
		}
		return document.NewPGQuerier(pool), nil
	}
	return document.NewMemoryQuerier(), nil
}

// providePool creates the shared connection pool on first use, after running
// migrations.
func providePool(ctx context.Context, a *App, cfg *config.Config) (*pgxpool.Pool, error) {
	if a.DBPool != nil {
		return a.DBPool, nil
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	a.DBPool = pool
	a.dbCleanup = pool.Close
	return pool, nil
}

// provideSessionStore builds the configured session persistence backend.
// SessionPath is a directory; the sqlite backend keeps one database file
// inside it, the file backend one JSON file per session.
func provideSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendFile:
		return session.NewFileStore(cfg.SessionPath)

	case config.SessionBackendSQLite:
		return session.NewSQLiteStore(filepath.Join(cfg.SessionPath, "sessions.db"))

	default:
		return nil, fmt.Errorf("unsupported session backend: %q", cfg.SessionBackend)
	}
}
