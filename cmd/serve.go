package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/daleelapp/daleel/internal/api"
	"github.com/daleelapp/daleel/internal/auth"
	"github.com/daleelapp/daleel/internal/config"
	"github.com/daleelapp/daleel/internal/database"
	"github.com/daleelapp/daleel/internal/gemini"
	"github.com/daleelapp/daleel/internal/ingest"
	"github.com/daleelapp/daleel/internal/log"
	"github.com/daleelapp/daleel/internal/rag"
	"github.com/daleelapp/daleel/internal/store"
	"github.com/daleelapp/daleel/internal/vector"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	// Missing .env is fine; environment variables may come from anywhere.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := newLogger()
	logger.Info("starting daleel", "version", Version, "config", cfg.String())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.store.Close()

	// Index whatever is already in the documents directory. An empty
	// directory is not fatal for the server; documents can arrive later
	// via upload.
	if _, err := app.ingest.IngestAll(ctx); err != nil {
		if !errors.Is(err, ingest.ErrNoChunks) {
			return fmt.Errorf("initial ingestion: %w", err)
		}
		logger.Warn("no documents indexed yet", "dir", cfg.DocsDir)
	}

	sessions := auth.NewSessions(cfg.SessionSecret, auth.DefaultSessionTTL)
	server := api.NewServer(api.Config{
		Addr:        cfg.HTTPAddr,
		CORSOrigins: cfg.CORSOrigins,
		DocsDir:     cfg.DocsDir,
		MemorySize:  cfg.MemorySize,
	}, app.store, app.answerer, app.ingest, sessions, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if cfg.Watch {
		watcher := ingest.NewWatcher(app.ingest, cfg.DocsDir, logger)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// application bundles the wired core services.
type application struct {
	store    store.Store
	answerer *rag.Answerer
	ingest   *ingest.Service
}

// setup opens storage, migrates schemas, connects to Gemini, and wires the
// retrieval pipeline.
func setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*application, error) {
	st, pool, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:        cfg.GeminiAPIKey,
		ModelName:     cfg.ModelName,
		EmbedderModel: cfg.EmbedderModel,
		Dimension:     int32(cfg.EmbeddingDimension),
	}, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	index, err := openIndex(cfg, pool, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	svc := ingest.New(cfg.DocsDir, cfg.VectorStorePath, cfg.ChunkSize, index, client, logger)
	retriever := rag.NewRetriever(client, index, logger)
	answerer := rag.NewAnswerer(retriever, client, cfg.TopK, cfg.MemorySize, logger)

	return &application{store: st, answerer: answerer, ingest: svc}, nil
}

// openStore opens and migrates the configured relational backend. The pool
// is non-nil only for PostgreSQL; the pgvector index reuses it.
func openStore(ctx context.Context, cfg *config.Config, logger log.Logger) (store.Store, *pgxpool.Pool, error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		if err := database.MigratePostgres(cfg.PostgresURL(), logger); err != nil {
			return nil, nil, fmt.Errorf("migrating postgres: %w", err)
		}
		pool, err := database.OpenPostgres(ctx, cfg.PostgresConnectionString(), logger)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgres(pool), pool, nil

	default:
		db, err := database.OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := database.MigrateSQLite(db, logger); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrating sqlite: %w", err)
		}
		return store.NewSQLite(db), nil, nil
	}
}

// openIndex opens the configured vector index, loading a persisted file
// store when one exists.
func openIndex(cfg *config.Config, pool *pgxpool.Pool, logger log.Logger) (vector.Index, error) {
	if cfg.VectorBackend == config.VectorPostgres {
		return vector.NewPG(pool, cfg.EmbeddingDimension, logger), nil
	}
	if vector.Exists(cfg.VectorStorePath) {
		return vector.LoadFlat(cfg.VectorStorePath, logger)
	}
	return vector.NewFlat(cfg.EmbeddingDimension, cfg.VectorStorePath, logger), nil
}
