package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/daleelapp/daleel/internal/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the documents directory and exit",
	Long: `Ingest extracts, chunks, and embeds every new document in the
documents directory, then persists the vector store. Already-indexed files
are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest()
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.store.Close()

	result, err := app.ingest.IngestAll(ctx)
	if err != nil {
		return err
	}
	logger.Info("ingestion finished", "files", result.Files, "chunks", result.Chunks)
	return nil
}
