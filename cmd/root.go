// Package cmd wires the command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/daleelapp/daleel/internal/log"
)

var (
	flagDebug   bool
	flagLogJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "daleel",
	Short: "Daleel - Arabic document chatbot",
	Long: `Daleel answers questions about your documents in Arabic.

Upload DOCX or TXT files, and daleel indexes them into a vector store and
answers questions grounded in their content, streaming responses over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "log in JSON format")
}

// newLogger builds the process logger from the global flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: flagLogJSON})
}
