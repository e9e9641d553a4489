package config

import (
	"fmt"
	"log/slog"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// API key (required for embedding and generation)
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// RAG parameters
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be at least 1, got %d", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: top_k must be between 1 and 100, got %d", ErrInvalidTopK, c.TopK)
	}
	if c.MemorySize < 0 {
		return fmt.Errorf("%w: memory_size cannot be negative, got %d", ErrInvalidMemorySize, c.MemorySize)
	}
	if c.EmbeddingDimension < 1 {
		return fmt.Errorf("%w: embedding_dimension must be positive, got %d", ErrInvalidDimension, c.EmbeddingDimension)
	}

	// Storage backend
	switch c.StorageBackend {
	case StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidStorage, c.StorageBackend, StorageSQLite, StoragePostgres)
	}

	switch c.VectorBackend {
	case VectorFile:
	case VectorPostgres:
		if c.StorageBackend != StoragePostgres {
			return fmt.Errorf("%w: postgres vector backend requires storage_backend=postgres",
				ErrInvalidVectorBackend)
		}
		if c.EmbeddingDimension != DefaultEmbeddingDimension {
			// The chunks table column is vector(768); see migrations.
			return fmt.Errorf("%w: postgres vector backend requires embedding_dimension=%d, got %d",
				ErrInvalidDimension, DefaultEmbeddingDimension, c.EmbeddingDimension)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidVectorBackend, c.VectorBackend, VectorFile, VectorPostgres)
	}

	if c.StorageBackend == StoragePostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("%w: postgres_host cannot be empty", ErrInvalidStorage)
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: must be between 1 and 65535, got %d",
				ErrInvalidPostgresPort, c.PostgresPort)
		}
		if c.PostgresDBName == "" {
			return fmt.Errorf("%w: postgres_db_name cannot be empty", ErrInvalidStorage)
		}
		if c.PostgresPassword == "daleel_dev_password" {
			slog.Warn("using default development password for PostgreSQL",
				"hint", "change postgres_password for production deployments")
		}
	}

	return nil
}

// ValidateServe performs the additional checks required by the HTTP server.
// The session secret signs authentication cookies; a short secret makes
// session forgery feasible.
func (c *Config) ValidateServe() error {
	if c.SessionSecret == "" {
		return fmt.Errorf("%w: set DALEEL_SESSION_SECRET", ErrMissingSessionSecret)
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("%w: session secret must be at least 32 characters (got %d)",
			ErrMissingSessionSecret, len(c.SessionSecret))
	}
	return nil
}
