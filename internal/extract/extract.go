// Package extract reads document files and returns their plain text.
//
// Two formats are recognized: Word documents (.docx) and plain text (.txt).
// Any other extension yields an empty string and a logged notice. A parser
// failure on one file also yields an empty string rather than an error, so
// one malformed document never aborts an ingestion batch.
package extract

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the file extensions the extractor recognizes,
// lowercase with leading dot.
var SupportedExtensions = map[string]bool{
	".docx": true,
	".txt":  true,
}

// Supported reports whether the file name has a recognized extension.
func Supported(name string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Text extracts the textual content of the file at path.
//
// For .docx, all non-empty paragraph texts are joined with newline
// separators. For .txt, the raw file contents are returned. Unsupported
// extensions and unreadable or malformed files return "" (logged, non-fatal).
func Text(path string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		text, err := docxText(path)
		if err != nil {
			logger.Error("docx extraction failed", "path", path, "error", err)
			return ""
		}
		return text
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("txt read failed", "path", path, "error", err)
			return ""
		}
		return string(data)
	default:
		logger.Warn("unsupported format, skipping", "path", path)
		return ""
	}
}
