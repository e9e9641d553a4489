package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.False(t, m.Contains("a.txt"))

	m.Mark("a.txt", "b.docx")
	require.NoError(t, m.Save())

	reloaded, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.True(t, reloaded.Contains("a.txt"))
	assert.True(t, reloaded.Contains("b.docx"))
	assert.False(t, reloaded.Contains("c.txt"))
}

func TestManifestDelta(t *testing.T) {
	t.Parallel()

	m, err := LoadManifest(t.TempDir())
	require.NoError(t, err)
	m.Mark("seen.txt")

	delta := m.Delta([]string{"new2.txt", "seen.txt", "new1.txt"})
	assert.Equal(t, []string{"new1.txt", "new2.txt"}, delta)

	assert.Empty(t, m.Delta([]string{"seen.txt"}))
	assert.Empty(t, m.Delta(nil))
}

func TestManifestMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt"}, m.Delta([]string{"x.txt"}))

	_, statErr := os.Stat(filepath.Join(dir, ManifestFileName))
	assert.True(t, os.IsNotExist(statErr), "loading must not create the file")
}

func TestManifestMalformedFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte("{not json"), 0o600))

	_, err := LoadManifest(dir)
	assert.Error(t, err)
}
