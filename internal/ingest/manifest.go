package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ManifestFileName is the processed-files manifest, stored in the vector
// store directory as a JSON array of filenames.
const ManifestFileName = "processed_files.json"

// Manifest tracks which filenames have already been ingested so repeated
// runs only embed the delta. It is rewritten wholesale on save, not
// appended.
type Manifest struct {
	dir   string
	files map[string]struct{}
}

// LoadManifest reads the manifest from dir. A missing file yields an empty
// manifest, not an error.
func LoadManifest(dir string) (*Manifest, error) {
	m := &Manifest{dir: dir, files: make(map[string]struct{})}

	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	for _, n := range names {
		m.files[n] = struct{}{}
	}
	return m, nil
}

// Contains reports whether name has been ingested.
func (m *Manifest) Contains(name string) bool {
	_, ok := m.files[name]
	return ok
}

// Delta returns the names not yet in the manifest, sorted.
func (m *Manifest) Delta(available []string) []string {
	var delta []string
	for _, n := range available {
		if !m.Contains(n) {
			delta = append(delta, n)
		}
	}
	sort.Strings(delta)
	return delta
}

// Mark records names as processed. Call Save to persist.
func (m *Manifest) Mark(names ...string) {
	for _, n := range names {
		m.files[n] = struct{}{}
	}
}

// Save rewrites the manifest file atomically, creating the directory if
// absent.
func (m *Manifest) Save() error {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	names := make([]string, 0, len(m.files))
	for n := range m.files {
		names = append(names, n)
	}
	sort.Strings(names)

	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, ManifestFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(m.dir, ManifestFileName)); err != nil {
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}
