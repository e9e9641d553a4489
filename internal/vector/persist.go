package vector

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
)

// On-disk layout: a store directory holds two sibling files.
//
//	index.bin     — vectors: magic, version, dimension, count, then
//	                count*dimension float32 values, little-endian
//	metadata.json — ordered JSON array of metadata records, index-aligned
//	                with the vectors
//
// Both files are written to a temp file and renamed into place so a crash
// never leaves a half-written file. The index is renamed first; a crash
// between the two renames is detected at load time as a count mismatch.
const (
	IndexFileName    = "index.bin"
	MetadataFileName = "metadata.json"

	indexMagic   = "DLIX"
	indexVersion = uint16(1)
)

// ErrCorruptStore is returned by Load when the sibling files disagree or
// the index file is malformed.
var ErrCorruptStore = errors.New("corrupt vector store")

// lockPath joins the store directory with a lock file name.
func lockPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// Save persists the index and metadata under the store directory, creating
// it if absent. The advisory file lock serializes concurrent savers.
func (f *Flat) Save() error {
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	return f.withFileLock(func() error {
		f.mu.RLock()
		defer f.mu.RUnlock()

		if err := writeIndexFile(f.dir, f.dim, f.vectors); err != nil {
			return err
		}
		if err := writeMetadataFile(f.dir, f.metadata); err != nil {
			return err
		}

		f.logger.Debug("saved vector store", "dir", f.dir, "count", len(f.vectors))
		return nil
	})
}

// LoadFlat reconstructs a flat index from a store directory. It fails if
// either sibling file is missing or unreadable — there is no fallback to
// an empty store.
func LoadFlat(dir string, logger *slog.Logger) (*Flat, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dim, vectors, err := readIndexFile(dir)
	if err != nil {
		return nil, err
	}
	metadata, err := readMetadataFile(dir)
	if err != nil {
		return nil, err
	}
	if len(metadata) != len(vectors) {
		return nil, fmt.Errorf("%w: %d vectors but %d metadata records",
			ErrCorruptStore, len(vectors), len(metadata))
	}

	f := NewFlat(dim, dir, logger)
	f.vectors = vectors
	f.metadata = metadata
	logger.Debug("loaded vector store", "dir", dir, "count", len(vectors), "dimension", dim)
	return f, nil
}

// Exists reports whether a store directory already holds an index file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, IndexFileName))
	return err == nil
}

func writeIndexFile(dir string, dim int, vectors [][]float32) error {
	tmp, err := os.CreateTemp(dir, IndexFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after successful rename

	if err := encodeIndex(tmp, dim, vectors); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, IndexFileName)); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

func writeMetadataFile(dir string, metadata []Metadata) error {
	tmp, err := os.CreateTemp(dir, MetadataFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp metadata file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	enc := json.NewEncoder(tmp)
	if metadata == nil {
		metadata = []Metadata{} // encode [] rather than null
	}
	if err := enc.Encode(metadata); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp metadata file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, MetadataFileName)); err != nil {
		return fmt.Errorf("renaming metadata file: %w", err)
	}
	return nil
}

func encodeIndex(w io.Writer, dim int, vectors [][]float32) error {
	if _, err := w.Write([]byte(indexMagic)); err != nil {
		return fmt.Errorf("writing index header: %w", err)
	}

	header := []any{
		indexVersion,
		uint32(dim),       // #nosec G115 -- dimension is validated positive and small
		uint64(len(vectors)),
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("writing index header: %w", err)
		}
	}

	buf := make([]byte, 4)
	for _, vec := range vectors {
		for _, x := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("writing vector data: %w", err)
			}
		}
	}
	return nil
}

func readIndexFile(dir string) (int, [][]float32, error) {
	file, err := os.Open(filepath.Join(dir, IndexFileName))
	if err != nil {
		return 0, nil, fmt.Errorf("opening index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(file, magic); err != nil {
		return 0, nil, fmt.Errorf("%w: reading magic: %v", ErrCorruptStore, err)
	}
	if string(magic) != indexMagic {
		return 0, nil, fmt.Errorf("%w: bad magic %q", ErrCorruptStore, magic)
	}

	var (
		version uint16
		dim     uint32
		count   uint64
	)
	for _, v := range []any{&version, &dim, &count} {
		if err := binary.Read(file, binary.LittleEndian, v); err != nil {
			return 0, nil, fmt.Errorf("%w: reading header: %v", ErrCorruptStore, err)
		}
	}
	if version != indexVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptStore, version)
	}
	if dim == 0 {
		return 0, nil, fmt.Errorf("%w: zero dimension", ErrCorruptStore)
	}

	vectors := make([][]float32, 0, count)
	raw := make([]byte, int(dim)*4)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(file, raw); err != nil {
			return 0, nil, fmt.Errorf("%w: truncated vector data at %d: %v", ErrCorruptStore, i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[j*4:]))
		}
		vectors = append(vectors, vec)
	}

	return int(dim), vectors, nil
}

func readMetadataFile(dir string) ([]Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("opening metadata file: %w", err)
	}
	var metadata []Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("%w: decoding metadata: %v", ErrCorruptStore, err)
	}
	return metadata, nil
}
