package slice

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// FileSink writes every slice to {dir}/{name}.slice.{index}.json and keeps
// a manifest with one xxhash64 checksum per file. Slices are read back from
// disk and checked against the manifest.
type FileSink struct {
	dir      string
	name     string
	manifest Manifest
}

// Manifest lists the files a FileSink has written.
type Manifest struct {
	Name   string          `json:"name"`
	Slices []ManifestEntry `json:"slices"`
}

// ManifestEntry describes one slice file.
type ManifestEntry struct {
	Index    int    `json:"index"`
	File     string `json:"file"`
	Checksum uint64 `json:"xxhash64"`
	Entries  int    `json:"entries"`
}

// ErrChecksumMismatch is returned when a slice file no longer matches the
// checksum recorded at write time.
var ErrChecksumMismatch = errors.New("slice checksum mismatch")

// NewFileSink creates dir if needed and returns an empty sink.
func NewFileSink(dir, name string) (*FileSink, error) {
	if name == "" {
		return nil, fmt.Errorf("file sink: name is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	return &FileSink{dir: dir, name: name, manifest: Manifest{Name: name, Slices: []ManifestEntry{}}}, nil
}

// OpenFileSink loads an existing sink from its manifest.
func OpenFileSink(dir, name string) (*FileSink, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile(name)))
	if err != nil {
		return nil, fmt.Errorf("open file sink: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("open file sink: decode manifest: %w", err)
	}
	for i, e := range m.Slices {
		if e.Index != i {
			return nil, fmt.Errorf("open file sink: manifest entry %d has index %d", i, e.Index)
		}
	}
	return &FileSink{dir: dir, name: name, manifest: m}, nil
}

func manifestFile(name string) string {
	return name + ".manifest.json"
}

// SliceFile returns the file name used for slice index.
func SliceFile(name string, index int) string {
	return fmt.Sprintf("%s.slice.%d.json", name, index)
}

// Push implements Sink. The manifest is rewritten after every slice so a
// crashed run leaves a readable prefix.
func (f *FileSink) Push(s Slice) error {
	index := len(f.manifest.Slices)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode slice %d: %w", index, err)
	}
	file := SliceFile(f.name, index)
	if err := os.WriteFile(filepath.Join(f.dir, file), data, 0o644); err != nil {
		return fmt.Errorf("write slice %d: %w", index, err)
	}

	f.manifest.Slices = append(f.manifest.Slices, ManifestEntry{
		Index:    index,
		File:     file,
		Checksum: xxhash.Sum64(data),
		Entries:  len(s.Entries),
	})
	if err := f.writeManifest(); err != nil {
		f.manifest.Slices = f.manifest.Slices[:index]
		return err
	}
	return nil
}

func (f *FileSink) writeManifest() error {
	data, err := json.MarshalIndent(f.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := filepath.Join(f.dir, manifestFile(f.name)+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(f.dir, manifestFile(f.name))); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Len implements Sink.
func (f *FileSink) Len() int { return len(f.manifest.Slices) }

// IsEmpty implements Sink.
func (f *FileSink) IsEmpty() bool { return len(f.manifest.Slices) == 0 }

// Slice implements Sink.
func (f *FileSink) Slice(i int) (Slice, error) {
	if i < 0 || i >= len(f.manifest.Slices) {
		return Slice{}, outOfRange(i, len(f.manifest.Slices))
	}
	entry := f.manifest.Slices[i]
	data, err := os.ReadFile(filepath.Join(f.dir, entry.File))
	if err != nil {
		return Slice{}, fmt.Errorf("read slice %d: %w", i, err)
	}
	if sum := xxhash.Sum64(data); sum != entry.Checksum {
		return Slice{}, fmt.Errorf("%w: %s: got %016x, want %016x", ErrChecksumMismatch, entry.File, sum, entry.Checksum)
	}
	var s Slice
	if err := json.Unmarshal(data, &s); err != nil {
		return Slice{}, fmt.Errorf("decode slice %d: %w", i, err)
	}
	return s, nil
}

// Manifest returns a copy of the manifest.
func (f *FileSink) Manifest() Manifest {
	m := f.manifest
	m.Slices = append([]ManifestEntry(nil), f.manifest.Slices...)
	return m
}
