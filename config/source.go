package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/ruleflow/phlow/value"
)

// Source loads a workflow document and can report a content hash so
// callers can detect no-op reloads.
type Source interface {
	Load() (value.Value, error)
	Hash() (string, error)
	Name() string
}

// FileSource loads a document from a file on disk, using the format implied
// by its extension.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource that reads from the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and parses the document file.
func (s *FileSource) Load() (value.Value, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return value.Value{}, fmt.Errorf("read document %s: %w", s.path, err)
	}
	return ParseFile(s.path, raw)
}

// Hash returns a content hash of the document file, for change detection.
func (s *FileSource) Hash() (string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("hash document %s: %w", s.path, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Name identifies the source for logging.
func (s *FileSource) Name() string { return s.path }

// Path returns the underlying file path.
func (s *FileSource) Path() string { return s.path }
