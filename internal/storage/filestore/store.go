// Package filestore implements the keyed store on the local filesystem,
// one file per key with atomic temp-file writes.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/interfaces"
)

// Store provides file-based storage for string values keyed by name.
type Store struct {
	dir    string
	logger *common.Logger
}

// NewStore creates a store rooted at the given directory.
func NewStore(logger *common.Logger, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store path %s: %w", dir, err)
	}
	logger.Info().Str("path", dir).Msg("File store opened")
	return &Store{dir: dir, logger: logger}, nil
}

// Get returns the value stored at key, or interfaces.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", interfaces.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read key '%s': %w", key, err)
	}
	return string(data), nil
}

// Set writes value at key atomically (temp file + rename).
func (s *Store) Set(_ context.Context, key, value string) error {
	target := s.filePath(key)

	tmpFile, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.WriteString(value); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Delete removes the value at key. Deleting an absent key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.filePath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}

// Keys enumerates every stored key.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

func (s *Store) filePath(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}

// sanitizeKey replaces path-hostile characters so keys map to safe filenames.
func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

// Ensure Store implements KeyedStore
var _ interfaces.KeyedStore = (*Store)(nil)
