package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	fileExt = ".json"

	// Secure file permissions - owner read/write only
	jsonSecureFileMode = 0600 // -rw-------
	jsonSecureDirMode  = 0700 // drwx------
)

// keyReplacer maps medium keys onto portable file names
var keyReplacer = strings.NewReplacer(":", ".", "/", "_", "\\", "_")

// FileMedium stores each key as a JSON file inside a data directory
type FileMedium struct {
	dataDir string
}

// NewFileMedium creates a file medium rooted at dataDir, creating it if needed
func NewFileMedium(dataDir string) (*FileMedium, error) {
	if err := os.MkdirAll(dataDir, jsonSecureDirMode); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileMedium{dataDir: dataDir}, nil
}

// pathFor returns the file backing key
func (s *FileMedium) pathFor(key string) string {
	return filepath.Join(s.dataDir, keyReplacer.Replace(key)+fileExt)
}

// Get reads the file backing key
func (s *FileMedium) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return string(data), true, nil
}

// Set writes the file backing key through a temp file and rename so a
// reader never observes a half-written collection
func (s *FileMedium) Set(key, value string) error {
	path := s.pathFor(key)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, []byte(value), jsonSecureFileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}

	return nil
}
