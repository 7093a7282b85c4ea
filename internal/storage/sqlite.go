package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dbFile = "analyze-request.db"

	// Secure file permissions - owner read/write only
	secureFileMode = 0600 // -rw-------
	secureDirMode  = 0700 // drwx------
)

// ensureSecureFile creates a file with secure permissions if it doesn't exist,
// or verifies/fixes permissions if it does exist. This prevents a TOCTOU race
// condition where the file could be created with insecure default permissions.
func ensureSecureFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, secureFileMode)
		if err != nil {
			return fmt.Errorf("failed to create secure file: %w", err)
		}
		f.Close()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Mode().Perm() != secureFileMode {
		if err := os.Chmod(path, secureFileMode); err != nil {
			return fmt.Errorf("failed to set secure permissions: %w", err)
		}
	}
	return nil
}

// SQLiteMedium stores keys in a single SQLite table
type SQLiteMedium struct {
	db      *sql.DB
	dataDir string
	logger  *slog.Logger
}

// NewSQLiteMedium opens (or creates) the database inside dataDir. When the
// database is empty, keys previously written by a FileMedium in the same
// directory are imported.
func NewSQLiteMedium(dataDir string, importKeys []string, logger *slog.Logger) (*SQLiteMedium, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dataDir, secureDirMode); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, dbFile)

	if err := ensureSecureFile(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// One connection keeps every Set serialized
	db.SetMaxOpenConns(1)

	s := &SQLiteMedium{db: db, dataDir: dataDir, logger: logger}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	// Import failures leave the database usable; the JSON files stay in place
	if err := s.importFromFiles(importKeys); err != nil {
		logger.Warn("failed to import JSON files", slog.Any("error", err))
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteMedium) Close() error {
	return s.db.Close()
}

// initSchema creates the key/value table if it doesn't exist
func (s *SQLiteMedium) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value stored under key
func (s *SQLiteMedium) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set replaces the value stored under key
func (s *SQLiteMedium) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// importFromFiles copies keys from JSON files in the data directory if the
// table is still empty. Values are copied verbatim so the generation
// fallback in Store still applies to them.
func (s *SQLiteMedium) importFromFiles(keys []string) error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	files := &FileMedium{dataDir: s.dataDir}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	imported := 0
	for _, key := range keys {
		value, ok, err := files.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := tx.Exec("INSERT INTO kv (key, value) VALUES (?, ?)", key, value); err != nil {
			return err
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if imported > 0 {
		s.logger.Info("imported JSON files into sqlite", slog.Int("keys", imported))
	}
	return nil
}
