package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a blob or counter key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// BlobStore is the durable key-value collaborator the overflow store
// and power controller persist through. Each call is independently
// atomic; Commit flushes written data to stable storage.
type BlobStore interface {
	SetBlob(key string, value []byte) error
	GetBlob(key string) ([]byte, error)
	// BlobSize returns the stored size of a blob without reading its
	// contents.
	BlobSize(key string) (int, error)
	Erase(key string) error
	SetCounter(key string, value int64) error
	GetCounter(key string) (int64, error)
	Commit() error
	Close() error
}

// Compile-time interface checks
var (
	_ BlobStore = (*SQLiteKV)(nil)
	_ BlobStore = (*MemoryKV)(nil)
)

// SQLiteKV is the production BlobStore backed by a local SQLite file.
// The sender task is the only writer, so the connection pool is pinned
// to a single connection.
type SQLiteKV struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteKV opens (and if necessary creates) the key-value database
// at path.
func NewSQLiteKV(path string, logger zerolog.Logger) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	kv := &SQLiteKV{db: db, logger: logger}
	if err := kv.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", path).Msg("Durable key-value store initialized")
	return kv, nil
}

// migrate creates the schema if it doesn't exist
func (s *SQLiteKV) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv_blobs (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS kv_counters (
		key   TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// SetBlob stores value under key, replacing any previous value.
func (s *SQLiteKV) SetBlob(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv_blobs (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set blob %q: %w", key, err)
	}
	return nil
}

// GetBlob returns the value stored under key, or ErrNotFound.
func (s *SQLiteKV) GetBlob(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv_blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %q: %w", key, err)
	}
	return value, nil
}

// BlobSize returns the byte length of the blob under key without
// materializing its contents.
func (s *SQLiteKV) BlobSize(key string) (int, error) {
	var size int
	err := s.db.QueryRow(`SELECT length(value) FROM kv_blobs WHERE key = ?`, key).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get blob size %q: %w", key, err)
	}
	return size, nil
}

// Erase removes key from both the blob and counter namespaces. Erasing
// a missing key is not an error.
func (s *SQLiteKV) Erase(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv_blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to erase %q: %w", key, err)
	}
	if _, err := s.db.Exec(`DELETE FROM kv_counters WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to erase counter %q: %w", key, err)
	}
	return nil
}

// SetCounter stores an integer counter under key.
func (s *SQLiteKV) SetCounter(key string, value int64) error {
	_, err := s.db.Exec(
		`INSERT INTO kv_counters (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set counter %q: %w", key, err)
	}
	return nil
}

// GetCounter returns the counter stored under key, or ErrNotFound.
func (s *SQLiteKV) GetCounter(key string) (int64, error) {
	var value int64
	err := s.db.QueryRow(`SELECT value FROM kv_counters WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter %q: %w", key, err)
	}
	return value, nil
}

// Commit checkpoints the WAL so written data survives power loss.
func (s *SQLiteKV) Commit() error {
	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteKV) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
