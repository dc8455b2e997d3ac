package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLite is the on-disk Store. All values are stored as text; typed getters
// and setters convert at the edge.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (creating if needed) the config database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open config db: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize config schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opened config store")
	return &SQLite{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS config_kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create config_kv table: %w", err)
	}
	return nil
}

func (s *SQLite) get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM config_kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO config_kv (key, value, updated_at)
		VALUES (?, ?, strftime('%s','now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) GetString(key string) (string, bool, error) {
	return s.get(key)
}

func (s *SQLite) SetString(key, value string) error {
	return s.set(key, value)
}

func (s *SQLite) GetInt(key string) (int, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("key %q is not an int: %w", key, err)
	}
	return n, true, nil
}

func (s *SQLite) SetInt(key string, value int) error {
	return s.set(key, strconv.Itoa(value))
}

func (s *SQLite) GetBool(key string) (bool, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return false, ok, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("key %q is not a bool: %w", key, err)
	}
	return b, true, nil
}

func (s *SQLite) SetBool(key string, value bool) error {
	if value {
		return s.set(key, "1")
	}
	return s.set(key, "0")
}

func (s *SQLite) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM config_kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM config_kv`)
	if err != nil {
		return fmt.Errorf("failed to wipe config: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		log.Info().Int64("keys", n).Msg("Wiped config store")
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
