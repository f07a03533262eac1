package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cellscript/internal/logging"
	"cellscript/internal/types"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Drivers accepted by NewSQLiteStore. sqlite3 is the cgo driver, sqlite the
// pure-Go one.
const (
	DriverCgo  = "sqlite3"
	DriverPure = "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cell_sources (
	container TEXT NOT NULL,
	row_index INTEGER NOT NULL,
	col_index INTEGER NOT NULL,
	source TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	revision INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (container, row_index, col_index)
);
CREATE TABLE IF NOT EXISTS workbook_names (
	name TEXT PRIMARY KEY,
	ref TEXT NOT NULL
);`

// SQLiteStore keeps cell sources in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	driver string
}

var (
	_ SourceStore = (*SQLiteStore)(nil)
	_ NameStore   = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (and if needed creates) the database at path using
// driver. path may be ":memory:".
func NewSQLiteStore(driver, path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteStore")
	defer timer.Stop()

	if driver != DriverCgo && driver != DriverPure {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	logging.Store("Opening %s store at %s", driver, path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, dbPath: path, driver: driver}, nil
}

// Driver returns the database/sql driver name in use.
func (s *SQLiteStore) Driver() string { return s.driver }

func (s *SQLiteStore) Read(addr types.Address) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var text string
	err := s.db.QueryRow(
		`SELECT source FROM cell_sources WHERE container = ? AND row_index = ? AND col_index = ?`,
		addr.Container, addr.Row, addr.Col,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", addr, err)
	}
	return text, nil
}

func (s *SQLiteStore) Write(addr types.Address, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO cell_sources (container, row_index, col_index, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(container, row_index, col_index)
		DO UPDATE SET source = excluded.source, updated_at = CURRENT_TIMESTAMP,
			revision = cell_sources.revision + 1`,
		addr.Container, addr.Row, addr.Col, text,
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", addr, err)
	}
	logging.StoreDebug("wrote %s (%d bytes)", addr, len(text))
	return nil
}

// Revision returns how many times the cell at addr has been written.
func (s *SQLiteStore) Revision(addr types.Address) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rev int
	err := s.db.QueryRow(
		`SELECT revision FROM cell_sources WHERE container = ? AND row_index = ? AND col_index = ?`,
		addr.Container, addr.Row, addr.Col,
	).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read revision of %s: %w", addr, err)
	}
	return rev, nil
}

func (s *SQLiteStore) Delete(addr types.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(
		`DELETE FROM cell_sources WHERE container = ? AND row_index = ? AND col_index = ?`,
		addr.Container, addr.Row, addr.Col,
	); err != nil {
		return fmt.Errorf("failed to delete %s: %w", addr, err)
	}
	logging.StoreDebug("deleted %s", addr)
	return nil
}

func (s *SQLiteStore) Exists(addr types.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM cell_sources WHERE container = ? AND row_index = ? AND col_index = ?`,
		addr.Container, addr.Row, addr.Col,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", addr, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(container string) ([]types.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT row_index, col_index FROM cell_sources WHERE container = ? ORDER BY row_index, col_index`,
		container,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", container, err)
	}
	defer rows.Close()

	var out []types.Address
	for rows.Next() {
		var row, col int
		if err := rows.Scan(&row, &col); err != nil {
			return nil, err
		}
		out = append(out, types.At(container, row, col))
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Containers() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT container FROM cell_sources ORDER BY container`)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Names() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name, ref FROM workbook_names`)
	if err != nil {
		return nil, fmt.Errorf("failed to list names: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, ref string
		if err := rows.Scan(&name, &ref); err != nil {
			return nil, err
		}
		out[name] = ref
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DefineName(name, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO workbook_names (name, ref) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET ref = excluded.ref`,
		name, ref,
	)
	if err != nil {
		return fmt.Errorf("failed to define name %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) RemoveName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM workbook_names WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to remove name %s: %w", name, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
