// Package store persists the two pieces of pipeline state that outlive a
// run: the content hash of every transformed monthly file, and per-station
// reference coordinates used when a file's own position is unresolved.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
)

// ErrNoStation is returned by coordinate updates and deletes that name a
// station the coordinates table does not know.
var ErrNoStation = errors.New("store: station not known")

// StationCoords is one row of the coordinates table.
type StationCoords struct {
	Name     string
	Position domain.Position
}

// Store wraps the SQLite state database. A Store opened with an empty path
// is disabled: lookups miss, writes are dropped, and Enabled reports false
// so callers can warn once instead of failing.
type Store struct {
	db *sql.DB
}

// Open opens or creates the state database at path. An empty path yields a
// disabled store.
func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{}, nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Enabled reports whether the store is backed by a database.
func (s *Store) Enabled() bool {
	return s.db != nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ecsv_t (
		filename TEXT PRIMARY KEY,
		hash     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS coords_t (
		phot_name TEXT PRIMARY KEY,
		latitude  REAL NOT NULL,
		longitude REAL NOT NULL,
		height    REAL NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// LookupHash returns the recorded content hash for a monthly filename.
func (s *Store) LookupHash(ctx context.Context, filename string) (string, bool, error) {
	if s.db == nil {
		return "", false, nil
	}
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT hash FROM ecsv_t WHERE filename = ?", filename).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup hash for %s: %w", filename, err)
	}
	return hash, true, nil
}

// SaveHash records the content hash for a monthly filename, replacing any
// previous value.
func (s *Store) SaveHash(ctx context.Context, filename, hash string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ecsv_t (filename, hash) VALUES (?, ?)
		 ON CONFLICT(filename) DO UPDATE SET hash = excluded.hash`,
		filename, hash)
	if err != nil {
		return fmt.Errorf("save hash for %s: %w", filename, err)
	}
	return nil
}

// LookupCoords returns the reference coordinates for a station name.
func (s *Store) LookupCoords(ctx context.Context, name string) (domain.Position, bool, error) {
	if s.db == nil {
		return domain.Position{}, false, nil
	}
	var pos domain.Position
	err := s.db.QueryRowContext(ctx,
		"SELECT latitude, longitude, height FROM coords_t WHERE phot_name = ?", name).
		Scan(&pos.Latitude, &pos.Longitude, &pos.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Position{}, false, nil
	}
	if err != nil {
		return domain.Position{}, false, fmt.Errorf("lookup coordinates for %s: %w", name, err)
	}
	pos.Resolved = true
	return pos, true, nil
}

// AddCoords inserts reference coordinates for a new station. Adding a
// station that already exists is an error; use UpdateCoords to change it.
func (s *Store) AddCoords(ctx context.Context, name string, pos domain.Position) error {
	if s.db == nil {
		return errors.New("store: no state database configured")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO coords_t (phot_name, latitude, longitude, height) VALUES (?, ?, ?, ?)",
		name, pos.Latitude, pos.Longitude, pos.Height)
	if err != nil {
		return fmt.Errorf("add coordinates for %s: %w", name, err)
	}
	return nil
}

// UpdateCoords replaces the reference coordinates of a known station.
func (s *Store) UpdateCoords(ctx context.Context, name string, pos domain.Position) error {
	if s.db == nil {
		return errors.New("store: no state database configured")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE coords_t SET latitude = ?, longitude = ?, height = ? WHERE phot_name = ?",
		pos.Latitude, pos.Longitude, pos.Height, name)
	if err != nil {
		return fmt.Errorf("update coordinates for %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update coordinates for %s: %w", name, ErrNoStation)
	}
	return nil
}

// DeleteCoords removes a station from the coordinates table.
func (s *Store) DeleteCoords(ctx context.Context, name string) error {
	if s.db == nil {
		return errors.New("store: no state database configured")
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM coords_t WHERE phot_name = ?", name)
	if err != nil {
		return fmt.Errorf("delete coordinates for %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete coordinates for %s: %w", name, ErrNoStation)
	}
	return nil
}

// ListCoords returns every station in the coordinates table, ordered by
// station name.
func (s *Store) ListCoords(ctx context.Context) ([]StationCoords, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT phot_name, latitude, longitude, height FROM coords_t ORDER BY phot_name")
	if err != nil {
		return nil, fmt.Errorf("list coordinates: %w", err)
	}
	defer rows.Close()

	var out []StationCoords
	for rows.Next() {
		var sc StationCoords
		if err := rows.Scan(&sc.Name, &sc.Position.Latitude, &sc.Position.Longitude, &sc.Position.Height); err != nil {
			return nil, err
		}
		sc.Position.Resolved = true
		out = append(out, sc)
	}
	return out, rows.Err()
}
