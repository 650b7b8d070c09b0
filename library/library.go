// Package library provides a SQLite-backed store for control streams:
// every saved model keeps its full text plus a parameter snapshot so runs
// can be compared and reproduced later.
package library

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pharmflow/go-nmtran/nonmem"
)

// Store handles SQLite database operations for the model library.
type Store struct {
	db *sql.DB
}

// Entry is one stored model version.
type Entry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"created_at"`
}

// ParameterSnapshot is a stored initial estimate of one parameter.
type ParameterSnapshot struct {
	Name  string  `json:"name"`
	Init  float64 `json:"init"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Fix   bool    `json:"fix"`
}

// Open opens (or creates) the library database at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		code TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS parameters (
		entry_id TEXT NOT NULL,
		name TEXT NOT NULL,
		init REAL NOT NULL,
		lower REAL NOT NULL,
		upper REAL NOT NULL,
		fix INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (entry_id) REFERENCES entries(id)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_name ON entries(name, created_at);
	CREATE INDEX IF NOT EXISTS idx_parameters_entry ON parameters(entry_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for custom queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Put stores a model version by raw code and returns the new entry ID.
func (s *Store) Put(name, description, code string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO entries (id, name, description, code, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, description, code, time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// SaveModel stores a model together with its current parameter snapshot.
// Pending symbolic edits are folded into the stored text first.
func (s *Store) SaveModel(m *nonmem.Model, description string) (string, error) {
	code, err := m.Code()
	if err != nil {
		return "", err
	}
	id, err := s.Put(m.Name(), description, code)
	if err != nil {
		return "", err
	}
	for _, p := range m.Parameters().All() {
		_, err := s.db.Exec(
			`INSERT INTO parameters (entry_id, name, init, lower, upper, fix) VALUES (?, ?, ?, ?, ?, ?)`,
			id, p.Name, p.Init, p.Lower, p.Upper, p.Fix,
		)
		if err != nil {
			return "", err
		}
	}
	return id, nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(id string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT id, name, description, code, created_at FROM entries WHERE id = ?`, id,
	)
	return scanEntry(row)
}

// Latest retrieves the most recently stored entry with the given name.
func (s *Store) Latest(name string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT id, name, description, code, created_at
		 FROM entries WHERE name = ? ORDER BY created_at DESC LIMIT 1`, name,
	)
	return scanEntry(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var desc sql.NullString
	err := row.Scan(&e.ID, &e.Name, &desc, &e.Code, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		e.Description = desc.String
	}
	return &e, nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]*Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, code, created_at
		 FROM entries ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Versions returns every stored version of a model name, oldest first.
func (s *Store) Versions(name string) ([]*Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, code, created_at
		 FROM entries WHERE name = ? ORDER BY created_at`, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Parameters retrieves the parameter snapshot of an entry.
func (s *Store) Parameters(entryID string) ([]ParameterSnapshot, error) {
	rows, err := s.db.Query(
		`SELECT name, init, lower, upper, fix FROM parameters WHERE entry_id = ?`, entryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []ParameterSnapshot
	for rows.Next() {
		var p ParameterSnapshot
		if err := rows.Scan(&p.Name, &p.Init, &p.Lower, &p.Upper, &p.Fix); err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

// Delete removes an entry and its parameter snapshot.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM parameters WHERE entry_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM entries WHERE id = ?`, id)
	return err
}

// LoadModel parses a stored entry back into a model.
func (s *Store) LoadModel(id string, cfg nonmem.Config) (*nonmem.Model, error) {
	e, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	m, err := nonmem.ParseModel(e.Code, cfg)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", id, err)
	}
	m.SetName(e.Name)
	return m, nil
}
