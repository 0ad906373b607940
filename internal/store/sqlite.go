package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/training"
)

//go:embed migrations.sql
var migrationsSQL string

// SQLite persists training records and the pattern bank snapshot
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) a database at path and runs migrations.
// ":memory:" gives a private in-memory database.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; in-memory databases are per connection
	db.SetMaxOpenConns(1)
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection and runs migrations
func New(db *sql.DB) (*SQLite, error) {
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Migrate runs the embedded schema statements
func Migrate(db *sql.DB) error {
	for _, stmt := range strings.Split(migrationsSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Append inserts one training record
func (s *SQLite) Append(ctx context.Context, rec model.TrainingRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode training record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO training_records (id, created_at, document_type, schema_version, payload) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC().Format(time.RFC3339Nano), string(rec.DocumentType), rec.SchemaVersion, string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert training record %s: %w", rec.ID, err)
	}
	return nil
}

// List returns all records in append order
func (s *SQLite) List(ctx context.Context) ([]model.TrainingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM training_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query training records: %w", err)
	}
	defer rows.Close()

	var out []model.TrainingRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one record or training.ErrNotFound
func (s *SQLite) Get(ctx context.Context, id string) (model.TrainingRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM training_records WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TrainingRecord{}, training.ErrNotFound
	}
	if err != nil {
		return model.TrainingRecord{}, fmt.Errorf("failed to read training record %s: %w", id, err)
	}
	return decodeRecord(payload)
}

// Count returns the number of stored records
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_records`).Scan(&n)
	return n, err
}

func decodeRecord(payload string) (model.TrainingRecord, error) {
	var rec model.TrainingRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return rec, fmt.Errorf("failed to decode training record: %w", err)
	}
	return rec, nil
}

// SaveBank replaces the stored bank snapshot in one transaction
func (s *SQLite) SaveBank(ctx context.Context, rules []model.PatternRule, fingerprint string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bank_rules`); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO bank_rules (rule_id, payload, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rules {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode rule %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, string(payload), now); err != nil {
			return fmt.Errorf("failed to store rule %s: %w", r.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bank_meta (key, value) VALUES ('fingerprint', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fingerprint); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadBank returns the stored rules sorted by ID and the fingerprint they were saved with.
// An empty store returns no rules and no error.
func (s *SQLite) LoadBank(ctx context.Context) ([]model.PatternRule, string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM bank_rules ORDER BY rule_id`)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query bank: %w", err)
	}
	defer rows.Close()

	var rules []model.PatternRule
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, "", err
		}
		var r model.PatternRule
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, "", fmt.Errorf("failed to decode rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var fingerprint string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM bank_meta WHERE key = 'fingerprint'`).Scan(&fingerprint)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", err
	}
	return rules, fingerprint, nil
}
