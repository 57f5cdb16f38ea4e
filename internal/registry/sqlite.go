package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore keeps one row per feature record. Save replaces every row in a
// single transaction, so readers never observe a half-written registry.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and applies migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS features (
		feature_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		approval_status TEXT NOT NULL,
		proposal_issue_number INTEGER,
		record TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS registry_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Load reads every record, normalizing each one.
func (s *SQLiteStore) Load(ctx context.Context) (*Registry, error) {
	reg := New()

	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM registry_meta WHERE key = 'updated_at'`).Scan(&updated)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read registry meta: %w", err)
	}
	reg.UpdatedAt = parseTime(updated)

	rows, err := s.db.QueryContext(ctx, `SELECT record FROM features ORDER BY feature_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := decodeRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		reg.Items = append(reg.Items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Normalize(reg), nil
}

// Save replaces the stored registry with reg.
func (s *SQLiteStore) Save(ctx context.Context, reg *Registry) error {
	reg.UpdatedAt = s.now().UTC()
	normalized := Normalize(reg)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM features`); err != nil {
		return fmt.Errorf("failed to clear features: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO features (feature_id, status, approval_status, proposal_issue_number, record) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range normalized.Items {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", rec.FeatureID, err)
		}
		var issue interface{}
		if rec.ProposalIssueNumber != nil {
			issue = *rec.ProposalIssueNumber
		}
		if _, err := stmt.ExecContext(ctx, rec.FeatureID, string(rec.Status), string(rec.ApprovalStatus), issue, string(data)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", rec.FeatureID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO registry_meta (key, value) VALUES ('updated_at', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		reg.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to update registry meta: %w", err)
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
