// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists research records in SQLite. The coordinator writes
// through it after every pipeline step; the submission path and the
// streaming publisher read from it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-pilot/pkg/types"
)

// ErrNotFound is returned when no record exists for the given id.
var ErrNotFound = errors.New("research record not found")

// ErrInvalidTransition is returned when a status update would move a record
// backwards in its lifecycle or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store manages the research record database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at cfg.Path and ensures the
// schema exists.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = "research-pilot.db"
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS research (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			status TEXT NOT NULL,
			requested_sources TEXT NOT NULL,
			results TEXT,
			synthesis TEXT,
			credibility_score REAL,
			error TEXT,
			parent_research_id TEXT,
			created_at TEXT NOT NULL,
			completed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_research_created_at ON research(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_research_status ON research(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Create inserts a new record. The caller assigns the id; CreatedAt is set
// here if zero.
func (s *Store) Create(ctx context.Context, rec *types.ResearchRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = types.StatusPending
	}

	sourcesJSON, err := json.Marshal(rec.RequestedSources)
	if err != nil {
		return fmt.Errorf("marshaling requested sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO research (id, query, status, requested_sources, parent_research_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Query, string(rec.Status), string(sourcesJSON),
		rec.ParentID, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting research record: %w", err)
	}
	return nil
}

// Get reads one record by id. Returns ErrNotFound when no record exists.
func (s *Store) Get(ctx context.Context, id string) (*types.ResearchRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, status, requested_sources, results, synthesis,
		        credibility_score, error, parent_research_id, created_at, completed_at
		 FROM research WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// UpdateStatus advances a record's lifecycle state. Transitions that do not
// advance (same state excepted) return ErrInvalidTransition; a record in a
// terminal state never changes again. Entering completed stamps
// completed_at. An error message may be recorded alongside failed.
func (s *Store) UpdateStatus(ctx context.Context, id string, status types.Status, errMsg string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM research WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading current status: %w", err)
	}

	cur := types.Status(current)
	if cur == status {
		return tx.Commit()
	}
	if cur.Terminal() || status.Rank() <= cur.Rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, status)
	}

	var completedAt any
	if status == types.StatusCompleted {
		completedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	var errVal any
	if errMsg != "" {
		errVal = errMsg
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE research SET status = ?, error = COALESCE(?, error), completed_at = COALESCE(?, completed_at)
		 WHERE id = ?`,
		string(status), errVal, completedAt, id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return tx.Commit()
}

// SaveResults persists the fan-out results for a record.
func (s *Store) SaveResults(ctx context.Context, id string, results []types.SourceResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	return s.updateColumn(ctx, id, "results", string(data))
}

// SaveSynthesis persists the synthesized answer for a record.
func (s *Store) SaveSynthesis(ctx context.Context, id, synthesis string) error {
	return s.updateColumn(ctx, id, "synthesis", synthesis)
}

// SaveCredibility persists the credibility score for a record.
func (s *Store) SaveCredibility(ctx context.Context, id string, score float64) error {
	return s.updateColumn(ctx, id, "credibility_score", score)
}

func (s *Store) updateColumn(ctx context.Context, id, column string, value any) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE research SET %s = ? WHERE id = ?`, column), value, id)
	if err != nil {
		return fmt.Errorf("updating %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one record. Child records keep their parent_research_id;
// follow-up lookups treat a missing parent as absent context.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM research WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting research record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns records newest first. limit <= 0 means a default page of 50.
func (s *Store) List(ctx context.Context, limit, offset int) ([]types.ResearchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, status, requested_sources, results, synthesis,
		        credibility_score, error, parent_research_id, created_at, completed_at
		 FROM research ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing research records: %w", err)
	}
	defer rows.Close()

	var records []types.ResearchRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*types.ResearchRecord, error) {
	var (
		rec                              types.ResearchRecord
		status                           string
		sourcesJSON                      string
		resultsJSON, synthesis, errMsg   sql.NullString
		parentID, createdAt, completedAt sql.NullString
		credibility                      sql.NullFloat64
	)

	err := row.Scan(&rec.ID, &rec.Query, &status, &sourcesJSON, &resultsJSON,
		&synthesis, &credibility, &errMsg, &parentID, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = types.Status(status)
	if err := json.Unmarshal([]byte(sourcesJSON), &rec.RequestedSources); err != nil {
		return nil, fmt.Errorf("decoding requested sources for %s: %w", rec.ID, err)
	}
	if resultsJSON.Valid && resultsJSON.String != "" {
		if err := json.Unmarshal([]byte(resultsJSON.String), &rec.Results); err != nil {
			return nil, fmt.Errorf("decoding results for %s: %w", rec.ID, err)
		}
	}
	rec.Synthesis = synthesis.String
	rec.Error = errMsg.String
	rec.ParentID = parentID.String
	if credibility.Valid {
		rec.CredibilityScore = &credibility.Float64
	}
	if createdAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, createdAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", rec.ID, err)
		}
		rec.CreatedAt = t
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at for %s: %w", rec.ID, err)
		}
		rec.CompletedAt = &t
	}
	return &rec, nil
}
