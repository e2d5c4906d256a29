// Package summarize compresses long day-marked transcripts into digests,
// re-summarizing only the chunks that cover days not seen before. Chunk
// summaries and the processed-day ledger persist in SQLite so repeated runs
// over a growing transcript pay only for the new days.
package summarize

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists chunk summaries, the set of processed dates, and the latest
// rolling digest.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens or creates the summary database under statePath.
func OpenStore(statePath string) (*Store, error) {
	dbPath := filepath.Join(statePath, "system", "summaries.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunk_summaries (
		chunk_hash TEXT PRIMARY KEY,
		summary    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS processed_dates (
		date         TEXT PRIMARY KEY,
		processed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS digests (
		id         TEXT PRIMARY KEY,
		digest     TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetSummary returns the cached summary for a chunk hash, or "" if absent.
func (s *Store) GetSummary(chunkHash string) (string, error) {
	var summary string
	err := s.db.QueryRow(
		`SELECT summary FROM chunk_summaries WHERE chunk_hash = ?`, chunkHash,
	).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load chunk summary: %w", err)
	}
	return summary, nil
}

// PutSummary stores or replaces the summary for a chunk hash.
func (s *Store) PutSummary(chunkHash, summary string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO chunk_summaries (chunk_hash, summary, created_at) VALUES (?, ?, ?)`,
		chunkHash, summary, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save chunk summary: %w", err)
	}
	return nil
}

// ProcessedDates returns the set of dates whose chunks have been summarized.
func (s *Store) ProcessedDates() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT date FROM processed_dates`)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

// MarkDatesProcessed records dates as summarized.
func (s *Store) MarkDatesProcessed(dates []string) error {
	if len(dates) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, d := range dates {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO processed_dates (date, processed_at) VALUES (?, ?)`,
			d, now,
		); err != nil {
			return fmt.Errorf("failed to mark date %s: %w", d, err)
		}
	}
	return tx.Commit()
}

// GetDigest returns the stored rolling digest for an id, or "" if absent.
func (s *Store) GetDigest(id string) (string, error) {
	var digest string
	err := s.db.QueryRow(`SELECT digest FROM digests WHERE id = ?`, id).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load digest: %w", err)
	}
	return digest, nil
}

// PutDigest stores or replaces the rolling digest for an id.
func (s *Store) PutDigest(id, digest string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO digests (id, digest, updated_at) VALUES (?, ?, ?)`,
		id, digest, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save digest: %w", err)
	}
	return nil
}
