// Package storage provides SQLite-backed persistence for the contest
// catalog cache, discovered user handles, and collected feature rows.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sbasu-dev/cfdataset/internal/catalog"
	"github.com/sbasu-dev/cfdataset/internal/enrich"
	"github.com/sbasu-dev/cfdataset/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath. ":memory:" is
// accepted for tests.
func New(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contests (
			id                 INTEGER PRIMARY KEY,
			name               TEXT NOT NULL,
			phase              TEXT NOT NULL,
			duration_seconds   INTEGER NOT NULL DEFAULT 0,
			start_time_seconds INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			handle        TEXT PRIMARY KEY,
			discovered_at INTEGER NOT NULL,
			collected_at  INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS dataset_rows (
			handle             TEXT NOT NULL,
			row_index          INTEGER NOT NULL,
			contest_id         INTEGER NOT NULL,
			rank               INTEGER NOT NULL,
			old_rating         INTEGER NOT NULL,
			new_rating         INTEGER NOT NULL,
			start_time_seconds INTEGER NOT NULL,
			acceptance_rate    REAL NOT NULL,
			avg_rating         REAL NOT NULL,
			tag_counts         TEXT NOT NULL DEFAULT '{}',
			run_id             TEXT NOT NULL,
			collected_at       INTEGER NOT NULL,
			PRIMARY KEY (handle, row_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dataset_rows_run ON dataset_rows(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveContests replaces the cached contest catalog entries.
func (s *Storage) SaveContests(contests []models.ContestInfo) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO contests
			(id, name, phase, duration_seconds, start_time_seconds)
		VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare contest insert: %w", err)
	}
	defer stmt.Close()

	for _, info := range contests {
		var start any
		if info.StartTimeSeconds > 0 {
			start = info.StartTimeSeconds
		}
		if _, err := stmt.Exec(info.ID, info.Name, info.Phase, info.DurationSeconds, start); err != nil {
			return fmt.Errorf("failed to insert contest %d: %w", info.ID, err)
		}
	}
	return tx.Commit()
}

// LoadCatalog builds a reference catalog from the cached contests.
func (s *Storage) LoadCatalog() (*catalog.Catalog, error) {
	rows, err := s.db.Query(`
		SELECT id, name, phase, duration_seconds, start_time_seconds
		FROM contests ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contests: %w", err)
	}
	defer rows.Close()

	var contests []models.ContestInfo
	for rows.Next() {
		var info models.ContestInfo
		var start sql.NullInt64
		if err := rows.Scan(&info.ID, &info.Name, &info.Phase, &info.DurationSeconds, &start); err != nil {
			return nil, fmt.Errorf("failed to scan contest: %w", err)
		}
		if start.Valid {
			info.StartTimeSeconds = start.Int64
		}
		contests = append(contests, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return catalog.FromContests(contests), nil
}

// ContestCount reports how many contests are cached.
func (s *Storage) ContestCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM contests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count contests: %w", err)
	}
	return n, nil
}

// SaveUsers registers discovered handles, keeping already known ones.
func (s *Storage) SaveUsers(handles []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO users (handle, discovered_at) VALUES (?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare user insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, handle := range handles {
		if handle == "" {
			continue
		}
		if _, err := stmt.Exec(handle, now); err != nil {
			return fmt.Errorf("failed to insert user %s: %w", handle, err)
		}
	}
	return tx.Commit()
}

// PendingUsers returns handles not yet collected, oldest discoveries
// first. limit 0 means no cap.
func (s *Storage) PendingUsers(limit int) ([]string, error) {
	q := `SELECT handle FROM users WHERE collected_at IS NULL ORDER BY discovered_at, handle`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending users: %w", err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan handle: %w", err)
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

// MarkCollected stamps a handle as processed.
func (s *Storage) MarkCollected(handle string) error {
	res, err := s.db.Exec(`UPDATE users SET collected_at = ? WHERE handle = ?`,
		time.Now().UnixNano(), handle)
	if err != nil {
		return fmt.Errorf("failed to mark user collected: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user not found: %s", handle)
	}
	return nil
}

// UserCount reports how many handles are registered.
func (s *Storage) UserCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// SaveResult persists one user's enriched rows under the given run id.
// Re-collecting a user replaces all of their previous rows. Rows are keyed
// by their position in the result, not by contest id: a contest id can
// legitimately appear twice in a user's history (re-rated rounds), and
// both rows must survive.
func (s *Storage) SaveResult(runID string, result *enrich.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM dataset_rows WHERE handle = ?`, result.Handle); err != nil {
		return fmt.Errorf("failed to clear previous rows: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO dataset_rows
			(handle, row_index, contest_id, rank, old_rating, new_rating,
			 start_time_seconds, acceptance_rate, avg_rating,
			 tag_counts, run_id, collected_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for i := range result.Rows {
		row := &result.Rows[i]
		tagJSON, err := json.Marshal(row.TagCounts)
		if err != nil {
			return fmt.Errorf("failed to marshal tag counts: %w", err)
		}
		if _, err := stmt.Exec(
			row.Handle, i, row.ContestID, row.Rank, row.OldRating, row.NewRating,
			row.StartTimeSeconds, row.AcceptanceRate, row.AvgRating,
			string(tagJSON), runID, now,
		); err != nil {
			return fmt.Errorf("failed to insert row for %s/%d: %w", row.Handle, row.ContestID, err)
		}
	}
	return tx.Commit()
}

// RowsForUser loads a user's persisted rows, ordered by start time.
func (s *Storage) RowsForUser(handle string) ([]models.EnrichedRow, error) {
	rows, err := s.db.Query(`
		SELECT handle, contest_id, rank, old_rating, new_rating,
		       start_time_seconds, acceptance_rate, avg_rating, tag_counts
		FROM dataset_rows WHERE handle = ? ORDER BY start_time_seconds, row_index`, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var result []models.EnrichedRow
	for rows.Next() {
		var row models.EnrichedRow
		var tagJSON string
		if err := rows.Scan(
			&row.Handle, &row.ContestID, &row.Rank, &row.OldRating, &row.NewRating,
			&row.StartTimeSeconds, &row.AcceptanceRate, &row.AvgRating, &tagJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(tagJSON), &row.TagCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tag counts: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// AllRows loads every persisted dataset row, grouped by handle with each
// user's rows in their enrichment order.
func (s *Storage) AllRows() ([]models.EnrichedRow, error) {
	rows, err := s.db.Query(`
		SELECT handle, contest_id, rank, old_rating, new_rating,
		       start_time_seconds, acceptance_rate, avg_rating, tag_counts
		FROM dataset_rows ORDER BY handle, row_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var result []models.EnrichedRow
	for rows.Next() {
		var row models.EnrichedRow
		var tagJSON string
		if err := rows.Scan(
			&row.Handle, &row.ContestID, &row.Rank, &row.OldRating, &row.NewRating,
			&row.StartTimeSeconds, &row.AcceptanceRate, &row.AvgRating, &tagJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(tagJSON), &row.TagCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tag counts: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// RowCount reports how many dataset rows are stored.
func (s *Storage) RowCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM dataset_rows`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}
