// Package dataset writes enriched feature rows as flat CSV tables.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sbasu-dev/cfdataset/internal/enrich"
	"github.com/sbasu-dev/cfdataset/internal/models"
)

// fixedColumns precede the per-tag count columns in every dataset file.
var fixedColumns = []string{
	"handle", "contestId", "rank", "oldRating", "newRating",
	"startTimeSeconds", "acceptance_rate", "avg_rating",
}

// Header returns the full column set for a vocabulary: the fixed contest
// and feature columns followed by one column per tag.
func Header(vocabulary []string) []string {
	header := make([]string, 0, len(fixedColumns)+len(vocabulary))
	header = append(header, fixedColumns...)
	header = append(header, vocabulary...)
	return header
}

// Write emits rows as CSV. Every row is encoded against the same
// vocabulary, so the file has a stable schema; tags not in the row's
// counts are written as 0.
func Write(w io.Writer, rows []models.EnrichedRow, vocabulary []string, withHeader bool) error {
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(Header(vocabulary)); err != nil {
			return fmt.Errorf("failed to write dataset header: %w", err)
		}
	}

	record := make([]string, 0, len(fixedColumns)+len(vocabulary))
	for i := range rows {
		row := &rows[i]
		record = record[:0]
		record = append(record,
			row.Handle,
			strconv.Itoa(row.ContestID),
			strconv.Itoa(row.Rank),
			strconv.Itoa(row.OldRating),
			strconv.Itoa(row.NewRating),
			strconv.FormatInt(row.StartTimeSeconds, 10),
			strconv.FormatFloat(row.AcceptanceRate, 'f', -1, 64),
			strconv.FormatFloat(row.AvgRating, 'f', -1, 64),
		)
		for _, tag := range vocabulary {
			record = append(record, strconv.Itoa(row.TagCounts[tag]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write dataset row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush dataset: %w", err)
	}
	return nil
}

// SaveUser writes one user's enrichment result to <dir>/<handle>.csv and
// returns the file path. Users with an empty contest history still produce
// a header-only file, so a finished run is distinguishable from a skipped
// one.
func SaveUser(dir string, result *enrich.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dataset directory: %w", err)
	}
	path := filepath.Join(dir, result.Handle+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer f.Close()

	if err := Write(f, result.Rows, result.Vocabulary, true); err != nil {
		return "", err
	}
	return path, f.Close()
}

// GlobalVocabulary returns the sorted union of tag columns across rows
// from any number of users, so one schema can cover a combined table.
func GlobalVocabulary(rows []models.EnrichedRow) []string {
	seen := make(map[string]bool)
	for i := range rows {
		for tag := range rows[i].TagCounts {
			seen[tag] = true
		}
	}
	vocab := make([]string, 0, len(seen))
	for tag := range seen {
		vocab = append(vocab, tag)
	}
	sort.Strings(vocab)
	return vocab
}

// SaveCombined writes every row to one CSV under the given vocabulary,
// replacing any previous file. Rows from users who never touched a tag get
// a 0 in that column.
func SaveCombined(path string, rows []models.EnrichedRow, vocabulary []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create combined dataset file: %w", err)
	}
	defer f.Close()

	if err := Write(f, rows, vocabulary, true); err != nil {
		return err
	}
	return f.Close()
}
