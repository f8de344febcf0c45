// Package catalog holds the reference contest catalog used to resolve
// contest start times. A catalog is immutable after construction and safe
// to share across concurrent per-user runs.
package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sbasu-dev/cfdataset/internal/models"
)

// Catalog maps contest id to its authoritative start time.
type Catalog struct {
	byID     map[int]int64
	contests []models.ContestInfo
}

// FromContests builds a catalog from contest.list records. Records without
// a start time are kept in the listing but never resolve.
func FromContests(contests []models.ContestInfo) *Catalog {
	c := &Catalog{
		byID:     make(map[int]int64, len(contests)),
		contests: make([]models.ContestInfo, 0, len(contests)),
	}
	for _, info := range contests {
		if info.ID <= 0 {
			continue
		}
		c.contests = append(c.contests, info)
		if info.StartTimeSeconds > 0 {
			c.byID[info.ID] = info.StartTimeSeconds
		}
	}
	return c
}

// StartTime returns the start time of a contest and whether it is known.
func (c *Catalog) StartTime(contestID int) (int64, bool) {
	t, ok := c.byID[contestID]
	return t, ok
}

// Len reports how many contests the catalog lists.
func (c *Catalog) Len() int {
	return len(c.contests)
}

// Contests returns the catalog's listing in insertion order.
func (c *Catalog) Contests() []models.ContestInfo {
	return c.contests
}

var csvHeader = []string{"id", "name", "phase", "durationSeconds", "startTimeSeconds"}

// WriteCSV saves the catalog as a flat file, creating parent directories
// as needed.
func (c *Catalog) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create catalog file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write catalog header: %w", err)
	}
	for _, info := range c.contests {
		start := ""
		if info.StartTimeSeconds > 0 {
			start = strconv.FormatInt(info.StartTimeSeconds, 10)
		}
		record := []string{
			strconv.Itoa(info.ID),
			info.Name,
			info.Phase,
			strconv.FormatInt(info.DurationSeconds, 10),
			start,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write catalog row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush catalog: %w", err)
	}
	return f.Close()
}

// LoadCSV reads a catalog from a flat file. The file must carry at least
// the id and startTimeSeconds columns; extra columns are ignored.
func LoadCSV(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("catalog file %s is empty", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}
	idCol, ok := cols["id"]
	if !ok {
		return nil, fmt.Errorf("catalog file %s has no id column", path)
	}
	startCol, ok := cols["startTimeSeconds"]
	if !ok {
		return nil, fmt.Errorf("catalog file %s has no startTimeSeconds column", path)
	}

	contests := make([]models.ContestInfo, 0, len(records)-1)
	for _, rec := range records[1:] {
		if idCol >= len(rec) || startCol >= len(rec) {
			continue
		}
		id, err := strconv.Atoi(rec[idCol])
		if err != nil {
			return nil, fmt.Errorf("invalid contest id %q: %w", rec[idCol], err)
		}
		info := models.ContestInfo{ID: id}
		if rec[startCol] != "" {
			start, err := strconv.ParseInt(rec[startCol], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid start time %q for contest %d: %w", rec[startCol], id, err)
			}
			info.StartTimeSeconds = start
		}
		if i, ok := cols["name"]; ok && i < len(rec) {
			info.Name = rec[i]
		}
		if i, ok := cols["phase"]; ok && i < len(rec) {
			info.Phase = rec[i]
		}
		if i, ok := cols["durationSeconds"]; ok && i < len(rec) && rec[i] != "" {
			if d, err := strconv.ParseInt(rec[i], 10, 64); err == nil {
				info.DurationSeconds = d
			}
		}
		contests = append(contests, info)
	}

	return FromContests(contests), nil
}
