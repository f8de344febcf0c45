// Package collector orchestrates batch dataset collection: syncing the
// contest catalog, discovering user handles from standings, and running
// the fetch-enrich-persist cycle over many users.
package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sbasu-dev/cfdataset/internal/catalog"
	"github.com/sbasu-dev/cfdataset/internal/codeforces"
	"github.com/sbasu-dev/cfdataset/internal/dataset"
	"github.com/sbasu-dev/cfdataset/internal/enrich"
	"github.com/sbasu-dev/cfdataset/internal/logger"
	"github.com/sbasu-dev/cfdataset/internal/models"
	"github.com/sbasu-dev/cfdataset/internal/storage"
	"github.com/sbasu-dev/cfdataset/internal/telegram"
)

// Source is the remote data source the collector consumes. The API pacing
// contract lives behind this interface (the codeforces client's shared
// rate limiter), so the collector is free to overlap users.
type Source interface {
	UserRating(ctx context.Context, handle string) ([]models.RatingChange, error)
	UserStatus(ctx context.Context, handle string) ([]models.Submission, error)
	ContestList(ctx context.Context) ([]models.ContestInfo, error)
	ContestStandings(ctx context.Context, contestID, from, count int) (*codeforces.Standings, error)
}

// Notifier receives run-level notifications. It may be nil.
type Notifier interface {
	SendError(err error) error
	SendRecovery(failureCount int) error
	SendSummary(summary telegram.RunSummary) error
}

// Config holds the collector's orchestration settings.
type Config struct {
	Workers           int
	DiscoveryContests int
	StandingsCount    int
	UserLimit         int
	DatasetDir        string
	ContestsCSV       string
	UsersCSV          string
	CombinedCSV       string
}

// RunStats summarizes one collection run.
type RunStats struct {
	RunID       string
	Users       int
	Failed      int
	Rows        int
	SkippedRows int
	Duration    time.Duration
}

// Collector ties the source, storage, and notifier together.
type Collector struct {
	source   Source
	store    *storage.Storage
	notifier Notifier
	config   Config
}

// New creates a collector.
func New(source Source, store *storage.Storage, notifier Notifier, cfg Config) *Collector {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Collector{
		source:   source,
		store:    store,
		notifier: notifier,
		config:   cfg,
	}
}

// SyncContests fetches the global contest list and saves it to storage and
// the catalog CSV, returning the fresh reference catalog.
func (c *Collector) SyncContests(ctx context.Context) (*catalog.Catalog, error) {
	contests, err := c.source.ContestList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contest list: %w", err)
	}
	if err := c.store.SaveContests(contests); err != nil {
		return nil, err
	}
	cat := catalog.FromContests(contests)
	if err := cat.WriteCSV(c.config.ContestsCSV); err != nil {
		return nil, err
	}
	logger.Info("Synced %d contests to %s", cat.Len(), c.config.ContestsCSV)
	return cat, nil
}

// Catalog returns the cached reference catalog, syncing it from the API
// when the cache is empty.
func (c *Collector) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	n, err := c.store.ContestCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		logger.Info("Contest catalog missing, fetching it first")
		return c.SyncContests(ctx)
	}
	return c.store.LoadCatalog()
}

// DiscoverUsers scans the standings of the most recent finished contests
// and registers every distinct participant handle. A contest whose
// standings cannot be fetched is logged and skipped, matching the
// best-effort nature of discovery.
func (c *Collector) DiscoverUsers(ctx context.Context, cat *catalog.Catalog) ([]string, error) {
	seen := make(map[string]bool)
	var handles []string

	scanned := 0
	for _, info := range cat.Contests() {
		if scanned >= c.config.DiscoveryContests {
			break
		}
		if info.Phase != models.PhaseFinished {
			continue
		}
		// A contest whose standings fail still consumes a discovery slot:
		// the budget bounds API calls, not successes.
		scanned++

		standings, err := c.source.ContestStandings(ctx, info.ID, 1, c.config.StandingsCount)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Failed to fetch standings for contest %d: %v", info.ID, err)
			continue
		}
		for _, handle := range standings.Handles() {
			if !seen[handle] {
				seen[handle] = true
				handles = append(handles, handle)
			}
		}
		logger.Info("Fetched users from contest %d (total unique: %d)", info.ID, len(handles))
	}

	if err := c.store.SaveUsers(handles); err != nil {
		return nil, err
	}
	if err := writeUsersCSV(c.config.UsersCSV, handles); err != nil {
		return nil, err
	}
	logger.Info("Discovered %d unique users across %d contests", len(handles), scanned)
	return handles, nil
}

// CollectUser fetches one user's histories and enriches them against the
// catalog. It does not persist anything.
func (c *Collector) CollectUser(ctx context.Context, handle string, cat *catalog.Catalog) (*enrich.Result, error) {
	changes, err := c.source.UserRating(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("contest history for %s: %w", handle, err)
	}
	submissions, err := c.source.UserStatus(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("submission history for %s: %w", handle, err)
	}
	result, err := enrich.Enrich(handle, changes, submissions, cat)
	if err != nil {
		return nil, err
	}
	if result.DroppedSubmissions > 0 {
		logger.Debug("Dropped %d invalid submissions for %s", result.DroppedSubmissions, handle)
	}
	for _, skipped := range result.Skipped {
		logger.Warn("Skipping contest %d for %s: %s", skipped.ContestID, handle, skipped.Reason)
	}
	return result, nil
}

// Run processes the given handles with a bounded worker pool: fetch,
// enrich, persist to storage, and write the per-user CSV. When handles is
// nil the pending users from storage are processed, capped by the
// configured user limit.
func (c *Collector) Run(ctx context.Context, handles []string) (*RunStats, error) {
	if handles == nil {
		var err error
		handles, err = c.store.PendingUsers(c.config.UserLimit)
		if err != nil {
			return nil, err
		}
	} else if c.config.UserLimit > 0 && len(handles) > c.config.UserLimit {
		handles = handles[:c.config.UserLimit]
	}
	if err := c.store.SaveUsers(handles); err != nil {
		return nil, err
	}

	cat, err := c.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{RunID: uuid.New().String()}
	startTime := time.Now()
	logger.Info("Starting collection run %s: %d users, %d workers",
		stats.RunID, len(handles), c.config.Workers)

	var (
		mu                  sync.Mutex
		consecutiveFailures int
	)
	recordOutcome := func(handle string, result *enrich.Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		stats.Users++
		if err != nil {
			stats.Failed++
			consecutiveFailures++
			logger.Error("User %s failed: %v", handle, err)
			if consecutiveFailures == 1 && c.notifier != nil {
				if sendErr := c.notifier.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && c.notifier != nil {
			if sendErr := c.notifier.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification: %v", sendErr)
			}
		}
		consecutiveFailures = 0
		stats.Rows += len(result.Rows)
		stats.SkippedRows += len(result.Skipped)
		if stats.Users%25 == 0 {
			logger.Info("Progress: %d/%d users, %d rows", stats.Users, len(handles), stats.Rows)
		}
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for range c.config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for handle := range jobs {
				result, err := c.processUser(ctx, handle, cat, stats.RunID)
				recordOutcome(handle, result, err)
			}
		}()
	}

feed:
	for _, handle := range handles {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- handle:
		}
	}
	close(jobs)
	wg.Wait()

	stats.Duration = time.Since(startTime)
	logger.Info("Run %s finished: %d users (%d failed), %d rows, %d skipped in %v",
		stats.RunID, stats.Users, stats.Failed, stats.Rows, stats.SkippedRows, stats.Duration)

	if c.notifier != nil {
		if err := c.notifier.SendSummary(telegram.RunSummary{
			RunID:       stats.RunID,
			Users:       stats.Users,
			Failed:      stats.Failed,
			Rows:        stats.Rows,
			SkippedRows: stats.SkippedRows,
			Duration:    stats.Duration,
		}); err != nil {
			logger.Warn("Failed to send run summary: %v", err)
		}
	}

	if ctx.Err() != nil {
		return stats, ctx.Err()
	}
	return stats, nil
}

// ExportDataset rebuilds the combined training table from every persisted
// row. The per-user files each carry their own tag schema; the combined
// file re-encodes all rows under one global vocabulary, the union of tag
// columns across users.
func (c *Collector) ExportDataset() (int, error) {
	rows, err := c.store.AllRows()
	if err != nil {
		return 0, err
	}
	vocab := dataset.GlobalVocabulary(rows)
	if err := dataset.SaveCombined(c.config.CombinedCSV, rows, vocab); err != nil {
		return 0, err
	}
	logger.Info("Exported %d rows with %d tag columns to %s",
		len(rows), len(vocab), c.config.CombinedCSV)
	return len(rows), nil
}

// processUser runs the fetch-enrich-persist cycle for one handle and
// returns the enrichment result so the caller can aggregate stats.
func (c *Collector) processUser(ctx context.Context, handle string, cat *catalog.Catalog, runID string) (*enrich.Result, error) {
	result, err := c.CollectUser(ctx, handle, cat)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveResult(runID, result); err != nil {
		return nil, err
	}
	if _, err := dataset.SaveUser(c.config.DatasetDir, result); err != nil {
		return nil, err
	}
	if err := c.store.MarkCollected(handle); err != nil {
		return nil, err
	}
	return result, nil
}

// writeUsersCSV saves discovered handles, sorted, one per line under a
// "handle" header.
func writeUsersCSV(path string, handles []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create users directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create users file: %w", err)
	}
	defer f.Close()

	sorted := append([]string(nil), handles...)
	sort.Strings(sorted)

	w := csv.NewWriter(f)
	if err := w.Write([]string{"handle"}); err != nil {
		return fmt.Errorf("failed to write users header: %w", err)
	}
	for _, handle := range sorted {
		if err := w.Write([]string{handle}); err != nil {
			return fmt.Errorf("failed to write user row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush users file: %w", err)
	}
	return f.Close()
}
