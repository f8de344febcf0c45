// Package enrich builds a per-contest, point-in-time feature table for one
// user: for every contest, the features describe what was knowable about
// the user strictly before the contest started, so the table can train
// rating-prediction models without leakage.
package enrich

import (
	"errors"
	"sort"

	"github.com/sbasu-dev/cfdataset/internal/catalog"
	"github.com/sbasu-dev/cfdataset/internal/models"
)

// SkippedContest reports one contest event excluded from the output
// because its features could not be computed correctly.
type SkippedContest struct {
	ContestID int
	Reason    string
}

// Result is the output of one Enrich call.
type Result struct {
	Handle string

	// Rows holds one enriched row per usable contest event, in the same
	// relative order as the input contest history.
	Rows []models.EnrichedRow

	// Vocabulary is the ordered tag column set shared by every row:
	// the union of tags over all accepted submissions in the user's
	// history, sorted lexicographically.
	Vocabulary []string

	// Skipped lists contest events excluded from Rows: events without a
	// contest id and events whose start time the catalog cannot resolve.
	// An unresolved start time makes the causal cutoff undefined, and a
	// guessed cutoff would poison the dataset, so such rows are dropped
	// rather than filled.
	Skipped []SkippedContest

	// DroppedSubmissions counts raw submissions discarded during
	// normalization for missing id, creation time, or verdict.
	DroppedSubmissions int
}

// Enrich turns one user's raw contest history and raw submission history
// into enriched feature rows, using the reference catalog to resolve each
// contest's start time. It is a pure function of its inputs: calling it
// twice with identical arguments yields identical results.
func Enrich(handle string, contests []models.RatingChange, submissions []models.Submission, cat *catalog.Catalog) (*Result, error) {
	if cat == nil {
		return nil, errors.New("reference catalog is required")
	}

	events, skipped := normalizeContests(contests)
	subs, dropped := normalizeSubmissions(submissions)

	// Timeline resolution: left join against the catalog. Unmatched ids
	// keep their event; it is excluded later with a reported reason.
	for i := range events {
		if start, ok := cat.StartTime(events[i].ContestID); ok {
			events[i].StartTimeSeconds = start
			events[i].StartResolved = true
		}
	}

	result := &Result{
		Handle:             handle,
		Rows:               []models.EnrichedRow{},
		Vocabulary:         buildVocabulary(subs),
		Skipped:            skipped,
		DroppedSubmissions: dropped,
	}

	aggregate(handle, events, subs, result)
	return result, nil
}

// buildVocabulary collects the distinct tags of every accepted submission
// across the whole history, sorted for a deterministic column order. The
// column set is global schema, not per-row signal: rows dated before a
// tag's first use still carry the column with a count of 0.
func buildVocabulary(subs []models.SubmissionEvent) []string {
	seen := make(map[string]bool)
	for i := range subs {
		if !subs[i].Accepted() {
			continue
		}
		for _, tag := range subs[i].Tags {
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

// cumulative carries the running aggregates of the submission sweep.
type cumulative struct {
	total     int
	accepted  int
	ratedOK   int
	ratingSum int64
	tagCounts map[string]int
}

// aggregate computes the causal features for every resolved contest event
// and appends the assembled rows, in input order, to result.
//
// Submissions are sorted once by creation time and consumed by a running
// cursor while contests are visited in cutoff order, so each cutoff query
// costs amortized O(1) instead of a full rescan. Only submissions with
// creationTimeSeconds strictly below the cutoff contribute: a submission
// made in the same second as the contest start is not prior knowledge.
func aggregate(handle string, events []models.ContestEvent, subs []models.SubmissionEvent, result *Result) {
	sorted := append([]models.SubmissionEvent(nil), subs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreationTimeSeconds < sorted[j].CreationTimeSeconds
	})

	// Visit resolved events in cutoff order but remember where each row
	// belongs, so the output preserves the input contest order.
	order := make([]int, 0, len(events))
	for i := range events {
		if events[i].StartResolved {
			order = append(order, i)
		} else {
			result.Skipped = append(result.Skipped, SkippedContest{
				ContestID: events[i].ContestID,
				Reason:    "start time not found in reference catalog",
			})
		}
	}
	sort.Slice(order, func(a, b int) bool {
		return events[order[a]].StartTimeSeconds < events[order[b]].StartTimeSeconds
	})

	cum := cumulative{tagCounts: make(map[string]int, len(result.Vocabulary))}
	rows := make(map[int]models.EnrichedRow, len(order))
	cursor := 0

	for _, idx := range order {
		ev := events[idx]
		for cursor < len(sorted) && sorted[cursor].CreationTimeSeconds < ev.StartTimeSeconds {
			advance(&cum, &sorted[cursor])
			cursor++
		}
		rows[idx] = assembleRow(handle, ev, &cum, result.Vocabulary)
	}

	for i := range events {
		if row, ok := rows[i]; ok {
			result.Rows = append(result.Rows, row)
		}
	}
}

func advance(cum *cumulative, sub *models.SubmissionEvent) {
	cum.total++
	if !sub.Accepted() {
		return
	}
	cum.accepted++
	if sub.HasRating {
		cum.ratedOK++
		cum.ratingSum += int64(sub.Rating)
	}
	// A submission tagged {A, B} increments both A and B.
	for _, tag := range sub.Tags {
		cum.tagCounts[tag]++
	}
}

// assembleRow merges the contest's retained fields with the scalar
// features and a snapshot of the per-tag counts.
func assembleRow(handle string, ev models.ContestEvent, cum *cumulative, vocab []string) models.EnrichedRow {
	row := models.EnrichedRow{
		Handle:           handle,
		ContestID:        ev.ContestID,
		Rank:             ev.Rank,
		OldRating:        ev.OldRating,
		NewRating:        ev.NewRating,
		StartTimeSeconds: ev.StartTimeSeconds,
		TagCounts:        make(map[string]int, len(vocab)),
	}
	if cum.total > 0 {
		row.AcceptanceRate = float64(cum.accepted) / float64(cum.total)
	}
	if cum.ratedOK > 0 {
		row.AvgRating = float64(cum.ratingSum) / float64(cum.ratedOK)
	}
	for _, tag := range vocab {
		row.TagCounts[tag] = cum.tagCounts[tag]
	}
	return row
}
