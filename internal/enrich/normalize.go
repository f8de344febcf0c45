package enrich

import (
	"github.com/sbasu-dev/cfdataset/internal/models"
)

// normalizeContests converts raw rating changes into contest events.
// Records missing their contest id cannot be resolved or causally filtered
// and are reported as skipped instead of silently carried.
func normalizeContests(raw []models.RatingChange) ([]models.ContestEvent, []SkippedContest) {
	events := make([]models.ContestEvent, 0, len(raw))
	var skipped []SkippedContest

	for i := range raw {
		rc := &raw[i]
		if err := rc.Validate(); err != nil {
			skipped = append(skipped, SkippedContest{
				ContestID: rc.ContestID,
				Reason:    err.Error(),
			})
			continue
		}
		events = append(events, models.ContestEvent{
			ContestID: rc.ContestID,
			Handle:    rc.Handle,
			Rank:      rc.Rank,
			OldRating: rc.OldRating,
			NewRating: rc.NewRating,
		})
	}

	return events, skipped
}

// normalizeSubmissions flattens raw submissions: the nested problem
// descriptor becomes the event's Rating/HasRating and Tags fields. Tags is
// never nil afterwards; a missing problem rating stays missing rather than
// becoming zero. Records without id, creation time, or verdict are counted
// as dropped.
func normalizeSubmissions(raw []models.Submission) ([]models.SubmissionEvent, int) {
	events := make([]models.SubmissionEvent, 0, len(raw))
	dropped := 0

	for i := range raw {
		sub := &raw[i]
		if err := sub.Validate(); err != nil {
			dropped++
			continue
		}

		ev := models.SubmissionEvent{
			ID:                  sub.ID,
			CreationTimeSeconds: sub.CreationTimeSeconds,
			Verdict:             sub.Verdict,
			Tags:                []string{},
		}
		if sub.Problem.Rating != nil {
			ev.Rating = *sub.Problem.Rating
			ev.HasRating = true
		}
		if len(sub.Problem.Tags) > 0 {
			ev.Tags = append([]string(nil), sub.Problem.Tags...)
		}
		events = append(events, ev)
	}

	return events, dropped
}
