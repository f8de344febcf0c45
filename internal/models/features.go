package models

// ContestEvent is a normalized contest participation. StartTimeSeconds is
// attached by the timeline resolver from the reference catalog; it is only
// meaningful when StartResolved is true. Bookkeeping fields of the raw
// record (contestName, ratingUpdateTimeSeconds) are dropped here.
type ContestEvent struct {
	ContestID        int
	Handle           string
	Rank             int
	OldRating        int
	NewRating        int
	StartTimeSeconds int64
	StartResolved    bool
}

// SubmissionEvent is a normalized submission. Tags is never nil, even when
// the raw problem descriptor omitted it. HasRating distinguishes a missing
// problem rating from a rating of zero.
type SubmissionEvent struct {
	ID                  int64
	CreationTimeSeconds int64
	Verdict             string
	Rating              int
	HasRating           bool
	Tags                []string
}

// Accepted reports whether the submission passed all tests.
func (s *SubmissionEvent) Accepted() bool {
	return s.Verdict == VerdictOK
}

// EnrichedRow is one output row: the retained contest fields plus the
// causal features computed over submissions made strictly before the
// contest started. TagCounts holds one entry per vocabulary tag, zero
// included, so every row of a run shares an identical column set.
type EnrichedRow struct {
	Handle           string
	ContestID        int
	Rank             int
	OldRating        int
	NewRating        int
	StartTimeSeconds int64

	// AcceptanceRate is acceptedPrior/totalPrior, 0.0 when totalPrior is 0.
	AcceptanceRate float64
	// AvgRating is the mean problem rating over rated accepted prior
	// submissions, 0.0 when none carry a rating.
	AvgRating float64

	TagCounts map[string]int
}
