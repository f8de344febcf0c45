// Package models defines the core domain entities: raw Codeforces API
// records, normalized event collections, and enriched feature rows.
package models

import "errors"

// VerdictOK is the verdict value of an accepted submission. Every other
// verdict ("WRONG_ANSWER", "TIME_LIMIT_EXCEEDED", ...) denotes rejection.
const VerdictOK = "OK"

// RatingChange is one raw record from the user.rating API method: a single
// rated participation of one user in one contest.
type RatingChange struct {
	ContestID               int    `json:"contestId"`
	ContestName             string `json:"contestName"`
	Handle                  string `json:"handle"`
	Rank                    int    `json:"rank"`
	RatingUpdateTimeSeconds int64  `json:"ratingUpdateTimeSeconds"`
	OldRating               int    `json:"oldRating"`
	NewRating               int    `json:"newRating"`
}

// Validate checks that the record carries its required identifying field.
func (r *RatingChange) Validate() error {
	if r.ContestID <= 0 {
		return errors.New("rating change must have a positive contest ID")
	}
	return nil
}

// Problem is the nested descriptor inside a raw submission. Rating and Tags
// are optional in the API payload; a nil Rating means the problem has no
// published difficulty.
type Problem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Points    float64  `json:"points"`
	Rating    *int     `json:"rating,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Submission is one raw record from the user.status API method.
// Verdict may be empty while a submission is still in the judging queue.
type Submission struct {
	ID                  int64   `json:"id"`
	ContestID           int     `json:"contestId"`
	CreationTimeSeconds int64   `json:"creationTimeSeconds"`
	Verdict             string  `json:"verdict,omitempty"`
	Problem             Problem `json:"problem"`
}

// Validate checks that the record carries the fields the causal pipeline
// depends on. Optional fields (problem rating, tags) are never required.
func (s *Submission) Validate() error {
	if s.ID <= 0 {
		return errors.New("submission must have a positive ID")
	}
	if s.CreationTimeSeconds <= 0 {
		return errors.New("submission must have a positive creation time")
	}
	if s.Verdict == "" {
		return errors.New("submission must have a verdict")
	}
	return nil
}

// ContestInfo is one raw record from the contest.list API method, used to
// build the reference catalog. StartTimeSeconds is 0 when the API omits it
// (some very old or not yet scheduled contests).
type ContestInfo struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Phase            string `json:"phase"`
	DurationSeconds  int64  `json:"durationSeconds"`
	StartTimeSeconds int64  `json:"startTimeSeconds,omitempty"`
}

// PhaseFinished marks contests whose standings are final.
const PhaseFinished = "FINISHED"
