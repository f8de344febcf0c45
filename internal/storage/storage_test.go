package storage

import (
	"testing"

	"github.com/sbasu-dev/cfdataset/internal/enrich"
	"github.com/sbasu-dev/cfdataset/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveContestsAndLoadCatalog(t *testing.T) {
	s := newTestStorage(t)
	contests := []models.ContestInfo{
		{ID: 1700, Name: "Round 1700", Phase: "FINISHED", DurationSeconds: 7200, StartTimeSeconds: 1655044500},
		{ID: 1800, Name: "Unscheduled", Phase: "BEFORE"},
	}
	if err := s.SaveContests(contests); err != nil {
		t.Fatalf("SaveContests: %v", err)
	}

	n, err := s.ContestCount()
	if err != nil {
		t.Fatalf("ContestCount: %v", err)
	}
	if n != 2 {
		t.Errorf("contest count = %d, want 2", n)
	}

	cat, err := s.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if start, ok := cat.StartTime(1700); !ok || start != 1655044500 {
		t.Errorf("StartTime(1700) = %d, %v", start, ok)
	}
	if _, ok := cat.StartTime(1800); ok {
		t.Error("contest with NULL start time should not resolve")
	}
}

func TestSaveContests_ReplaceOnConflict(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveContests([]models.ContestInfo{{ID: 1, Name: "Old", Phase: "BEFORE"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveContests([]models.ContestInfo{{ID: 1, Name: "New", Phase: "FINISHED", StartTimeSeconds: 100}}); err != nil {
		t.Fatal(err)
	}
	cat, err := s.LoadCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if cat.Len() != 1 {
		t.Errorf("catalog has %d contests, want 1", cat.Len())
	}
	if start, ok := cat.StartTime(1); !ok || start != 100 {
		t.Errorf("StartTime(1) = %d, %v after replace", start, ok)
	}
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveUsers([]string{"alice", "bob", "", "alice"}); err != nil {
		t.Fatalf("SaveUsers: %v", err)
	}

	n, err := s.UserCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("user count = %d, want 2 (duplicates and empties ignored)", n)
	}

	pending, err := s.PendingUsers(0)
	if err != nil {
		t.Fatalf("PendingUsers: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %v, want 2 handles", pending)
	}

	if err := s.MarkCollected("alice"); err != nil {
		t.Fatalf("MarkCollected: %v", err)
	}
	pending, err = s.PendingUsers(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0] != "bob" {
		t.Errorf("pending after collect = %v, want [bob]", pending)
	}

	if err := s.MarkCollected("nobody"); err == nil {
		t.Error("expected error for unknown handle")
	}
}

func TestPendingUsers_Limit(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveUsers([]string{"a", "b", "c"}); err != nil {
		t.Fatal(err)
	}
	pending, err := s.PendingUsers(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %v, want 2 handles", pending)
	}
}

func TestSaveResultAndRowsForUser(t *testing.T) {
	s := newTestStorage(t)
	result := &enrich.Result{
		Handle:     "alice",
		Vocabulary: []string{"dp", "graphs"},
		Rows: []models.EnrichedRow{
			{
				Handle: "alice", ContestID: 20, Rank: 30, OldRating: 1520, NewRating: 1555,
				StartTimeSeconds: 2000, AcceptanceRate: 0.5, AvgRating: 1300,
				TagCounts: map[string]int{"dp": 2, "graphs": 1},
			},
			{
				Handle: "alice", ContestID: 10, Rank: 40, OldRating: 1500, NewRating: 1520,
				StartTimeSeconds: 1000, AcceptanceRate: 1.0, AvgRating: 1200,
				TagCounts: map[string]int{"dp": 1, "graphs": 0},
			},
		},
	}

	if err := s.SaveResult("run-1", result); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	rows, err := s.RowsForUser("alice")
	if err != nil {
		t.Fatalf("RowsForUser: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	// Ordered by start time.
	if rows[0].ContestID != 10 || rows[1].ContestID != 20 {
		t.Errorf("row order = [%d %d], want [10 20]", rows[0].ContestID, rows[1].ContestID)
	}
	if rows[1].TagCounts["dp"] != 2 {
		t.Errorf("tag counts lost in round trip: %v", rows[1].TagCounts)
	}

	// Re-collecting replaces rather than duplicates.
	if err := s.SaveResult("run-2", result); err != nil {
		t.Fatal(err)
	}
	n, err := s.RowCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("row count after re-collect = %d, want 2", n)
	}
}

func TestSaveResult_RepeatedContestID(t *testing.T) {
	s := newTestStorage(t)
	// A re-rated round appears twice in a user's history with the same
	// contest id. Persistence must keep both rows, like the CSV output.
	result := &enrich.Result{
		Handle:     "alice",
		Vocabulary: []string{"dp"},
		Rows: []models.EnrichedRow{
			{
				Handle: "alice", ContestID: 10, Rank: 5, OldRating: 1500, NewRating: 1520,
				StartTimeSeconds: 1000, TagCounts: map[string]int{"dp": 0},
			},
			{
				Handle: "alice", ContestID: 10, Rank: 5, OldRating: 1520, NewRating: 1540,
				StartTimeSeconds: 1000, AcceptanceRate: 1.0, TagCounts: map[string]int{"dp": 1},
			},
		},
	}
	if err := s.SaveResult("run-1", result); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	rows, err := s.RowsForUser("alice")
	if err != nil {
		t.Fatalf("RowsForUser: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want both participations of contest 10", len(rows))
	}
	// Equal start times fall back to enrichment order.
	if rows[0].OldRating != 1500 || rows[1].OldRating != 1520 {
		t.Errorf("row order = [%d %d], want [1500 1520]", rows[0].OldRating, rows[1].OldRating)
	}
}

func TestAllRows(t *testing.T) {
	s := newTestStorage(t)
	for _, result := range []*enrich.Result{
		{
			Handle:     "bob",
			Vocabulary: []string{"math"},
			Rows: []models.EnrichedRow{
				{Handle: "bob", ContestID: 30, StartTimeSeconds: 3000,
					TagCounts: map[string]int{"math": 2}},
			},
		},
		{
			Handle:     "alice",
			Vocabulary: []string{"dp"},
			Rows: []models.EnrichedRow{
				{Handle: "alice", ContestID: 20, StartTimeSeconds: 2000,
					TagCounts: map[string]int{"dp": 1}},
				{Handle: "alice", ContestID: 10, StartTimeSeconds: 1000,
					TagCounts: map[string]int{"dp": 0}},
			},
		},
	} {
		if err := s.SaveResult("run-1", result); err != nil {
			t.Fatalf("SaveResult(%s): %v", result.Handle, err)
		}
	}

	rows, err := s.AllRows()
	if err != nil {
		t.Fatalf("AllRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	// Grouped by handle, each user's rows kept in enrichment order.
	var got []int
	for _, row := range rows {
		got = append(got, row.ContestID)
	}
	want := []int{20, 10, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row order = %v, want %v", got, want)
		}
	}
}
