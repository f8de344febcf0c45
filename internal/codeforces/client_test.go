package codeforces

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, ClientConfig{
		MaxRetries:        3,
		RetryDelayBase:    time.Millisecond,
		RequestsPerSecond: 1000, // no pacing in tests
		Burst:             1000,
	})
}

func TestUserRating(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user.rating" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("handle"); got != "tourist" {
			t.Errorf("handle = %q, want tourist", got)
		}
		w.Write([]byte(`{"status":"OK","result":[
			{"contestId":1,"contestName":"Beta Round #1","handle":"tourist",
			 "rank":5,"ratingUpdateTimeSeconds":1266588000,"oldRating":0,"newRating":1602},
			{"contestId":2,"contestName":"Beta Round #2","handle":"tourist",
			 "rank":1,"ratingUpdateTimeSeconds":126799200,"oldRating":1602,"newRating":1764}
		]}`))
	})

	changes, err := client.UserRating(context.Background(), "tourist")
	if err != nil {
		t.Fatalf("UserRating: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("got %d rating changes, want 2", len(changes))
	}
	if changes[0].ContestID != 1 || changes[0].NewRating != 1602 {
		t.Errorf("unexpected first change: %+v", changes[0])
	}
}

func TestUserStatus_NestedProblem(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","result":[
			{"id":10,"contestId":1,"creationTimeSeconds":500,"verdict":"OK",
			 "problem":{"contestId":1,"index":"A","rating":1200,"tags":["dp","math"]}},
			{"id":11,"contestId":1,"creationTimeSeconds":600,"verdict":"WRONG_ANSWER",
			 "problem":{"contestId":1,"index":"B"}}
		]}`))
	})

	subs, err := client.UserStatus(context.Background(), "someone")
	if err != nil {
		t.Fatalf("UserStatus: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d submissions, want 2", len(subs))
	}
	if subs[0].Problem.Rating == nil || *subs[0].Problem.Rating != 1200 {
		t.Errorf("expected rating 1200, got %v", subs[0].Problem.Rating)
	}
	if len(subs[0].Problem.Tags) != 2 {
		t.Errorf("expected 2 tags, got %v", subs[0].Problem.Tags)
	}
	if subs[1].Problem.Rating != nil {
		t.Errorf("absent rating should stay nil, got %d", *subs[1].Problem.Rating)
	}
	if subs[1].Problem.Tags != nil {
		t.Errorf("absent tags should stay nil, got %v", subs[1].Problem.Tags)
	}
}

func TestFailedEnvelopeBecomesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"FAILED","comment":"handle: User with handle nobody not found"}`))
	})

	_, err := client.UserRating(context.Background(), "nobody")
	if err == nil {
		t.Fatal("expected error for FAILED envelope")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Method != "user.rating" {
		t.Errorf("method = %q, want user.rating", apiErr.Method)
	}
	if apiErr.Comment == "" {
		t.Error("comment should carry the upstream message")
	}
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"OK","result":[]}`))
	})

	if _, err := client.UserRating(context.Background(), "x"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestMaxRetriesExceeded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.UserRating(context.Background(), "x"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestContestStandingsHandles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("contestId") != "1700" || q.Get("from") != "1" || q.Get("count") != "1000" {
			t.Errorf("unexpected query: %v", q)
		}
		w.Write([]byte(`{"status":"OK","result":{
			"contest":{"id":1700,"name":"Round 1700","phase":"FINISHED","durationSeconds":7200,"startTimeSeconds":1655044500},
			"rows":[
				{"rank":1,"party":{"members":[{"handle":"alice"}]}},
				{"rank":2,"party":{"members":[{"handle":"bob"},{"handle":"carol"}]}},
				{"rank":3,"party":{"members":[{"handle":"alice"}]}}
			]}}`))
	})

	standings, err := client.ContestStandings(context.Background(), 1700, 1, 1000)
	if err != nil {
		t.Fatalf("ContestStandings: %v", err)
	}
	handles := standings.Handles()
	want := []string{"alice", "bob", "carol"}
	if len(handles) != len(want) {
		t.Fatalf("handles = %v, want %v", handles, want)
	}
	for i := range want {
		if handles[i] != want[i] {
			t.Errorf("handles[%d] = %q, want %q", i, handles[i], want[i])
		}
	}
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.UserRating(ctx, "x"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
