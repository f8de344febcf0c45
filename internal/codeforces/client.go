// Package codeforces provides a client for the Codeforces REST API.
//
// Every response uses the same envelope: {"status": "OK"|"FAILED",
// "comment": ..., "result": ...}. A FAILED status is surfaced as *APIError
// carrying the upstream comment; it is never retried here beyond the
// transport-level retry loop.
package codeforces

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/sbasu-dev/cfdataset/internal/models"
)

// Client provides paced access to the Codeforces API. All requests pass
// through a shared rate limiter, so the pacing contract holds no matter how
// many goroutines use the client.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig holds retry and pacing options.
type ClientConfig struct {
	MaxRetries        int
	RetryDelayBase    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewClient creates a Codeforces API client.
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 0.5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// APIError is a FAILED response envelope: the request reached Codeforces
// but was rejected (unknown handle, malformed parameter, call limit).
type APIError struct {
	Method  string
	Comment string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("codeforces %s failed: %s", e.Method, e.Comment)
}

type envelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

// UserRating returns the rated contest history of a handle, oldest first.
func (c *Client) UserRating(ctx context.Context, handle string) ([]models.RatingChange, error) {
	params := url.Values{"handle": {handle}}
	var changes []models.RatingChange
	if err := c.call(ctx, "user.rating", params, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// UserStatus returns the full submission history of a handle, newest first.
func (c *Client) UserStatus(ctx context.Context, handle string) ([]models.Submission, error) {
	params := url.Values{"handle": {handle}}
	var subs []models.Submission
	if err := c.call(ctx, "user.status", params, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// ContestList returns the global contest catalog, newest first.
func (c *Client) ContestList(ctx context.Context) ([]models.ContestInfo, error) {
	var contests []models.ContestInfo
	if err := c.call(ctx, "contest.list", url.Values{"gym": {"false"}}, &contests); err != nil {
		return nil, err
	}
	return contests, nil
}

// Standings is the result payload of contest.standings.
type Standings struct {
	Contest models.ContestInfo `json:"contest"`
	Rows    []StandingsRow     `json:"rows"`
}

// StandingsRow is one ranked party in the standings.
type StandingsRow struct {
	Rank  int   `json:"rank"`
	Party Party `json:"party"`
}

// Party identifies the participants behind one standings row.
type Party struct {
	Members []Member `json:"members"`
}

// Member is a single participant handle.
type Member struct {
	Handle string `json:"handle"`
}

// Handles returns every distinct member handle in the standings, in
// first-seen order.
func (s *Standings) Handles() []string {
	seen := make(map[string]bool)
	var handles []string
	for _, row := range s.Rows {
		for _, m := range row.Party.Members {
			if m.Handle == "" || seen[m.Handle] {
				continue
			}
			seen[m.Handle] = true
			handles = append(handles, m.Handle)
		}
	}
	return handles
}

// ContestStandings returns up to count standings rows of one contest,
// starting at the 1-based rank from.
func (c *Client) ContestStandings(ctx context.Context, contestID, from, count int) (*Standings, error) {
	params := url.Values{
		"contestId":      {strconv.Itoa(contestID)},
		"from":           {strconv.Itoa(from)},
		"count":          {strconv.Itoa(count)},
		"showUnofficial": {"false"},
	}
	var standings Standings
	if err := c.call(ctx, "contest.standings", params, &standings); err != nil {
		return nil, err
	}
	return &standings, nil
}

// call performs one API method call with pacing and linear-backoff retry,
// then decodes the envelope's result into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	u := fmt.Sprintf("%s/%s", c.baseURL, method)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := c.doRequest(ctx, method, u)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if env.Status != "OK" {
		comment := env.Comment
		if comment == "" {
			comment = "unknown API error"
		}
		return &APIError{Method: method, Comment: comment}
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, urlStr string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !c.sleep(ctx, c.retryDelayBase*time.Duration(i+1)) {
				return nil, ctx.Err()
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read %s body: %w", method, err)
			if !c.sleep(ctx, c.retryDelayBase*time.Duration(i+1)) {
				return nil, ctx.Err()
			}
			continue
		}

		// Codeforces throttles with 429 and occasionally 503; both deserve
		// a longer wait than plain server errors.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			lastErr = fmt.Errorf("%s throttled: status %d", method, resp.StatusCode)
			if !c.sleep(ctx, c.retryDelayBase*time.Duration(i+1)*5) {
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s server error: status %d", method, resp.StatusCode)
			if !c.sleep(ctx, c.retryDelayBase*time.Duration(i+1)) {
				return nil, ctx.Err()
			}
			continue
		}

		// 4xx responses still carry the envelope with a comment; let the
		// caller decode it into an APIError.
		return body, nil
	}

	return nil, fmt.Errorf("%s: max retries exceeded: %w", method, lastErr)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
