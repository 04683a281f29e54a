package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"car-picker/internal/domain"
)

// StatusError is returned for non-2xx responses from the quiz server.
type StatusError struct {
	Op     string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.Code)
}

// Client talks to the car-picker quiz server over HTTP/JSON.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient parses baseURL and builds a client. A zero timeout keeps the
// transport defaults.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse api url: %q is not absolute", baseURL)
	}
	return &Client{base: u, http: &http.Client{Timeout: timeout}}, nil
}

// FetchQuestion requests a new question for the tier and countdown length.
func (c *Client) FetchQuestion(ctx context.Context, difficulty domain.Difficulty, timer int) (domain.Question, error) {
	query := url.Values{}
	query.Set("difficulty", string(difficulty))
	query.Set("timer", strconv.Itoa(timer))

	var q domain.Question
	if err := c.do(ctx, "fetch question", http.MethodGet, "/api/question", query, nil, &q); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// SubmitAnswer posts an answer and returns the server verdict.
func (c *Client) SubmitAnswer(ctx context.Context, submission domain.AnswerSubmission) (domain.AnswerResult, error) {
	var res domain.AnswerResult
	if err := c.do(ctx, "submit answer", http.MethodPost, "/api/answer", nil, submission, &res); err != nil {
		return domain.AnswerResult{}, err
	}
	return res, nil
}

// Leaderboard fetches the server-ordered leaderboard.
func (c *Client) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	var lb domain.Leaderboard
	if err := c.do(ctx, "fetch leaderboard", http.MethodGet, "/api/leaderboard", nil, nil, &lb); err != nil {
		return domain.Leaderboard{}, err
	}
	if lb.Entries == nil {
		lb.Entries = []domain.LeaderboardEntry{}
	}
	return lb, nil
}

// ResetLeaderboard clears all server-side scores and returns how many were removed.
func (c *Client) ResetLeaderboard(ctx context.Context) (int, error) {
	var out struct {
		Cleared int `json:"cleared"`
	}
	if err := c.do(ctx, "reset leaderboard", http.MethodPost, "/api/leaderboard/reset", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Cleared, nil
}

// ResolveImageURL turns the server's image reference into an absolute URL.
func (c *Client) ResolveImageURL(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

// readDetail extracts the {"detail": "..."} message the server uses for errors.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(data))
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}
	return string(payload.Detail)
}
