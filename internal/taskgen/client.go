// Package taskgen is the HTTP client for the companion service that
// generates personalised action tasks and serves summarised climate news.
// The service itself (news fetching, LLM prompting) lives elsewhere; this
// package only speaks its JSON contract:
//
//	POST /api/generate-task   {occupation,city,country} → {task,points}
//	GET  /api/climate-news?count=&days=                 → {news:[...]}
//
// Requests carry "Authorization: Bearer <api key>" through an oauth2
// static token source, so the key never has to be threaded through call sites.
package taskgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/climate-crew/internal/model"
)

// ErrUpstream marks a failed or malformed response from the generator
// service. Handlers map it to 502.
var ErrUpstream = errors.New("taskgen: upstream failure")

const (
	DefaultNewsCount = 10
	DefaultNewsDays  = 3
	MaxNewsCount     = 50

	defaultTimeout = 30 * time.Second
)

// Article is one summarised news item.
type Article struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	SourceURL   string `json:"source_url"`
	PublishedAt string `json:"published_at,omitempty"`
	SourceName  string `json:"source_name"`
	ImageURL    string `json:"image_url,omitempty"`
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// Option customises a Client.
type Option func(*clientOptions)

type clientOptions struct {
	base    *http.Client
	timeout time.Duration
}

// WithHTTPClient sets the client that the oauth2 transport wraps.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.base = c }
}

func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// New builds a client for the service at baseURL. An empty apiKey sends
// requests without an Authorization header.
func New(baseURL, apiKey string, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("taskgen: invalid base URL %q", baseURL)
	}

	o := clientOptions{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{}
	if o.base != nil {
		copied := *o.base
		hc = &copied
	}
	if apiKey != "" {
		// oauth2.NewClient picks the base client up from the context.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: apiKey,
			TokenType:   "Bearer",
		}))
	}
	hc.Timeout = o.timeout

	return &Client{baseURL: u, http: hc, logger: logger}, nil
}

type generateRequest struct {
	Occupation string `json:"occupation,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

type generateResponse struct {
	Task   string `json:"task"`
	Points int    `json:"points"`
}

// GenerateTask asks the service for a task tailored to the profile. The
// returned text is not validated beyond being non-empty; points may be zero
// when the service leaves the reward to the caller.
func (c *Client) GenerateTask(ctx context.Context, profile model.Profile) (string, int, error) {
	body, err := json.Marshal(generateRequest{
		Occupation: profile.Occupation,
		City:       profile.City,
		Country:    profile.Country,
	})
	if err != nil {
		return "", 0, fmt.Errorf("taskgen: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/generate-task", nil), bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("taskgen: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out generateResponse
	if err := c.do(req, &out); err != nil {
		return "", 0, err
	}

	task := strings.TrimSpace(out.Task)
	if task == "" {
		return "", 0, fmt.Errorf("%w: empty task in response", ErrUpstream)
	}
	if out.Points < 0 {
		out.Points = 0
	}

	c.logger.Debug("task generated", slog.Int("points", out.Points))
	return task, out.Points, nil
}

type newsResponse struct {
	News []Article `json:"news"`
}

// ClimateNews fetches up to count summarised articles from the last days
// days. Non-positive arguments fall back to the defaults; count is capped at
// MaxNewsCount.
func (c *Client) ClimateNews(ctx context.Context, count, days int) ([]Article, error) {
	if count <= 0 {
		count = DefaultNewsCount
	}
	if count > MaxNewsCount {
		count = MaxNewsCount
	}
	if days <= 0 {
		days = DefaultNewsDays
	}

	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	q.Set("days", strconv.Itoa(days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/climate-news", q), nil)
	if err != nil {
		return nil, fmt.Errorf("taskgen: building request: %w", err)
	}

	var out newsResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.News == nil {
		out.News = []Article{}
	}
	return out.News, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends req and decodes a 200 JSON body into out. Any other status is
// reported with the service's {"error": "..."} message when it sent one.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUpstream, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &body)

		c.logger.Warn("task generator returned an error",
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("error", body.Error),
		)
		return fmt.Errorf("%w: %s returned status %d %s", ErrUpstream, req.URL.Path, resp.StatusCode, body.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrUpstream, req.URL.Path, err)
	}
	return nil
}
