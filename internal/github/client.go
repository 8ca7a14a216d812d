// Package github is a small client for the GitHub REST API v3 covering the
// endpoints the bot needs: issue search, label inventory and issue creation.
package github

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
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mudlet/bugbot/internal/labels"
	"github.com/mudlet/bugbot/internal/types"
)

const (
	// DefaultBaseURL is the public GitHub API root
	DefaultBaseURL = "https://api.github.com"
	// MaxSearchTerms caps the keywords sent in a search query
	MaxSearchTerms = 5

	labelsPerPage = 100
	userAgent     = "mudlet-bug-bot"
)

var (
	// ErrNoCredentials is returned when neither a token nor app credentials are configured
	ErrNoCredentials = errors.New("either a token or GitHub App credentials (app id, private key path, installation id) must be provided")
	// ErrAppAuthUnsupported is returned when only GitHub App credentials are configured
	ErrAppAuthUnsupported = errors.New("GitHub App authentication is not yet implemented, use a personal access token instead")
)

// Config holds client configuration
type Config struct {
	Token          string
	AppID          string
	PrivateKeyPath string
	InstallationID string
	Repo           string // owner/name

	BaseURL           string       // Defaults to DefaultBaseURL
	HTTPClient        *http.Client // Defaults to a client with a 10s timeout
	RequestsPerSecond float64      // 0 means 1 request per second with a burst of 5
	Logger            *slog.Logger
}

// Client is a minimal wrapper around GitHub's REST API v3 scoped to one repository
type Client struct {
	http    *http.Client
	token   string
	baseURL string
	owner   string
	name    string
	limiter *rate.Limiter
	log     *slog.Logger

	mu     sync.Mutex
	labels []string // nil until first fetch
}

// Issue identifies a created issue
type Issue struct {
	Number int
	URL    string
}

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: %s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("github: %s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// HTTPStatus returns the response status code
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// NewClient returns a client for cfg.Repo authenticated with a personal access token
func NewClient(cfg Config) (*Client, error) {
	if cfg.AppID != "" && cfg.PrivateKeyPath != "" && cfg.InstallationID != "" {
		return nil, ErrAppAuthUnsupported
	}
	if cfg.Token == "" {
		return nil, ErrNoCredentials
	}

	owner, name, err := SplitRepo(cfg.Repo)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	limit, burst := rate.Limit(1), 5
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		http:    httpClient,
		token:   cfg.Token,
		baseURL: baseURL,
		owner:   owner,
		name:    name,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}, nil
}

// SplitRepo parses an "owner/name" repository reference
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", repo)
	}
	return owner, name, nil
}

// Repo returns the repository as owner/name
func (c *Client) Repo() string {
	return c.owner + "/" + c.name
}

// SearchQuery builds the issue search query for keywords
func (c *Client) SearchQuery(keywords []string) string {
	if len(keywords) > MaxSearchTerms {
		keywords = keywords[:MaxSearchTerms]
	}
	terms := strings.Join(keywords, " ")
	return fmt.Sprintf("%s repo:%s is:issue", terms, c.Repo())
}

type searchResponse struct {
	Items []struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
		State   string `json:"state"`
	} `json:"items"`
}

// SearchIssues returns up to maxResults issues matching keywords, most recently updated first
func (c *Client) SearchIssues(ctx context.Context, keywords []string, maxResults int) ([]types.CandidateIssue, error) {
	if len(keywords) == 0 || maxResults <= 0 {
		return []types.CandidateIssue{}, nil
	}
	query := c.SearchQuery(keywords)
	c.log.Info("searching issues", "query", query)

	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "updated")
	q.Set("order", "desc")
	q.Set("per_page", strconv.Itoa(min(maxResults, 100)))

	var out searchResponse
	if err := c.do(ctx, http.MethodGet, "/search/issues", q, nil, &out); err != nil {
		return nil, err
	}

	results := make([]types.CandidateIssue, 0, min(len(out.Items), maxResults))
	for _, item := range out.Items {
		if len(results) >= maxResults {
			break
		}
		results = append(results, types.CandidateIssue{
			Number: item.Number,
			Title:  item.Title,
			URL:    item.HTMLURL,
			State:  types.IssueState(item.State),
		})
	}
	c.log.Info("found potential duplicates", "count", len(results))
	return results, nil
}

// Labels returns the repository's label names, fetched once and cached
func (c *Client) Labels(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.labels != nil {
		return c.labels, nil
	}

	path := fmt.Sprintf("/repos/%s/%s/labels", url.PathEscape(c.owner), url.PathEscape(c.name))
	names := []string{}
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(labelsPerPage))
		q.Set("page", strconv.Itoa(page))

		var batch []struct {
			Name string `json:"name"`
		}
		if err := c.do(ctx, http.MethodGet, path, q, nil, &batch); err != nil {
			return nil, fmt.Errorf("failed to fetch labels: %w", err)
		}
		for _, l := range batch {
			names = append(names, l.Name)
		}
		if len(batch) < labelsPerPage {
			break
		}
	}

	c.labels = names
	c.log.Info("cached repository labels", "repo", c.Repo(), "count", len(names))
	return names, nil
}

// InvalidateLabels drops the cached label inventory
func (c *Client) InvalidateLabels() {
	c.mu.Lock()
	c.labels = nil
	c.mu.Unlock()
}

type createIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

type createIssueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// CreateIssue files report as a new issue. Labels the repository does not
// define are dropped before filing.
func (c *Client) CreateIssue(ctx context.Context, report *types.BugReport) (*Issue, error) {
	inventory, err := c.Labels(ctx)
	if err != nil {
		return nil, err
	}
	valid := labels.ValidateLabels(report.Labels, inventory)
	if dropped := labels.Dropped(report.Labels, inventory); len(dropped) > 0 {
		c.log.Warn("filtered invalid labels", "labels", dropped)
	}

	path := fmt.Sprintf("/repos/%s/%s/issues", url.PathEscape(c.owner), url.PathEscape(c.name))
	req := createIssueRequest{Title: report.Title(), Body: report.GitHubBody(), Labels: valid}

	var out createIssueResponse
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	c.log.Info("created issue", "number", out.Number, "url", out.HTMLURL)
	return &Issue{Number: out.Number, URL: out.HTMLURL}, nil
}

// do executes one rate-limited request and decodes the JSON reply into v
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &msg)
		return &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Message: msg.Message}
	}

	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
