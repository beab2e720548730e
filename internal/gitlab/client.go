// Package gitlab lists projects, pipelines and jobs and downloads job traces
// from the GitLab REST API on behalf of a user token.
package gitlab

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newhook/pipewatch/internal/cachemanager"
	"github.com/newhook/pipewatch/internal/config"
	"github.com/newhook/pipewatch/internal/logging"
)

const (
	// DefaultAPIURL is the gitlab.com REST endpoint.
	DefaultAPIURL = "https://gitlab.com/api/v4"

	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 4 << 10
)

var (
	// ErrMissingToken is returned when an operation is called without an access token.
	ErrMissingToken = errors.New("missing GitLab access token")
	// ErrInvalidArgument is returned for empty or malformed identifiers.
	ErrInvalidArgument = errors.New("invalid argument")
)

// APIError reports a non-2xx response from GitLab.
type APIError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab %s returned HTTP %d: %s", e.Path, e.StatusCode, e.Body)
}

// Project is the subset of a GitLab project used for listings.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Projects is the projects listing in dashboard form.
type Projects struct {
	Names    []string          `json:"projectName"`
	IDs      []int64           `json:"projectId"`
	Projects []json.RawMessage `json:"projects"`
}

// Pipelines is the pipelines listing in dashboard form.
type Pipelines struct {
	IDs      []int64  `json:"pipelineId"`
	Statuses []string `json:"status"`
}

// Client is a GitLab REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      cachemanager.CacheManager[string, []byte]
	cacheTTL   time.Duration
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// Cache stores listing responses. Nil or a zero CacheTTL disables caching.
	Cache    cachemanager.CacheManager[string, []byte]
	CacheTTL time.Duration
}

// NewClient creates a new GitLab client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
	}
}

// NewClientFromConfig creates a client for the configured GitLab instance.
func NewClientFromConfig(cfg *config.Config) *Client {
	opts := Options{
		BaseURL:    cfg.GitLab.GetAPIURL(),
		HTTPClient: &http.Client{Timeout: cfg.GitLab.GetTimeout()},
		CacheTTL:   cfg.Cache.GetTTL(),
	}
	if opts.CacheTTL > 0 {
		opts.Cache = cachemanager.NewInMemoryCacheManager[string, []byte]("gitlab", opts.CacheTTL, cfg.Cache.GetCleanupInterval())
	}
	return NewClient(opts)
}

const projectsPath = "/projects?membership=true"

// ListProjects returns the projects the token's user is a member of.
func (c *Client) ListProjects(ctx context.Context, token string) (*Projects, error) {
	body, err := c.cachedGet(ctx, token, projectsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		c.invalidate(ctx, token, projectsPath)
		return nil, fmt.Errorf("failed to parse projects: %w", err)
	}

	result := &Projects{
		Names:    make([]string, 0, len(raw)),
		IDs:      make([]int64, 0, len(raw)),
		Projects: raw,
	}
	for _, r := range raw {
		var p Project
		if err := json.Unmarshal(r, &p); err != nil {
			c.invalidate(ctx, token, projectsPath)
			return nil, fmt.Errorf("failed to parse project: %w", err)
		}
		result.Names = append(result.Names, p.Name)
		result.IDs = append(result.IDs, p.ID)
	}
	return result, nil
}

// ListPipelines returns the pipeline ids and statuses of a project.
func (c *Client) ListPipelines(ctx context.Context, token, projectID string) (*Pipelines, error) {
	if err := validateID("project", projectID); err != nil {
		return nil, err
	}
	path := "/projects/" + url.PathEscape(projectID) + "/pipelines"
	body, err := c.cachedGet(ctx, token, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}

	var pipelines []struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &pipelines); err != nil {
		c.invalidate(ctx, token, path)
		return nil, fmt.Errorf("failed to parse pipelines: %w", err)
	}

	result := &Pipelines{
		IDs:      make([]int64, 0, len(pipelines)),
		Statuses: make([]string, 0, len(pipelines)),
	}
	for _, p := range pipelines {
		result.IDs = append(result.IDs, p.ID)
		result.Statuses = append(result.Statuses, p.Status)
	}
	return result, nil
}

// ListJobs returns the jobs of a pipeline as returned by GitLab.
func (c *Client) ListJobs(ctx context.Context, token, projectID, pipelineID string) (json.RawMessage, error) {
	if err := validateID("project", projectID); err != nil {
		return nil, err
	}
	if err := validateID("pipeline", pipelineID); err != nil {
		return nil, err
	}
	path := "/projects/" + url.PathEscape(projectID) + "/pipelines/" + url.PathEscape(pipelineID) + "/jobs"
	body, err := c.cachedGet(ctx, token, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if !json.Valid(body) {
		c.invalidate(ctx, token, path)
		return nil, fmt.Errorf("failed to parse jobs: invalid JSON response")
	}
	return json.RawMessage(body), nil
}

// JobTrace returns the raw trace of a job. Traces are never cached.
func (c *Client) JobTrace(ctx context.Context, token, projectID, jobID string) ([]byte, error) {
	if err := validateID("project", projectID); err != nil {
		return nil, err
	}
	if err := validateID("job", jobID); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	logging.Info("downloading job trace", "projectID", projectID, "jobID", jobID)

	body, err := c.get(ctx, token, "/projects/"+url.PathEscape(projectID)+"/jobs/"+url.PathEscape(jobID)+"/trace")
	if err != nil {
		logging.Error("job trace download failed", "error", err, "jobID", jobID)
		return nil, fmt.Errorf("failed to download job trace: %w", err)
	}

	logging.Info("downloaded job trace", "jobID", jobID, "bytes", len(body))
	return body, nil
}

func (c *Client) cachedGet(ctx context.Context, token, path string) ([]byte, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	key := cacheKey(token, path)
	if c.cache != nil && c.cacheTTL > 0 {
		if cached, ok := c.cache.Get(ctx, key); ok {
			logging.Debug("gitlab cache hit", "path", path)
			return cached, nil
		}
	}

	body, err := c.get(ctx, token, path)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		c.cache.Set(ctx, key, body, c.cacheTTL)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, token, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		logging.Error("gitlab request failed", "path", path, "status", resp.StatusCode)
		return nil, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// invalidate drops a cached response that could not be parsed.
func (c *Client) invalidate(ctx context.Context, token, path string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, cacheKey(token, path)); err != nil {
		logging.Warn("failed to invalidate gitlab cache entry", "error", err, "path", path)
	}
}

// cacheKey scopes a cached response to the token without keeping the token itself.
func cacheKey(token, path string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8]) + ":" + path
}

func validateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s ID is required", ErrInvalidArgument, kind)
	}
	return nil
}
