package github

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/newhook/pipewatch/internal/cachemanager"
	"github.com/newhook/pipewatch/internal/config"
	"github.com/newhook/pipewatch/internal/logging"
)

var (
	// ErrMissingToken is returned when an operation is called without an access token.
	ErrMissingToken = errors.New("missing GitHub access token")
	// ErrInvalidArgument is returned for malformed owner, repository or run identifiers.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTooLarge is returned when a response exceeds the caller's size limit.
	ErrTooLarge = errors.New("gh api response exceeds the size limit")
)

// namePattern matches valid owner and repository names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// APIError reports a failed gh api invocation.
type APIError struct {
	Endpoint string
	Stderr   string
	Err      error
}

func (e *APIError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("gh api %s failed: %v: %s", e.Endpoint, e.Err, e.Stderr)
	}
	return fmt.Sprintf("gh api %s failed: %v", e.Endpoint, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Runner executes gh api requests on behalf of a user token.
// A positive maxBytes bounds the response; larger responses fail with ErrTooLarge.
type Runner interface {
	API(ctx context.Context, token, endpoint string, maxBytes int64) ([]byte, error)
}

// ghRunner runs the gh CLI with the user's token in GH_TOKEN.
type ghRunner struct {
	path     string
	hostname string
}

func (r *ghRunner) API(ctx context.Context, token, endpoint string, maxBytes int64) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := []string{"api", endpoint}
	if r.hostname != "" {
		args = append(args, "--hostname", r.hostname)
	}
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Env = append(os.Environ(), "GH_TOKEN="+token, "GH_PROMPT_DISABLED=1")

	stdout := &limitedBuffer{limit: maxBytes, onExceed: cancel}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if stdout.exceeded {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, endpoint)
	}
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.buf.Bytes(), nil
}

// limitedBuffer collects command output up to limit bytes. The first write
// past the limit fails and calls onExceed.
type limitedBuffer struct {
	buf      bytes.Buffer
	limit    int64
	exceeded bool
	onExceed func()
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 && int64(b.buf.Len())+int64(len(p)) > b.limit {
		if !b.exceeded {
			b.exceeded = true
			if b.onExceed != nil {
				b.onExceed()
			}
		}
		return 0, ErrTooLarge
	}
	return b.buf.Write(p)
}

// Client fetches repositories, workflow runs and run logs from GitHub.
type Client struct {
	runner      Runner
	runsPerPage int
	maxLogBytes int64
	cache       cachemanager.CacheManager[string, []byte]
	cacheTTL    time.Duration
}

// Options configures a Client.
type Options struct {
	Runner      Runner
	RunsPerPage int
	// MaxLogBytes bounds a downloaded run log archive. Zero means unlimited.
	MaxLogBytes int64
	// Cache stores listing responses. Nil or a zero CacheTTL disables caching.
	Cache    cachemanager.CacheManager[string, []byte]
	CacheTTL time.Duration
}

// NewClient creates a new GitHub client.
func NewClient(opts Options) *Client {
	if opts.RunsPerPage <= 0 {
		opts.RunsPerPage = 30
	}
	return &Client{
		runner:      opts.Runner,
		runsPerPage: opts.RunsPerPage,
		maxLogBytes: opts.MaxLogBytes,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
	}
}

// NewClientFromConfig creates a client that shells out to the configured gh binary.
func NewClientFromConfig(cfg *config.Config) *Client {
	opts := Options{
		Runner:      &ghRunner{path: cfg.GitHub.GetGHPath(), hostname: cfg.GitHub.Hostname},
		RunsPerPage: cfg.GitHub.GetRunsPerPage(),
		MaxLogBytes: cfg.Server.GetMaxArchiveBytes(),
		CacheTTL:    cfg.Cache.GetTTL(),
	}
	if opts.CacheTTL > 0 {
		opts.Cache = cachemanager.NewInMemoryCacheManager[string, []byte]("github", opts.CacheTTL, cfg.Cache.GetCleanupInterval())
	}
	return NewClient(opts)
}

// ListRepositories returns the names of the repositories the token's user can access.
func (c *Client) ListRepositories(ctx context.Context, token string) ([]string, error) {
	output, err := c.cachedAPI(ctx, token, "user/repos?per_page=100")
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	var repos []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(output, &repos); err != nil {
		c.invalidate(ctx, token, "user/repos?per_page=100")
		return nil, fmt.Errorf("failed to parse repositories: %w", err)
	}

	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.Name)
	}
	return names, nil
}

// ListCommits returns the repository's recent commits as returned by GitHub.
func (c *Client) ListCommits(ctx context.Context, token, owner, repo string) (json.RawMessage, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("repos/%s/%s/commits", owner, repo)
	output, err := c.cachedAPI(ctx, token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	if !json.Valid(output) {
		c.invalidate(ctx, token, endpoint)
		return nil, fmt.Errorf("failed to parse commits: invalid JSON response")
	}
	return json.RawMessage(output), nil
}

// ListRuns returns the repository's recent workflow runs with counts by outcome.
func (c *Client) ListRuns(ctx context.Context, token, owner, repo string) (*RunsSummary, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("repos/%s/%s/actions/runs?per_page=%d", owner, repo, c.runsPerPage)
	output, err := c.cachedAPI(ctx, token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}

	var response struct {
		TotalCount   int           `json:"total_count"`
		WorkflowRuns []WorkflowRun `json:"workflow_runs"`
	}
	if err := json.Unmarshal(output, &response); err != nil {
		c.invalidate(ctx, token, endpoint)
		return nil, fmt.Errorf("failed to parse workflow runs: %w", err)
	}

	summary := Summarize(response.WorkflowRuns)
	summary.TotalCount = response.TotalCount

	logging.Debug("listed workflow runs",
		"owner", owner,
		"repo", repo,
		"numRuns", len(response.WorkflowRuns),
		"totalCount", response.TotalCount)

	return summary, nil
}

// DownloadRunLogs returns the run's log archive. The archive is never cached.
func (c *Client) DownloadRunLogs(ctx context.Context, token, owner, repo string, runID int64) ([]byte, error) {
	if err := validateRepo(owner, repo); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	if runID <= 0 {
		return nil, fmt.Errorf("%w: run ID %d", ErrInvalidArgument, runID)
	}

	logging.Info("downloading run logs", "owner", owner, "repo", repo, "runID", runID)

	output, err := c.runner.API(ctx, token, fmt.Sprintf("repos/%s/%s/actions/runs/%d/logs", owner, repo, runID), c.maxLogBytes)
	if err != nil {
		logging.Error("run log download failed", "error", err, "runID", runID)
		return nil, fmt.Errorf("failed to download run logs: %w", err)
	}

	logging.Info("downloaded run logs", "runID", runID, "bytes", len(output))
	return output, nil
}

// cachedAPI runs a listing request, reusing a cached response for the same
// token and endpoint while it is fresh.
func (c *Client) cachedAPI(ctx context.Context, token, endpoint string) ([]byte, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	key := cacheKey(token, endpoint)
	if c.cache != nil && c.cacheTTL > 0 {
		if cached, ok := c.cache.Get(ctx, key); ok {
			logging.Debug("github cache hit", "endpoint", endpoint)
			return cached, nil
		}
	}

	output, err := c.runner.API(ctx, token, endpoint, 0)
	if err != nil {
		logging.Error("gh api failed", "error", err, "endpoint", endpoint)
		return nil, err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		c.cache.Set(ctx, key, output, c.cacheTTL)
	}
	return output, nil
}

// invalidate drops a cached response that could not be parsed so the next
// call refetches it.
func (c *Client) invalidate(ctx context.Context, token, endpoint string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, cacheKey(token, endpoint)); err != nil {
		logging.Warn("failed to invalidate github cache entry", "error", err, "endpoint", endpoint)
	}
}

// cacheKey scopes a cached response to the token without keeping the token itself.
func cacheKey(token, endpoint string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8]) + ":" + endpoint
}

func validateRepo(owner, repo string) error {
	if owner == "" || repo == "" {
		return fmt.Errorf("%w: owner and repository are required", ErrInvalidArgument)
	}
	if !namePattern.MatchString(owner) || strings.Trim(owner, ".") == "" {
		return fmt.Errorf("%w: owner name %q", ErrInvalidArgument, owner)
	}
	if !namePattern.MatchString(repo) || strings.Trim(repo, ".") == "" {
		return fmt.Errorf("%w: repository name %q", ErrInvalidArgument, repo)
	}
	return nil
}
