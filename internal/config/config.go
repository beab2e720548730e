// Package config loads the pipewatch TOML configuration.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed templates/config.tmpl
var configTemplateText string

// DefaultFile is the config file name looked up when no path is given.
const DefaultFile = "pipewatch.toml"

// Config represents the configuration stored in pipewatch.toml.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	GitHub  GitHubConfig  `toml:"github"`
	GitLab  GitLabConfig  `toml:"gitlab"`
	Cache   CacheConfig   `toml:"cache"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address. Defaults to ":3000".
	Addr string `toml:"addr"`

	// ReadTimeoutSeconds bounds reading a request. Defaults to 30 seconds.
	ReadTimeoutSeconds *int `toml:"read_timeout_seconds"`

	// MaxArchiveMB limits uploaded and downloaded log archives. Defaults to 100.
	MaxArchiveMB *int `toml:"max_archive_mb"`

	// MaxUncompressedMB limits the decompressed size of one log archive.
	// Defaults to 1024.
	MaxUncompressedMB *int `toml:"max_uncompressed_mb"`
}

// GetAddr returns the listen address or ":3000" if not set.
func (s *ServerConfig) GetAddr() string {
	if s.Addr == "" {
		return ":3000"
	}
	return s.Addr
}

// GetReadTimeout returns the request read timeout.
// Defaults to 30 seconds when not specified.
func (s *ServerConfig) GetReadTimeout() time.Duration {
	if s.ReadTimeoutSeconds != nil && *s.ReadTimeoutSeconds > 0 {
		return time.Duration(*s.ReadTimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// GetMaxArchiveBytes returns the archive size limit in bytes.
func (s *ServerConfig) GetMaxArchiveBytes() int64 {
	mb := 100
	if s.MaxArchiveMB != nil && *s.MaxArchiveMB > 0 {
		mb = *s.MaxArchiveMB
	}
	return int64(mb) << 20
}

// GetMaxUncompressedBytes returns the decompressed archive size limit in bytes.
func (s *ServerConfig) GetMaxUncompressedBytes() int64 {
	mb := 1024
	if s.MaxUncompressedMB != nil && *s.MaxUncompressedMB > 0 {
		mb = *s.MaxUncompressedMB
	}
	return int64(mb) << 20
}

// GitHubConfig contains GitHub access configuration.
type GitHubConfig struct {
	// GHPath is the gh CLI binary used for API calls. Defaults to "gh".
	GHPath string `toml:"gh_path"`

	// Hostname selects a GitHub Enterprise host. Empty means github.com.
	Hostname string `toml:"hostname"`

	// RunsPerPage is how many workflow runs are listed. Defaults to 30.
	RunsPerPage *int `toml:"runs_per_page"`
}

// GetGHPath returns the gh binary or "gh" if not set.
func (g *GitHubConfig) GetGHPath() string {
	if g.GHPath == "" {
		return "gh"
	}
	return g.GHPath
}

// GetRunsPerPage returns the number of runs to list, capped at GitHub's maximum of 100.
func (g *GitHubConfig) GetRunsPerPage() int {
	if g.RunsPerPage == nil || *g.RunsPerPage <= 0 {
		return 30
	}
	return min(*g.RunsPerPage, 100)
}

// GitLabConfig contains GitLab access configuration.
type GitLabConfig struct {
	// APIURL is the GitLab REST base URL. Defaults to "https://gitlab.com/api/v4".
	APIURL string `toml:"api_url"`

	// TimeoutSeconds bounds each GitLab request. Defaults to 30 seconds.
	TimeoutSeconds *int `toml:"timeout_seconds"`

	// TokenCookie is the cookie carrying the GitLab access token. Defaults to "gitlab_token".
	TokenCookie string `toml:"token_cookie"`
}

// GetAPIURL returns the GitLab API base URL.
func (g *GitLabConfig) GetAPIURL() string {
	if g.APIURL == "" {
		return "https://gitlab.com/api/v4"
	}
	return g.APIURL
}

// GetTimeout returns the GitLab request timeout.
func (g *GitLabConfig) GetTimeout() time.Duration {
	if g.TimeoutSeconds != nil && *g.TimeoutSeconds > 0 {
		return time.Duration(*g.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// GetTokenCookie returns the token cookie name.
func (g *GitLabConfig) GetTokenCookie() string {
	if g.TokenCookie == "" {
		return "gitlab_token"
	}
	return g.TokenCookie
}

// CacheConfig contains listing cache configuration.
type CacheConfig struct {
	// TTLSeconds is how long API listings are reused. Defaults to 60 seconds.
	// A negative value disables caching.
	TTLSeconds *int `toml:"ttl_seconds"`

	// CleanupSeconds is the purge interval for expired listings. Defaults to 300 seconds.
	CleanupSeconds *int `toml:"cleanup_seconds"`
}

// GetTTL returns the listing TTL. Zero means caching is disabled.
func (c *CacheConfig) GetTTL() time.Duration {
	if c.TTLSeconds == nil {
		return time.Minute
	}
	if *c.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(*c.TTLSeconds) * time.Second
}

// GetCleanupInterval returns the purge interval.
func (c *CacheConfig) GetCleanupInterval() time.Duration {
	if c.CleanupSeconds != nil && *c.CleanupSeconds > 0 {
		return time.Duration(*c.CleanupSeconds) * time.Second
	}
	return 5 * time.Minute
}

// LoggingConfig contains structured log configuration.
type LoggingConfig struct {
	// File receives JSON log records. Empty disables logging, "-" means stderr.
	File string `toml:"file"`

	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `toml:"level"`
}

// Default returns a config with every field at its default.
func Default() *Config {
	return &Config{}
}

// Load reads and parses a config file. A missing file yields the defaults.
// Environment variables PIPEWATCH_ADDR and GITLAB_API_URL override the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PIPEWATCH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("GITLAB_API_URL"); v != "" {
		c.GitLab.APIURL = v
	}
}

// tomlString formats a string for TOML output with proper escaping.
// It wraps the string in double quotes and escapes special characters.
func tomlString(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}

// configTemplate is the parsed template for generating documented config files.
var configTemplate = template.Must(template.New("config").Funcs(template.FuncMap{
	"tomlString": tomlString,
}).Parse(configTemplateText))

// GenerateDocumented renders a config file with every option explained.
// Effective values are written; defaults are used for unset options.
func (c *Config) GenerateDocumented() (string, error) {
	data := map[string]any{
		"Addr":               c.Server.GetAddr(),
		"ReadTimeoutSeconds": int(c.Server.GetReadTimeout() / time.Second),
		"MaxArchiveMB":       c.Server.GetMaxArchiveBytes() >> 20,
		"MaxUncompressedMB":  c.Server.GetMaxUncompressedBytes() >> 20,
		"GHPath":             c.GitHub.GetGHPath(),
		"Hostname":           c.GitHub.Hostname,
		"RunsPerPage":        c.GitHub.GetRunsPerPage(),
		"GitLabAPIURL":       c.GitLab.GetAPIURL(),
		"GitLabTimeout":      int(c.GitLab.GetTimeout() / time.Second),
		"TokenCookie":        c.GitLab.GetTokenCookie(),
		"CacheTTL":           int(c.Cache.GetTTL() / time.Second),
		"CacheCleanup":       int(c.Cache.GetCleanupInterval() / time.Second),
		"LogFile":            c.Logging.File,
		"LogLevel":           c.Logging.Level,
	}
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render config template: %w", err)
	}
	return buf.String(), nil
}

// SaveDocumented writes a fully documented config to the specified path.
func (c *Config) SaveDocumented(path string) error {
	content, err := c.GenerateDocumented()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}
