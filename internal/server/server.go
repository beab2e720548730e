// Package server exposes the dashboard HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newhook/pipewatch/internal/config"
	"github.com/newhook/pipewatch/internal/extract"
	"github.com/newhook/pipewatch/internal/github"
	"github.com/newhook/pipewatch/internal/gitlab"
	"github.com/newhook/pipewatch/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// GitHub is the subset of the GitHub client the server uses.
type GitHub interface {
	ListRepositories(ctx context.Context, token string) ([]string, error)
	ListCommits(ctx context.Context, token, owner, repo string) (json.RawMessage, error)
	ListRuns(ctx context.Context, token, owner, repo string) (*github.RunsSummary, error)
	DownloadRunLogs(ctx context.Context, token, owner, repo string, runID int64) ([]byte, error)
}

// GitLab is the subset of the GitLab client the server uses.
type GitLab interface {
	ListProjects(ctx context.Context, token string) (*gitlab.Projects, error)
	ListPipelines(ctx context.Context, token, projectID string) (*gitlab.Pipelines, error)
	ListJobs(ctx context.Context, token, projectID, pipelineID string) (json.RawMessage, error)
	JobTrace(ctx context.Context, token, projectID, jobID string) ([]byte, error)
}

// Server holds the Gin engine and dependencies for the dashboard API.
type Server struct {
	engine          *gin.Engine
	github          GitHub
	gitlab          GitLab
	addr            string
	readTimeout     time.Duration
	maxArchiveBytes int64
	extractLimits   extract.Limits
	tokenCookie     string
}

// New creates the API server.
func New(cfg *config.Config, gh GitHub, gl GitLab) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog())

	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:          engine,
		github:          gh,
		gitlab:          gl,
		addr:            cfg.Server.GetAddr(),
		readTimeout:     cfg.Server.GetReadTimeout(),
		maxArchiveBytes: cfg.Server.GetMaxArchiveBytes(),
		extractLimits:   extractLimits(cfg.Server.GetMaxUncompressedBytes()),
		tokenCookie:     cfg.GitLab.GetTokenCookie(),
	}

	s.setupRoutes()
	return s
}

// extractLimits caps each archive at total decompressed bytes, and each entry
// at the smaller of total and the default entry limit.
func extractLimits(total int64) extract.Limits {
	return extract.Limits{
		MaxEntryBytes: min(extract.DefaultLimits.MaxEntryBytes, total),
		MaxTotalBytes: total,
	}
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	repos := s.engine.Group("/user/repos/:token")
	repos.GET("", s.handleRepositories)
	repos.GET("/:owner/:repo/commits", s.handleCommits)
	repos.GET("/:owner/:repo/getId", s.handleRuns)
	repos.GET("/:owner/:repo/:run_id/getLogs", s.handleRunLogs)
	repos.GET("/:owner/:repo/:run_id/failures", s.handleRunFailures)

	projects := s.engine.Group("/user/gitlab/projects")
	projects.GET("", s.handleProjects)
	projects.GET("/:projectId/pipelines", s.handlePipelines)
	// The pipeline and job routes share one wildcard name at this depth.
	projects.GET("/:projectId/:id/jobs", s.handleJobs)
	projects.GET("/:projectId/:id/logs", s.handleJobLogs)

	s.engine.POST("/structure", s.handleStructure)
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: s.readTimeout,
		ReadTimeout:       s.readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
