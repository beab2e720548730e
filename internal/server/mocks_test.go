package server

import (
	"context"
	"encoding/json"

	"github.com/newhook/pipewatch/internal/github"
	"github.com/newhook/pipewatch/internal/gitlab"
)

// GitHubMock is a function-field mock of GitHub. Unset functions panic.
type GitHubMock struct {
	ListRepositoriesFunc func(ctx context.Context, token string) ([]string, error)
	ListCommitsFunc      func(ctx context.Context, token, owner, repo string) (json.RawMessage, error)
	ListRunsFunc         func(ctx context.Context, token, owner, repo string) (*github.RunsSummary, error)
	DownloadRunLogsFunc  func(ctx context.Context, token, owner, repo string, runID int64) ([]byte, error)
}

var _ GitHub = (*GitHubMock)(nil)

func (m *GitHubMock) ListRepositories(ctx context.Context, token string) ([]string, error) {
	if m.ListRepositoriesFunc == nil {
		panic("GitHubMock.ListRepositoriesFunc: method is nil but GitHub.ListRepositories was just called")
	}
	return m.ListRepositoriesFunc(ctx, token)
}

func (m *GitHubMock) ListCommits(ctx context.Context, token, owner, repo string) (json.RawMessage, error) {
	if m.ListCommitsFunc == nil {
		panic("GitHubMock.ListCommitsFunc: method is nil but GitHub.ListCommits was just called")
	}
	return m.ListCommitsFunc(ctx, token, owner, repo)
}

func (m *GitHubMock) ListRuns(ctx context.Context, token, owner, repo string) (*github.RunsSummary, error) {
	if m.ListRunsFunc == nil {
		panic("GitHubMock.ListRunsFunc: method is nil but GitHub.ListRuns was just called")
	}
	return m.ListRunsFunc(ctx, token, owner, repo)
}

func (m *GitHubMock) DownloadRunLogs(ctx context.Context, token, owner, repo string, runID int64) ([]byte, error) {
	if m.DownloadRunLogsFunc == nil {
		panic("GitHubMock.DownloadRunLogsFunc: method is nil but GitHub.DownloadRunLogs was just called")
	}
	return m.DownloadRunLogsFunc(ctx, token, owner, repo, runID)
}

// GitLabMock is a function-field mock of GitLab. Unset functions panic.
type GitLabMock struct {
	ListProjectsFunc  func(ctx context.Context, token string) (*gitlab.Projects, error)
	ListPipelinesFunc func(ctx context.Context, token, projectID string) (*gitlab.Pipelines, error)
	ListJobsFunc      func(ctx context.Context, token, projectID, pipelineID string) (json.RawMessage, error)
	JobTraceFunc      func(ctx context.Context, token, projectID, jobID string) ([]byte, error)
}

var _ GitLab = (*GitLabMock)(nil)

func (m *GitLabMock) ListProjects(ctx context.Context, token string) (*gitlab.Projects, error) {
	if m.ListProjectsFunc == nil {
		panic("GitLabMock.ListProjectsFunc: method is nil but GitLab.ListProjects was just called")
	}
	return m.ListProjectsFunc(ctx, token)
}

func (m *GitLabMock) ListPipelines(ctx context.Context, token, projectID string) (*gitlab.Pipelines, error) {
	if m.ListPipelinesFunc == nil {
		panic("GitLabMock.ListPipelinesFunc: method is nil but GitLab.ListPipelines was just called")
	}
	return m.ListPipelinesFunc(ctx, token, projectID)
}

func (m *GitLabMock) ListJobs(ctx context.Context, token, projectID, pipelineID string) (json.RawMessage, error) {
	if m.ListJobsFunc == nil {
		panic("GitLabMock.ListJobsFunc: method is nil but GitLab.ListJobs was just called")
	}
	return m.ListJobsFunc(ctx, token, projectID, pipelineID)
}

func (m *GitLabMock) JobTrace(ctx context.Context, token, projectID, jobID string) ([]byte, error) {
	if m.JobTraceFunc == nil {
		panic("GitLabMock.JobTraceFunc: method is nil but GitLab.JobTrace was just called")
	}
	return m.JobTraceFunc(ctx, token, projectID, jobID)
}
