package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/newhook/pipewatch/internal/github"
	"github.com/newhook/pipewatch/internal/logparser"
	"github.com/newhook/pipewatch/internal/pipeline"
)

func (s *Server) handleRepositories(c *gin.Context) {
	names, err := s.github.ListRepositories(c.Request.Context(), c.Param("token"))
	if err != nil {
		fail(c, err, "Failed to fetch repositories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"repoNames": names})
}

func (s *Server) handleCommits(c *gin.Context) {
	commits, err := s.github.ListCommits(c.Request.Context(), c.Param("token"), c.Param("owner"), c.Param("repo"))
	if err != nil {
		fail(c, err, "Failed to fetch commits")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", commits)
}

func (s *Server) handleRuns(c *gin.Context) {
	summary, err := s.github.ListRuns(c.Request.Context(), c.Param("token"), c.Param("owner"), c.Param("repo"))
	if err != nil {
		fail(c, err, "Failed to fetch the Github Actions")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRunLogs(c *gin.Context) {
	result, ok := s.runTree(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleanedLog": result.Tree})
}

func (s *Server) handleRunFailures(c *gin.Context) {
	result, ok := s.runTree(c)
	if !ok {
		return
	}
	failures := logparser.Scan(result.Tree)
	if failures == nil {
		failures = []logparser.Failure{}
	}
	c.JSON(http.StatusOK, gin.H{"failures": failures})
}

// runTree downloads and structures the logs of the run named in the path.
// On failure the response has been written.
func (s *Server) runTree(c *gin.Context) (*pipeline.Result, bool) {
	runID, err := strconv.ParseInt(c.Param("run_id"), 10, 64)
	if err != nil {
		fail(c, fmt.Errorf("%w: run ID %q", github.ErrInvalidArgument, c.Param("run_id")), "Failed to fetch Logs")
		return nil, false
	}

	payload, err := s.github.DownloadRunLogs(c.Request.Context(), c.Param("token"), c.Param("owner"), c.Param("repo"), runID)
	if err != nil {
		fail(c, err, "Failed to fetch Logs")
		return nil, false
	}
	if int64(len(payload)) > s.maxArchiveBytes {
		fail(c, errArchiveTooLarge, "Failed to fetch Logs")
		return nil, false
	}

	result, err := pipeline.BuildTreeWithLimits(payload, s.extractLimits)
	if err != nil {
		fail(c, err, "Failed to fetch Logs")
		return nil, false
	}
	return result, true
}
