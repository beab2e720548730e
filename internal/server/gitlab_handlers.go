package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/newhook/pipewatch/internal/pipeline"
)

// gitlabToken reads the user's token from the session cookie, falling back
// to an Authorization: Bearer header.
func (s *Server) gitlabToken(c *gin.Context) string {
	if token, err := c.Cookie(s.tokenCookie); err == nil && token != "" {
		return token
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (s *Server) handleProjects(c *gin.Context) {
	projects, err := s.gitlab.ListProjects(c.Request.Context(), s.gitlabToken(c))
	if err != nil {
		fail(c, err, "Unable to fetch projects")
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handlePipelines(c *gin.Context) {
	pipelines, err := s.gitlab.ListPipelines(c.Request.Context(), s.gitlabToken(c), c.Param("projectId"))
	if err != nil {
		fail(c, err, "Unable to fetch pipelines")
		return
	}
	c.JSON(http.StatusOK, pipelines)
}

func (s *Server) handleJobs(c *gin.Context) {
	jobs, err := s.gitlab.ListJobs(c.Request.Context(), s.gitlabToken(c), c.Param("projectId"), c.Param("id"))
	if err != nil {
		fail(c, err, "Unable to fetch jobs")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", jobs)
}

func (s *Server) handleJobLogs(c *gin.Context) {
	trace, err := s.gitlab.JobTrace(c.Request.Context(), s.gitlabToken(c), c.Param("projectId"), c.Param("id"))
	if err != nil {
		fail(c, err, "Unable to fetch job logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": pipeline.TraceLines(trace)})
}
