package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/newhook/pipewatch/internal/pipeline"
)

// handleStructure structures an uploaded log archive. The request body is
// the raw ZIP.
func (s *Server) handleStructure(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, s.maxArchiveBytes)
	payload, err := io.ReadAll(body)
	if err != nil {
		fail(c, err, "Failed to read log archive")
		return
	}

	result, err := pipeline.BuildTreeWithLimits(payload, s.extractLimits)
	if err != nil {
		fail(c, err, "Failed to structure logs")
		return
	}

	skipped := make([]string, 0, len(result.Skipped))
	for _, e := range result.Skipped {
		skipped = append(skipped, e.Name)
	}
	c.JSON(http.StatusOK, gin.H{"cleanedLog": result.Tree, "skipped": skipped})
}
