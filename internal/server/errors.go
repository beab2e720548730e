package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/newhook/pipewatch/internal/extract"
	"github.com/newhook/pipewatch/internal/github"
	"github.com/newhook/pipewatch/internal/gitlab"
	"github.com/newhook/pipewatch/internal/logging"
)

// errArchiveTooLarge is returned when a log archive exceeds the configured limit.
var errArchiveTooLarge = errors.New("log archive exceeds the configured size limit")

// statusFor maps an error to the response status.
func statusFor(err error) int {
	var glErr *gitlab.APIError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, github.ErrMissingToken), errors.Is(err, gitlab.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, github.ErrInvalidArgument), errors.Is(err, gitlab.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.As(err, &maxErr), errors.Is(err, errArchiveTooLarge), errors.Is(err, extract.ErrTooLarge), errors.Is(err, github.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &glErr) && glErr.StatusCode == http.StatusUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {"error": message}. Server-side details go to the log, not the client.
func fail(c *gin.Context, err error, message string) {
	status := statusFor(err)
	logging.Error(message,
		"requestID", c.GetString(requestIDKey),
		"route", c.FullPath(),
		"status", status,
		"error", err)

	var extractionErr *extract.ExtractionError
	switch {
	case status == http.StatusUnauthorized:
		message = "Unauthorized"
	case status == http.StatusBadRequest, status == http.StatusRequestEntityTooLarge:
		message = err.Error()
	case errors.As(err, &extractionErr):
		message = extractionErr.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
