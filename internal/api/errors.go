// ABOUTME: Maps core sentinel errors onto HTTP status codes
// ABOUTME: Every error response has the shape {"error": message}
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harper/riskmem/internal/models"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrMalformedDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrSessionClosed),
		errors.Is(err, models.ErrMemoryExpired):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAssessmentUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidVerdict),
		errors.Is(err, models.ErrSessionRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "route", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
