package http

import (
	"errors"
	"net/http"

	"campaignhub/internal/logging"
	"campaignhub/internal/server/app"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger logging.Logger, err error) {
	status := statusFor(err)
	logger = logging.FromContext(c.Request.Context(), logger)
	if status >= http.StatusInternalServerError {
		logger.Error("HTTP %d - %s: %v", status, c.FullPath(), err)
	} else {
		logger.Warn("HTTP %d - %s: %v", status, c.FullPath(), err)
	}
	c.JSON(status, errorResponse{Success: false, Message: app.Message(err)})
}

func writeBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Success: false, Message: message})
}
