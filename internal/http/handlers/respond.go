package handlers

import (
	"net/http"

	"github.com/devmalhar/ticketdesk/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// APIError is the wire shape inside the "error" envelope.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func requestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(middlewares.CtxRequestID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.GetHeader("X-Request-Id")
}

func RespondError(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, gin.H{"error": APIError{
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(c),
		Details:   details,
	}})
}

func RespondBadRequest(c *gin.Context, message string, details any) {
	RespondError(c, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(c *gin.Context, code, message string) {
	RespondError(c, http.StatusConflict, code, message, nil)
}

func RespondUnAuthorized(c *gin.Context, code, message string) {
	RespondError(c, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(c *gin.Context, message string) {
	RespondError(c, http.StatusForbidden, "forbidden", message, nil)
}

func RespondInternal(c *gin.Context, message string) {
	RespondError(c, http.StatusInternalServerError, "internal_error", message, nil)
}
