package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/david-jerry/heroku-suibison/internal/domain/errors"
)

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondError maps a service error onto an HTTP status and the domain code.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "internal error"
	var details map[string]interface{}

	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message
		details = domainErr.Details
	} else {
		message = err.Error()
	}

	switch {
	case apperrors.IsNotFound(err):
		status = http.StatusNotFound
	case apperrors.IsAlreadyExists(err), apperrors.IsConflict(err):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidInput):
		status = http.StatusBadRequest
	case apperrors.IsIntegrity(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, ErrorResponse{Code: code, Message: message, Details: details})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: message})
}

// userIDParam parses the numeric user id path parameter.
func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "invalid user id")
		return 0, false
	}
	return id, true
}

// parseIntParam parses a query parameter to int with default value
func parseIntParam(c *gin.Context, param string, defaultVal int) int {
	if val := c.Query(param); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
