package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/covercheck/internal/apperror"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Count   *int64            `json:"count,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var errNotFound = apperror.NotFound("route_not_found", "not found")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return apperror.Validation(code, field, message)
}

func mapError(err error) (int, errorPayload) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	}

	appErr, ok := apperror.As(err)
	if !ok {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	payload := errorPayload{
		Type:    string(appErr.Kind),
		Code:    appErr.Code,
		Message: appErr.Message,
	}

	switch appErr.Kind {
	case apperror.KindValidation:
		payload.Message = "validation error"
		payload.Errors = []ValidationError{{
			Field:   appErr.Field,
			Code:    appErr.Code,
			Message: appErr.Message,
		}}
		return http.StatusBadRequest, payload
	case apperror.KindNotFound:
		return http.StatusNotFound, payload
	case apperror.KindAuthorization:
		return http.StatusForbidden, payload
	case apperror.KindInUse:
		count := appErr.Count
		payload.Count = &count
		return http.StatusConflict, payload
	case apperror.KindConflict:
		return http.StatusConflict, payload
	case apperror.KindRateLimited:
		return http.StatusTooManyRequests, payload
	case apperror.KindExtraction:
		return http.StatusUnprocessableEntity, payload
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger without exposing messages.
func classifyErrorForLog(err error) (string, string) {
	if appErr, ok := apperror.As(err); ok {
		return string(appErr.Kind), appErr.Code
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "not_found", "record_not_found"
	}
	return "internal_error", ""
}
