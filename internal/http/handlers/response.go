// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response helpers shared by all endpoints: the error
// envelope, the mapping from service error kinds to HTTP statuses, and the
// success writers.
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "report not found"
//	}
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/civic-report-backend/internal/http/middleware"
	"github.com/tbourn/civic-report-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"report not found"`
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger and sent to Sentry when a hub is attached.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, code, msg, nil)
}

func failWith(c *gin.Context, status int, code, msg string, cause error) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if cause != nil {
			ev = ev.Err(cause)
		}
		ev.Msg("api error")

		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("code", code)
				scope.SetTag("request_id", resp.RequestID)
				if cause != nil {
					hub.CaptureException(cause)
				} else {
					hub.CaptureMessage(msg)
				}
			})
		}
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error to a status and code by its kind. Internal
// errors never leak their message to the client.
func failErr(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	if status == http.StatusServiceUnavailable {
		msg = "store unavailable, retry later"
	}
	failWith(c, status, code, msg, err)
}

func statusFor(err error) (int, string) {
	switch services.KindOf(err) {
	case services.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case services.KindInvalidArgument:
		switch {
		case errors.Is(err, services.ErrUnrecognizedStatus), errors.Is(err, services.ErrInvalidModeration):
			return http.StatusBadRequest, ErrCodeInvalidStatus
		case errors.Is(err, services.ErrDepartmentRequired):
			return http.StatusBadRequest, ErrCodeDepartmentScope
		}
		return http.StatusBadRequest, ErrCodeBadRequest
	case services.KindConflict:
		switch {
		case errors.Is(err, services.ErrBackwardTransition):
			return http.StatusConflict, ErrCodeInvalidTransition
		case errors.Is(err, services.ErrAlreadyModerated):
			return http.StatusConflict, ErrCodeAlreadyModerated
		}
		return http.StatusConflict, ErrCodeConflict
	case services.KindStoreUnavailable:
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// notModified sets a weak ETag built from the parts and reports whether the
// request's If-None-Match already matches it (in which case 304 is written).
func notModified(c *gin.Context, format string, parts ...any) bool {
	etag := fmt.Sprintf(`W/"`+format+`"`, parts...)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
