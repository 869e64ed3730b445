// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the calling actor from headers set by the upstream
// gateway. Authentication happens before requests reach this service; the
// headers are trusted as-is:
//
//   - X-User-ID:       opaque user identifier
//   - X-User-Role:     user | staff | admin (anything else is a user)
//   - X-Department-ID: department a staff member acts for
//
// The actor is stored in the Gin context and read back with ActorFrom. The
// bare user id is also stored under "userID" for logging and rate limiting.
package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

// Actor headers.
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserRole     = "X-User-Role"
	HeaderDepartmentID = "X-Department-ID"
)

const (
	ctxKeyActor  = "actor"
	ctxKeyUserID = "userID"
)

// Actor parses the actor headers into a domain.Actor. A malformed department
// id is ignored rather than rejected; handlers that need it report the
// missing binding themselves.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		a := domain.Actor{
			UserID: strings.TrimSpace(c.GetHeader(HeaderUserID)),
			Role:   domain.ParseRole(c.GetHeader(HeaderUserRole)),
		}
		if raw := strings.TrimSpace(c.GetHeader(HeaderDepartmentID)); raw != "" {
			if n, err := strconv.ParseUint(raw, 10, 64); err == nil && n > 0 {
				id := uint(n)
				a.DepartmentID = &id
			}
		}
		c.Set(ctxKeyActor, a)
		if a.UserID != "" {
			c.Set(ctxKeyUserID, a.UserID)
		}
		c.Next()
	}
}

// ActorFrom returns the actor attached by Actor. Without the middleware it
// falls back to reading the headers directly, so handlers behave the same in
// isolation tests.
func ActorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(ctxKeyActor); ok {
		if a, ok := v.(domain.Actor); ok {
			return a
		}
	}
	var a domain.Actor
	if c.Request == nil {
		a.Role = domain.RoleUser
		return a
	}
	a.UserID = strings.TrimSpace(c.GetHeader(HeaderUserID))
	a.Role = domain.ParseRole(c.GetHeader(HeaderUserRole))
	if n, err := strconv.ParseUint(strings.TrimSpace(c.GetHeader(HeaderDepartmentID)), 10, 64); err == nil && n > 0 {
		id := uint(n)
		a.DepartmentID = &id
	}
	return a
}

// userIDFromCtx returns the actor's user id, or "" when anonymous.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ActorFrom(c).UserID
}
