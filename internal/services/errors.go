// Package services holds the business logic for reports, reactions,
// comments, departments and department conversations. This file centralizes
// the service-level error values and their classification.
//
// Handlers translate errors into HTTP results via KindOf; services never
// choose status codes themselves.
package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/tbourn/civic-report-backend/internal/repo"
)

// Kind is the coarse category of a service error.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidArgument
	KindConflict
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflict:
		return "conflict"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}

// Report errors.
var (
	// ErrReportNotFound means no report matched the given token.
	ErrReportNotFound = errors.New("report not found")

	// ErrUnrecognizedStatus is returned when a workflow word is not in the
	// synonym table.
	ErrUnrecognizedStatus = errors.New("unrecognized workflow status")

	// ErrInvalidModeration is returned for moderation values other than
	// pending, approved or rejected.
	ErrInvalidModeration = errors.New("moderation status must be pending, approved or rejected")

	// ErrBackwardTransition is returned when a workflow move would go
	// backwards (other than an explicit reset to pending).
	ErrBackwardTransition = errors.New("workflow status cannot move backwards")

	// ErrAlreadyModerated is returned when a report's moderation has already
	// been settled.
	ErrAlreadyModerated = errors.New("report already moderated")

	// ErrInvalidReport covers missing or malformed fields on submission.
	ErrInvalidReport = errors.New("invalid report")
)

// Reaction errors.
var (
	ErrInvalidReaction = errors.New("reaction must be like or dislike")
	ErrMissingUser     = errors.New("user id is required")
)

// Conversation errors.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrDepartmentNotFound   = errors.New("department not found")
	ErrBarangayNotFound     = errors.New("barangay not found")
	ErrDepartmentRequired   = errors.New("staff must be bound to a department")
	ErrEmptyMessage         = errors.New("message body is empty")
	ErrMessageTooLong       = errors.New("message body too long")
	ErrEmptyComment         = errors.New("comment body is empty")
)

// ErrStoreUnavailable marks failures to reach the database.
var ErrStoreUnavailable = errors.New("store unavailable")

// kinds is checked in order, so an error wrapping several sentinels takes
// the first match. Service sentinels precede the generic repo ones.
var kinds = []struct {
	target error
	kind   Kind
}{
	{ErrReportNotFound, KindNotFound},
	{ErrConversationNotFound, KindNotFound},
	{ErrDepartmentNotFound, KindNotFound},
	{ErrBarangayNotFound, KindNotFound},

	{ErrUnrecognizedStatus, KindInvalidArgument},
	{ErrInvalidModeration, KindInvalidArgument},
	{ErrInvalidReport, KindInvalidArgument},
	{ErrInvalidReaction, KindInvalidArgument},
	{ErrMissingUser, KindInvalidArgument},
	{ErrDepartmentRequired, KindInvalidArgument},
	{ErrEmptyMessage, KindInvalidArgument},
	{ErrMessageTooLong, KindInvalidArgument},
	{ErrEmptyComment, KindInvalidArgument},

	{ErrBackwardTransition, KindConflict},
	{ErrAlreadyModerated, KindConflict},

	{ErrStoreUnavailable, KindStoreUnavailable},

	{repo.ErrNotFound, KindNotFound},
	{repo.ErrDuplicate, KindConflict},
	{repo.ErrStale, KindConflict},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, e := range kinds {
		if errors.Is(err, e.target) {
			return e.kind
		}
	}
	if isStoreUnavailable(err) {
		return KindStoreUnavailable
	}
	return KindInternal
}

func isStoreUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "sql: database is closed")
}
