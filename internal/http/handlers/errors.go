// Package handlers defines the HTTP error codes returned by API endpoints.
//
// Every error response carries one of these codes next to the HTTP status,
// so clients can branch on a stable value instead of parsing messages:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "report already moderated: already approved"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "store_unavailable"

	// Domain-specific:
	ErrCodeInvalidStatus     = "invalid_status"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeAlreadyModerated  = "already_moderated"
	ErrCodeDepartmentScope   = "department_required"
)
