// Error codes shared by every endpoint. The `code` field of an ErrorResponse
// always holds one of these strings, so clients can branch on it instead of
// parsing messages. Codes are lowercase snake_case and never change once
// published; add new ones rather than repurposing old ones.

package handlers

const (
	// Generic codes tracking the HTTP status they accompany.
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Codes naming the operation behind a 500, where the status alone is
	// ambiguous.
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeDeleteFailed = "delete_failed"

	// Router fallback for a known path hit with the wrong verb.
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
