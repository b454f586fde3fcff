// Package handlers implements the HTTP endpoints of the task API.
//
// Handlers translate between HTTP and the service layer: they bind and
// validate input, call the service, and render either the domain object or
// the shared error envelope. Response writing for both cases lives in this
// file so every endpoint answers in the same shape:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "5c59cfdc-b553-47e8-90b4-eb1a2d0eb6b9",
//	  "code": "not_found",
//	  "message": "task not found"
//	}
//
// Error codes are the stable strings declared in errors.go; clients switch
// on `code`, never on `message`.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-task-backend/internal/http/middleware"
)

// ErrorResponse is the envelope every failing endpoint returns. It is also
// the schema the Swagger annotations reference for error statuses.
type ErrorResponse struct {
	// Echoes X-Request-ID so a client report can be matched to server logs
	RequestID string `json:"request_id,omitempty" example:"5c59cfdc-b553-47e8-90b4-eb1a2d0eb6b9"`
	// One of the errors.go constants, stable across releases
	Code string `json:"code" example:"not_found"`
	// Explanation for humans; clients must not switch on it
	Message string `json:"message" example:"task not found"`
}

// fail aborts the request with status and an ErrorResponse carrying code and
// msg. The request ID is echoed from the X-Request-ID response header set by
// the middleware. Statuses >= 500 are additionally logged through the
// request-scoped logger so server faults always leave a trace.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail exposes fail to other packages. The router uses it for the NoRoute
// and NoMethod fallbacks so even unmatched requests answer in the envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok renders body as JSON with the given success status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
