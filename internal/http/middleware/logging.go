// Package middleware holds the Gin middleware shared by every route of the
// task API.
//
// This file carries the request plumbing every task endpoint runs through:
//
//   - RequestID() gives each request a correlation id, reusing the client's
//     X-Request-ID when present and minting a UUIDv4 otherwise.
//   - Logger() emits one structured access-log line per request and parks a
//     request-scoped zerolog.Logger in the Gin context for handlers to use.
//   - Recovery() turns panics into the standard JSON 500 envelope and logs
//     the stack under the correlation id.
//   - LoggerFrom() hands the request-scoped logger back to handler code, with
//     a plain fallback when Logger() is not installed.
//
// Install RequestID first, then Logger (or RedactingLogger), then Recovery,
// so panics and 5xx responses carry the correlation id.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the correlation id.
	requestIDKey = "requestID"
	// requestIDHeader carries the correlation id on the wire.
	requestIDHeader = "X-Request-ID"
	// loggerKey is the Gin context key under which the access loggers park a
	// request-scoped zerolog.Logger for LoggerFrom.
	loggerKey = "logger"
	// maxQueryLogLength caps how much of a raw query string is logged.
	maxQueryLogLength = 2048
)

// RequestID propagates the client's X-Request-ID or generates a fresh UUIDv4,
// storing it in the context and echoing it on the response header. Later
// middleware and the error envelope both read it from there.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger records method, route, client address, user agent, referer, query
// (capped), and request size up front, exposes that logger to handlers via
// LoggerFrom, and on completion emits the line with status, latency, and
// bytes written. Level follows the outcome: error when Gin collected errors
// or the status is 5xx, warn for 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			// Unmatched route; fall back to the raw path.
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		done := l.With().
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		case len(c.Errors) > 0:
			done.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			done.Error().Msg("request")
		case status >= 400:
			done.Warn().Msg("request")
		default:
			done.Info().Msg("request")
		}
	}
}

// Recovery converts a panic into a 500. When nothing has been written yet it
// emits the standard JSON envelope with the correlation id; when the handler
// already wrote a body it can only abort. The panic value and stack are
// always logged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid := c.GetString(requestIDKey)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", rid).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.Header(requestIDHeader, rid)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": rid,
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by Logger() or
// RedactingLogger(), or a field-less fallback so callers never need a nil
// check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// truncate caps s at max bytes, marking the cut with an ellipsis. A max <= 0
// disables the cap. Byte (not rune) boundaries are fine for log output.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
