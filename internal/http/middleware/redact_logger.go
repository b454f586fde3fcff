// Package middleware holds the Gin middleware shared by every route of the
// task API.
//
// This file implements RedactingLogger, the access logger for the task API.
// Task names travel in request bodies and are never logged; what does get
// logged (method, route, query string, headers) is scrubbed first so that
// emails, phone numbers, and UUID-shaped identifiers a client put into a URL
// or header never reach the log stream. Credential-bearing headers are masked
// outright.
//
//	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
//	    MaskHeaders: []string{"X-Internal-Token"},
//	}))
//
// Scrubbing lowers, but cannot remove, the risk of PII in logs; clients still
// should not put sensitive values into query strings.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Patterns are replaced in a fixed order: UUIDs first so the loose phone
// pattern cannot eat the digit runs inside one, then emails, then phones.
var (
	uuidPattern  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// scrub replaces PII-shaped substrings with typed [REDACTED:*] markers.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidPattern.ReplaceAllString(s, "[REDACTED:id]")
	s = emailPattern.ReplaceAllString(s, "[REDACTED:email]")
	return phonePattern.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactOptions extends the built-in header mask list. Names are matched
// case-insensitively; Authorization, Cookie, and Set-Cookie are always masked.
type RedactOptions struct {
	MaskHeaders []string
}

func maskSet(extra []string) map[string]struct{} {
	m := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m[h] = struct{}{}
		}
	}
	return m
}

// RedactingLogger returns middleware that writes one structured zerolog line
// per request: request id, method, route pattern, scrubbed query, status,
// bytes written, latency, and scrubbed headers. Bodies are never logged.
// Severity tracks the response: info for 2xx/3xx, warn for 4xx, error for 5xx.
// A request-scoped logger is parked in the context for LoggerFrom so handler
// logs stay correlated with the access line.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := maskSet(opts.MaskHeaders)

	return func(c *gin.Context) {
		start := time.Now()

		// Prefer the registered route pattern over the raw path so ids do not
		// fan out into distinct log keys.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := scrub(c.Request.URL.RawQuery)

		// Park a request-scoped logger so handler code that logs through
		// LoggerFrom stays correlated with this access line.
		scoped := log.With().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &scoped)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for name, vals := range c.Request.Header {
			if _, hide := masked[strings.ToLower(name)]; hide {
				safeHeaders[name] = "[REDACTED]"
				continue
			}
			safeHeaders[name] = scrub(strings.Join(vals, ", "))
		}

		c.Next()

		status := c.Writer.Status()

		// The response header is authoritative once RequestID has run; fall
		// back to whatever the client sent.
		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
