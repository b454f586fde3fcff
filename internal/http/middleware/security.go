// Package middleware holds the Gin middleware shared by every route of the
// task API.
//
// This file provides SecurityHeaders, which stamps a small set of hardening
// headers onto every response of the task API. The set is deliberately
// conservative for a JSON service: no Content-Security-Policy (nothing here
// serves HTML), HSTS only on request and only over HTTPS, and optional
// cache-suppression and browser feature policies.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions selects which hardening headers SecurityHeaders emits
// beyond the always-on baseline.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security, but only for requests that
	// arrived over HTTPS (direct TLS or X-Forwarded-Proto). Leave false unless
	// the proxy-to-app hop is also encrypted.
	EnableHSTS bool
	// HSTSMaxAge is the HSTS lifetime; zero or negative falls back to 180 days.
	HSTSMaxAge time.Duration
	// NoStore adds Cache-Control: no-store (with the legacy Pragma/Expires
	// pair) so task payloads are never cached by intermediaries.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies. Browsers honor them; other clients
	// ignore them.
	EnablePolicy bool
}

// SecurityHeaders returns middleware that applies the baseline headers
// (X-Content-Type-Options: nosniff, X-Frame-Options: DENY, Referrer-Policy:
// no-referrer) plus whatever SecurityOptions opts into. When an upstream
// middleware has already set X-Request-ID it is appended to
// Access-Control-Expose-Headers so browser clients can read it.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 180 * 24 * time.Hour
	}
	// The HSTS value never varies per request; build it once.
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		// HSTS over plain HTTP would be ignored at best and pinned wrongly at
		// worst, so the scheme check is unconditional.
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const expose = "Access-Control-Expose-Headers"
			switch cur := h.Get(expose); {
			case cur == "":
				h.Set(expose, "X-Request-ID")
			case !strings.Contains(cur, "X-Request-ID"):
				h.Set(expose, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request used HTTPS, either terminated here
// (r.TLS set) or at a proxy that recorded X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
