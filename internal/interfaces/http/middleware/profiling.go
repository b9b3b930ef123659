package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/retail/backend/internal/infrastructure/telemetry"
)

// Profiling labels CPU samples with the API resource handling the request
// ("bills", "checkout", "inventory", "stores"). The health check is skipped.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		resource := resourceOf(c.FullPath())
		if resource == "" || resource == "health" {
			c.Next()
			return
		}
		telemetry.WithOperationLabel(c.Request.Context(), "http."+resource, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// resourceOf returns the first segment after the API version,
// e.g. "/api/v1/bills/:id/items" -> "bills".
func resourceOf(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) || strings.HasPrefix(part, ":") {
			continue
		}
		return part
	}
	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
