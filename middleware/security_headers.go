package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/iRail/occupancy-api/config"
)

// SecurityHeadersMiddleware sets the response headers every API answer carries.
// HSTS is only sent in production, where the API sits behind TLS.
func SecurityHeadersMiddleware(cfg *config.Config) gin.HandlerFunc {
	hsts := cfg.IsProduction()

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		if hsts {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
