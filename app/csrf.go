package app

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CSRF rejects state-changing requests whose Origin, or Referer when Origin is
// absent, is not one of origins. Requests carrying neither are rejected too.
func CSRF(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[normalizeOrigin(o)] = true
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if origin := c.GetHeader("Origin"); origin != "" {
			if !allowed[normalizeOrigin(origin)] {
				c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "CSRF validation failed: invalid origin"})
				return
			}
			c.Next()
			return
		}
		if referer := c.GetHeader("Referer"); referer != "" {
			if !allowed[normalizeOrigin(originOf(referer))] {
				c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "CSRF validation failed: invalid referer"})
				return
			}
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "CSRF validation failed: missing origin"})
	}
}

func normalizeOrigin(o string) string { return strings.TrimSuffix(strings.ToLower(o), "/") }

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
