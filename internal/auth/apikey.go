// Package auth guards the versioned API surface with a pre-shared key.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// KeyHeader carries the client key on every authenticated request.
const KeyHeader = "X-API-Key"

// APIKeyMiddleware rejects requests whose KeyHeader does not match key:
// 401 when the header is absent, 403 when it does not match. An empty
// configured key disables the check, so local setups run open.
// Keys are compared through fixed-size digests in constant time.
func APIKeyMiddleware(key string) gin.HandlerFunc {
	want := sha256.Sum256([]byte(key))
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		presented := c.GetHeader(KeyHeader)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		got := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}
