package server

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/boilermanc/onceuponadrawing/internal/apikey"
)

const verifiedKeyTTL = 5 * time.Minute

// OperatorKeyRequired authenticates operator API requests with a bearer
// key checked against the configured argon2id hash. Verified keys are
// cached briefly so every request does not pay the hash cost.
func (s *Server) OperatorKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(s.cfg.Operator.APIKeyHash) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		key := parts[1]

		cacheKey := fingerprint(key)
		if verified, ok := s.keyCache.Get(cacheKey); ok && verified {
			c.Next()
			return
		}

		if !apikey.Verify(key, s.cfg.Operator.APIKeyHash) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		s.keyCache.Set(cacheKey, true, verifiedKeyTTL)
		c.Next()
	}
}

// fingerprint keys the cache without storing the plaintext key.
func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
