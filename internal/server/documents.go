package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DownloadDocument serves a stored print document after verifying the
// signed URL parameters. This is the endpoint behind the URLs handed to
// the print partner.
func (s *Server) DownloadDocument(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	if err := s.store.VerifySignedQuery(key, c.Query("exp"), c.Query("sig")); err != nil {
		AbortWithError(c, err)
		return
	}

	data, contentType, err := s.store.Open(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}
