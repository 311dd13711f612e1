package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sociofi/internal/session"
)

const sessionContextKey = "auth_session"

// Middleware resolves the session from a bearer header or the authToken cookie.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := s.extractSessionID(c)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		sess, err := s.Session(c.Request.Context(), id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// SessionFromContext retrieves the session stored by Middleware or Guard.
func SessionFromContext(c *gin.Context) (*session.Session, bool) {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := val.(*session.Session)
	return sess, ok
}

func (s *Service) extractSessionID(c *gin.Context) string {
	authHeader := c.GetHeader(s.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if id, err := c.Cookie(s.cookieName); err == nil && id != "" {
		return id
	}
	return ""
}
