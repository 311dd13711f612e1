package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	SignInPath = "/sign-in"
	SignUpPath = "/sign-up"
	HomePath   = "/"
)

func isAuthPage(path string) bool {
	return path == SignInPath || path == SignUpPath
}

// Guard protects screen routes: anonymous visitors go to sign-in, signed-in
// users are sent home from the sign-in and sign-up pages.
func (s *Service) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		var authed bool
		if id := s.extractSessionID(c); id != "" {
			if sess, err := s.Session(c.Request.Context(), id); err == nil {
				c.Set(sessionContextKey, sess)
				authed = true
			}
		}
		switch {
		case !authed && !isAuthPage(path):
			c.Redirect(http.StatusFound, SignInPath)
			c.Abort()
		case authed && isAuthPage(path):
			c.Redirect(http.StatusFound, HomePath)
			c.Abort()
		default:
			c.Next()
		}
	}
}
