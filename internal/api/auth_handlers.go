package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"sociofi/internal/auth"
	"sociofi/internal/backend"
	"sociofi/internal/session"
)

const maxPictureBytes = 5 << 20 // 5 MB

type credentialsRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

func (h *Handler) signIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	sess, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		h.fail(c, nil, err)
		return
	}
	h.startSession(c, sess, http.StatusOK)
}

func (h *Handler) signUp(c *gin.Context) {
	var req auth.SignUpRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sess, err := h.auth.SignUp(c.Request.Context(), req)
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords do not match"})
		return
	case errors.Is(err, backend.ErrEmailNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Email not authorized for registration."})
		return
	case err != nil:
		h.fail(c, nil, err)
		return
	}
	h.startSession(c, sess, http.StatusCreated)
}

func (h *Handler) startSession(c *gin.Context, sess *session.Session, status int) {
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, sess.ID, csrfToken, int(sess.TTL(time.Now()).Seconds()))
	c.JSON(status, gin.H{
		"user":       sess.User,
		"auth_token": sess.ID,
		"expires_at": sess.ExpiresAt,
	})
}

func (h *Handler) signOut(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	if err := h.auth.SignOut(c.Request.Context(), sess.ID); err != nil {
		h.fail(c, nil, err)
		return
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	user, err := h.auth.CurrentUser(c.Request.Context(), sess.ID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) uploadProfilePicture(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxPictureBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	defer f.Close()
	url, err := h.auth.UpdateProfilePicture(c.Request.Context(), sess, filepath.Base(file.Filename), f)
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile_picture_url": url})
}
