package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"sociofi/internal/backend"
	"sociofi/internal/models"
	"sociofi/internal/session"
)

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrMissingFields    = errors.New("email and password are required")
)

// Backend is the part of the remote backend the auth flows use.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (*backend.AuthResponse, error)
	SignUp(ctx context.Context, email, password, firstName, lastName string) (*backend.AuthResponse, error)
	UploadProfilePicture(ctx context.Context, token, filename string, content io.Reader) (string, error)
}

// SignUpRequest carries the sign-up form including the confirmation field.
type SignUpRequest struct {
	Email           string `json:"email" form:"email" binding:"required,email"`
	Password        string `json:"password" form:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" binding:"required"`
	FirstName       string `json:"firstName" form:"firstName"`
	LastName        string `json:"lastName" form:"lastName"`
}

// Service owns the gateway session lifecycle on top of backend authentication.
type Service struct {
	backend        Backend
	store          session.Store
	sessionTTL     time.Duration
	logger         *zap.Logger
	now            func() time.Time
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string

	mu        sync.RWMutex
	onSignOut []func(sess *session.Session)
}

// NewService constructs an auth service with the supplied session lifetime.
func NewService(b Backend, store session.Store, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:        b,
		store:          store,
		sessionTTL:     ttl,
		logger:         logger,
		now:            time.Now,
		cookieName:     "authToken",
		headerName:     "Authorization",
		csrfCookieName: "csrfToken",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// OnSignOut registers a hook run after a session is cleared.
func (s *Service) OnSignOut(fn func(sess *session.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignOut = append(s.onSignOut, fn)
}

// SignIn authenticates against the backend and caches the resulting session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	resp, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, resp)
}

// SignUp registers through the backend. Mismatched confirmation never reaches the backend.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*session.Session, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, ErrMissingFields
	}
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	resp, err := s.backend.SignUp(ctx, strings.TrimSpace(req.Email), req.Password, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, resp)
}

func (s *Service) start(ctx context.Context, resp *backend.AuthResponse) (*session.Session, error) {
	sess := session.New(resp.AccessToken, resp.User, s.sessionTTL, s.now())
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("user_id", string(sess.User.ID)),
		zap.Time("expires_at", sess.ExpiresAt))
	return sess, nil
}

// Session looks up an active session by id.
func (s *Service) Session(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, session.ErrSessionNotFound
	}
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.ExpiresAt.After(s.now()) {
		_ = s.store.Delete(ctx, id)
		return nil, session.ErrSessionNotFound
	}
	return sess, nil
}

// CurrentUser returns the cached profile, or ErrSessionNotFound once signed out.
func (s *Service) CurrentUser(ctx context.Context, id string) (*models.User, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	user := sess.User
	return &user, nil
}

// SignOut clears the cached token and profile and runs the sign-out hooks.
func (s *Service) SignOut(ctx context.Context, id string) error {
	sess, err := s.store.Load(ctx, id)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if sess == nil {
		sess = &session.Session{ID: id}
	}
	s.mu.RLock()
	hooks := append([]func(*session.Session){}, s.onSignOut...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(sess)
	}
	s.logger.Info("session ended", zap.String("session_id", id))
	return nil
}

// UpdateProfilePicture uploads a new picture and refreshes the cached profile.
func (s *Service) UpdateProfilePicture(ctx context.Context, sess *session.Session, filename string, content io.Reader) (string, error) {
	url, err := s.backend.UploadProfilePicture(ctx, sess.Token, filename, content)
	if err != nil {
		return "", err
	}
	sess.User.ProfilePicture = url
	if err := s.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return url, nil
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie mirroring the session id.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// SessionTTL reports the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}
