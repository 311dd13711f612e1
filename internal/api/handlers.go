package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sociofi/internal/auth"
	"sociofi/internal/backend"
	"sociofi/internal/dispatch"
	"sociofi/internal/models"
	"sociofi/internal/session"
	"sociofi/internal/worker"
	"sociofi/internal/workspace"
)

// Completer streams a grounded chat reply.
type Completer interface {
	StreamReply(ctx context.Context, role string, turns []models.ChatTurn, chunkFn func(string) error) (string, error)
}

// Pool runs completion jobs fairly across users. The returned channel
// receives the task's result exactly once.
type Pool interface {
	Submit(ctx context.Context, userKey string, task worker.Task) (<-chan error, error)
	CancelUser(userKey string)
}

// Indexer embeds an uploaded document for retrieval.
type Indexer interface {
	Index(ctx context.Context, path, name string, allowedRoles []string) (int, error)
}

// EmbeddingStore forgets the chunks of a deleted document.
type EmbeddingStore interface {
	DeleteDocument(ctx context.Context, name string) (int64, error)
}

// Deps are the collaborators the gateway routes call into. Assistant,
// Indexer and Embeddings may be nil when no model provider is configured.
type Deps struct {
	Backend    *backend.Client
	Auth       *auth.Service
	Workspaces *workspace.Registry
	Dispatcher *dispatch.Dispatcher
	Workers    Pool
	Assistant  Completer
	Indexer    Indexer
	Embeddings EmbeddingStore
	Logger     *zap.Logger
	// ChatRate limits /api/chat per session; zero disables the limit.
	ChatRate  rate.Limit
	ChatBurst int
}

// Handler wires HTTP routes to the backend client and the per-session workspaces.
type Handler struct {
	backend    *backend.Client
	auth       *auth.Service
	workspaces *workspace.Registry
	dispatcher *dispatch.Dispatcher
	workers    Pool
	assistant  Completer
	indexer    Indexer
	embeddings EmbeddingStore
	logger     *zap.Logger
	chatLimit  *keyedLimiter
}

// NewHandler constructs a Handler instance.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		backend:    d.Backend,
		auth:       d.Auth,
		workspaces: d.Workspaces,
		dispatcher: d.Dispatcher,
		workers:    d.Workers,
		assistant:  d.Assistant,
		indexer:    d.Indexer,
		embeddings: d.Embeddings,
		logger:     logger,
	}
	if d.ChatRate > 0 {
		h.chatLimit = newKeyedLimiter(d.ChatRate, d.ChatBurst)
	}
	return h
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/auth/signin", h.signIn)
	api.POST("/auth/signup", h.signUp)

	secured := api.Group("")
	secured.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	secured.POST("/auth/signout", h.signOut)
	secured.GET("/auth/me", h.me)
	secured.POST("/account/profile-picture", h.uploadProfilePicture)
	secured.GET("/users", h.listUsers)
	secured.POST("/chats", h.createChat)
	secured.GET("/chats/:id/transcript", h.transcript)
	secured.POST("/chats/:id/draft", h.updateDraft)
	secured.POST("/chats/:id/draft/command", h.pickCommand)
	secured.POST("/chats/:id/draft/select", h.selectCandidate)
	secured.POST("/chats/:id/draft/cancel", h.cancelDraft)
	secured.POST("/chats/:id/submit", h.submit)
	secured.PATCH("/tasks/:id", h.updateTaskStatus)
	secured.POST("/meetings", h.createMeeting)
	secured.GET("/documents", h.listDocuments)
	secured.POST("/documents", h.uploadDocument)
	secured.GET("/documents/:id/download", h.downloadDocument)
	secured.DELETE("/documents/:id", h.deleteDocument)
	secured.POST("/chat", h.rateLimit(), h.chat)

	screens := router.Group("")
	screens.Use(h.auth.Guard())
	screens.GET(auth.HomePath, h.homeScreen)
	screens.GET("/chats", h.chatsScreen)
	screens.GET("/chat/:id", h.chatScreen)
	screens.GET("/account", h.accountScreen)
	screens.GET("/folders", h.foldersScreen)
	screens.GET("/announcements/:id", h.announcementScreen)
	screens.GET(auth.SignInPath, h.authScreen)
	screens.GET(auth.SignUpPath, h.authScreen)
}

// currentSession returns the session resolved by the auth middleware.
func (h *Handler) currentSession(c *gin.Context) (*session.Session, bool) {
	sess, ok := auth.SessionFromContext(c)
	if !ok || sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return nil, false
	}
	return sess, true
}

func chatIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return id, true
}

// fail maps a collaborator error to the JSON error response. A backend 401
// ends the gateway session as well.
func (h *Handler) fail(c *gin.Context, sess *session.Session, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		if sess != nil {
			h.endSession(c, sess.ID)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
	case errors.Is(err, backend.ErrInvalidResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": "unexpected backend response"})
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		msg := apiErr.Detail
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		c.JSON(apiErr.StatusCode, gin.H{"error": msg})
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) endSession(c *gin.Context, id string) {
	if err := h.auth.SignOut(c.Request.Context(), id); err != nil {
		h.logger.Warn("sign out failed", zap.String("session_id", id), zap.Error(err))
	}
	h.clearAuthCookies(c)
}

func (h *Handler) setAuthCookies(c *gin.Context, sessionID, csrfToken string, ttlSeconds int) {
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    sessionID,
		MaxAge:   ttlSeconds,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttlSeconds,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
