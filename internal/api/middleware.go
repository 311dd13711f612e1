package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sociofi/internal/auth"
)

// NewRouter builds the gin engine with recovery and request logging and
// registers every route.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))
	h.RegisterRoutes(router)
	return router
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// keyedLimiter hands out one token bucket per key.
type keyedLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &keyedLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *keyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *keyedLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

// rateLimit throttles completions per session.
func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.chatLimit == nil {
			c.Next()
			return
		}
		sess, ok := auth.SessionFromContext(c)
		if ok && !h.chatLimit.Allow(sess.ID) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many chat requests, please retry in a minute"})
			return
		}
		c.Next()
	}
}

// ForgetSession drops per-session limiter state. It is wired to sign-out.
func (h *Handler) ForgetSession(sessionID string) {
	if h.chatLimit != nil {
		h.chatLimit.Forget(sessionID)
	}
	if h.workers != nil {
		h.workers.CancelUser(sessionID)
	}
}
