package workspace

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"sociofi/internal/composer"
	"sociofi/internal/models"
	"sociofi/internal/session"
	"sociofi/internal/transcript"
)

// RosterFetcher loads the user roster with a session token.
type RosterFetcher func(ctx context.Context, token string) ([]models.User, error)

// HistoryFetcher loads the stored messages of a chat.
type HistoryFetcher func(ctx context.Context, chatID int64) ([]models.Message, error)

// Chat is the screen state of one open conversation.
type Chat struct {
	Composer   *composer.Composer
	Transcript *transcript.Transcript

	mu     sync.Mutex
	loaded bool
}

// EnsureLoaded fills the transcript from fetch the first time it succeeds.
func (c *Chat) EnsureLoaded(ctx context.Context, chatID int64, fetch HistoryFetcher) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	msgs, err := fetch(ctx, chatID)
	if err != nil {
		return err
	}
	c.Transcript.Load(msgs)
	c.loaded = true
	return nil
}

// Workspace is everything the gateway remembers for one session.
type Workspace struct {
	SessionID string

	mu        sync.Mutex
	roster    []models.User
	hasRoster bool
	chats     map[int64]*Chat
	lastSeen  time.Time
}

func (w *Workspace) Chat(chatID int64) *Chat {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.chats[chatID]
	if !ok {
		ch = &Chat{Composer: composer.New(), Transcript: transcript.New()}
		w.chats[chatID] = ch
	}
	return ch
}

func (w *Workspace) cachedRoster() ([]models.User, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.roster), w.hasRoster
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Registry maps session ids to workspaces.
type Registry struct {
	mu     sync.Mutex
	spaces map[string]*Workspace
	fetch  RosterFetcher
	group  singleflight.Group
	idle   time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewRegistry(fetch RosterFetcher, idle time.Duration, logger *zap.Logger) *Registry {
	if idle <= 0 {
		idle = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		spaces: make(map[string]*Workspace),
		fetch:  fetch,
		idle:   idle,
		now:    time.Now,
		logger: logger,
	}
}

// Get returns the workspace for sessionID, creating it on first use.
func (r *Registry) Get(sessionID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.spaces[sessionID]
	if !ok {
		ws = &Workspace{SessionID: sessionID, chats: make(map[int64]*Chat)}
		r.spaces[sessionID] = ws
	}
	ws.touch(r.now())
	return ws
}

// Roster returns the session roster, fetching it once per session.
// Failed fetches are not cached.
func (r *Registry) Roster(ctx context.Context, sess *session.Session) ([]models.User, error) {
	ws := r.Get(sess.ID)
	if roster, ok := ws.cachedRoster(); ok {
		return roster, nil
	}
	v, err, _ := r.group.Do(sess.ID, func() (any, error) {
		if roster, ok := ws.cachedRoster(); ok {
			return roster, nil
		}
		roster, err := r.fetch(ctx, sess.Token)
		if err != nil {
			return nil, fmt.Errorf("fetch roster: %w", err)
		}
		ws.mu.Lock()
		ws.roster = roster
		ws.hasRoster = true
		ws.mu.Unlock()
		return roster, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]models.User)), nil
}

// Drop forgets a session's workspace. It is wired to sign-out.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.spaces, sessionID)
	r.mu.Unlock()
	r.group.Forget(sessionID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// StartJanitor evicts idle workspaces every interval until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go r.janitorLoop(ctx, interval)
}

func (r *Registry) janitorLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.evictIdle(); n > 0 {
				r.logger.Debug("evicted idle workspaces", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) evictIdle() int {
	cutoff := r.now().Add(-r.idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, ws := range r.spaces {
		if ws.idleSince().Before(cutoff) {
			delete(r.spaces, id)
			evicted++
		}
	}
	return evicted
}
