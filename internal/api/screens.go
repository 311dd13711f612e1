package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sociofi/internal/auth"
	"sociofi/internal/backend"
	"sociofi/internal/composer"
	"sociofi/internal/models"
	"sociofi/internal/session"
	"sociofi/internal/transcript"
)

// HomeView is the landing screen. AllTasks is only filled for roles other
// than Employee.
type HomeView struct {
	User          models.User           `json:"user"`
	Tasks         []models.Task         `json:"tasks"`
	AllTasks      []models.Task         `json:"all_tasks,omitempty"`
	Meetings      []models.Meeting      `json:"meetings"`
	Announcements []models.Announcement `json:"announcements"`
	TaskStatuses  []string              `json:"task_statuses"`
}

type ChatsView struct {
	User  models.User   `json:"user"`
	Chats []models.Chat `json:"chats"`
}

type ChatView struct {
	ChatID   int64              `json:"chat_id"`
	Title    string             `json:"title"`
	Entries  []transcript.Entry `json:"entries"`
	Composer composer.State     `json:"composer"`
	Roster   []models.User      `json:"roster"`
}

type FoldersView struct {
	User         models.User       `json:"user"`
	Documents    []models.Document `json:"documents"`
	AccessLevels []string          `json:"access_levels"`
}

// screenSession returns the session Guard attached.
func screenSession(c *gin.Context) *session.Session {
	sess, _ := auth.SessionFromContext(c)
	return sess
}

// screenFail sends a signed-out visitor back to sign-in and reports other
// errors as JSON.
func (h *Handler) screenFail(c *gin.Context, sess *session.Session, err error) {
	if errors.Is(err, backend.ErrUnauthorized) {
		h.endSession(c, sess.ID)
		c.Redirect(http.StatusFound, auth.SignInPath)
		return
	}
	h.fail(c, sess, err)
}

// tolerate logs a failed home screen fetch and keeps the screen rendering.
// Only an expired token aborts it.
func (h *Handler) tolerate(section string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, backend.ErrUnauthorized) {
		return err
	}
	h.logger.Warn("home section unavailable", zap.String("section", section), zap.Error(err))
	return nil
}

func (h *Handler) homeScreen(c *gin.Context) {
	sess := screenSession(c)
	view := HomeView{
		User:          sess.User,
		Tasks:         []models.Task{},
		Meetings:      []models.Meeting{},
		Announcements: []models.Announcement{},
		TaskStatuses:  models.TaskStatuses,
	}

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		tasks, err := h.backend.ListTasks(ctx, sess.Token)
		if err == nil {
			view.Tasks = tasks
		}
		return h.tolerate("tasks", err)
	})
	if sess.User.Role != models.RoleEmployee {
		g.Go(func() error {
			tasks, err := h.backend.ListAllTasks(ctx, sess.Token)
			if err == nil {
				view.AllTasks = tasks
			}
			return h.tolerate("all_tasks", err)
		})
	}
	g.Go(func() error {
		meetings, err := h.backend.ListMeetings(ctx, sess.Token)
		if err == nil {
			view.Meetings = meetings
		}
		return h.tolerate("meetings", err)
	})
	g.Go(func() error {
		announcements, err := h.backend.ListAnnouncements(ctx, sess.Token)
		if err == nil {
			view.Announcements = announcements
		}
		return h.tolerate("announcements", err)
	})
	if err := g.Wait(); err != nil {
		h.screenFail(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) chatsScreen(c *gin.Context) {
	sess := screenSession(c)
	chats, err := h.backend.ListChats(c.Request.Context(), sess.Token)
	if err != nil {
		h.screenFail(c, sess, err)
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	c.JSON(http.StatusOK, ChatsView{User: sess.User, Chats: chats})
}

func (h *Handler) chatScreen(c *gin.Context) {
	sess := screenSession(c)
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || chatID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	var (
		meta   *models.Chat
		roster []models.User
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		meta, err = h.backend.GetChat(ctx, sess.Token, chatID)
		return err
	})
	g.Go(func() error {
		var err error
		roster, err = h.workspaces.Roster(ctx, sess)
		return err
	})
	if err := g.Wait(); err != nil {
		h.screenFail(c, sess, err)
		return
	}

	chat := h.workspaces.Get(sess.ID).Chat(chatID)
	loaded := func(context.Context, int64) ([]models.Message, error) { return meta.Messages, nil }
	if err := chat.EnsureLoaded(c.Request.Context(), chatID, loaded); err != nil {
		h.screenFail(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, ChatView{
		ChatID:   chatID,
		Title:    meta.Title,
		Entries:  chat.Transcript.Entries(),
		Composer: chat.Composer.State(),
		Roster:   roster,
	})
}

func (h *Handler) accountScreen(c *gin.Context) {
	sess := screenSession(c)
	c.JSON(http.StatusOK, gin.H{"user": sess.User})
}

func (h *Handler) foldersScreen(c *gin.Context) {
	sess := screenSession(c)
	docs, err := h.visibleDocuments(c.Request.Context(), sess)
	if err != nil {
		h.screenFail(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, FoldersView{User: sess.User, Documents: docs, AccessLevels: models.AccessLevels})
}

func (h *Handler) announcementScreen(c *gin.Context) {
	sess := screenSession(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid announcement id"})
		return
	}
	announcements, err := h.backend.ListAnnouncements(c.Request.Context(), sess.Token)
	if err != nil {
		h.screenFail(c, sess, err)
		return
	}
	for _, a := range announcements {
		if a.ID == id {
			c.JSON(http.StatusOK, gin.H{"announcement": a})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "announcement not found"})
}

func (h *Handler) authScreen(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"screen": strings.TrimPrefix(c.Request.URL.Path, "/")})
}

func (h *Handler) visibleDocuments(ctx context.Context, sess *session.Session) ([]models.Document, error) {
	docs, err := h.backend.ListDocuments(ctx, sess.Token)
	if err != nil {
		return nil, err
	}
	visible := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if d.VisibleTo(sess.User.Role) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}
