package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sociofi/internal/backend"
	"sociofi/internal/composer"
	"sociofi/internal/models"
	"sociofi/internal/session"
	"sociofi/internal/workspace"
)

const defaultChatTitle = "New Chat"

func (h *Handler) listUsers(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	roster, err := h.workspaces.Roster(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": roster})
}

func (h *Handler) createChat(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultChatTitle
	}
	chat, err := h.backend.CreateChat(c.Request.Context(), sess.Token, title)
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

// openChat returns the chat state for the session, loading its history on
// first use.
func (h *Handler) openChat(c *gin.Context, sess *session.Session) (*workspace.Chat, int64, bool) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return nil, 0, false
	}
	chat := h.workspaces.Get(sess.ID).Chat(chatID)
	err := chat.EnsureLoaded(c.Request.Context(), chatID, h.historyFetcher(sess.Token))
	if err != nil {
		h.fail(c, sess, err)
		return nil, 0, false
	}
	return chat, chatID, true
}

func (h *Handler) historyFetcher(token string) workspace.HistoryFetcher {
	return func(ctx context.Context, chatID int64) ([]models.Message, error) {
		chat, err := h.backend.GetChat(ctx, token, chatID)
		if err != nil {
			return nil, err
		}
		return chat.Messages, nil
	}
}

func (h *Handler) transcript(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	chat, chatID, ok := h.openChat(c, sess)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_id":  chatID,
		"entries":  chat.Transcript.Entries(),
		"composer": chat.Composer.State(),
	})
}

func (h *Handler) updateDraft(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	chat, _, ok := h.openChat(c, sess)
	if !ok {
		return
	}
	roster, err := h.workspaces.Roster(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, chat.Composer.Update(req.Text, roster))
}

func (h *Handler) pickCommand(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}
	chat, _, ok := h.openChat(c, sess)
	if !ok {
		return
	}
	st, err := chat.Composer.PickCommand(composer.Command(req.Command))
	if errors.Is(err, composer.ErrUnknownCommand) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) selectCandidate(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	chat, _, ok := h.openChat(c, sess)
	if !ok {
		return
	}
	roster, err := h.workspaces.Roster(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	var picked *models.User
	for i := range roster {
		if strings.EqualFold(roster[i].Email, req.Email) {
			picked = &roster[i]
			break
		}
	}
	if picked == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	st, err := chat.Composer.Select(*picked)
	if errors.Is(err, composer.ErrNotSelecting) {
		c.JSON(http.StatusConflict, gin.H{"error": "no suggestions are open"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) cancelDraft(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	chat, _, ok := h.openChat(c, sess)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, chat.Composer.Cancel())
}

func (h *Handler) submit(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	chat, chatID, ok := h.openChat(c, sess)
	if !ok {
		return
	}
	out := h.dispatcher.Submit(c.Request.Context(), sess, chatID, chat.Composer, chat.Transcript, req.Text)
	if errors.Is(out.Err, backend.ErrUnauthorized) {
		h.fail(c, sess, out.Err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"outcome":  out,
		"composer": chat.Composer.State(),
	})
}

// bindOptionalJSON decodes a JSON body when one was sent.
func bindOptionalJSON(c *gin.Context, v any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
