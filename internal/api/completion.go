package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sociofi/internal/models"
	"sociofi/internal/worker"
)

const completionTimeout = 2 * time.Minute

type chatRequest struct {
	Messages []models.ChatTurn `json:"messages" binding:"required,min=1"`
}

// chat streams a completion grounded on the documents the caller's role may
// read. The role always comes from the session, never from the body.
func (h *Handler) chat(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	if h.assistant == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant is not configured"})
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages are required"})
		return
	}
	for _, turn := range req.Messages {
		switch turn.Role {
		case models.RoleUser, models.RoleAssistant, models.RoleSystem:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid message role %q", turn.Role)})
			return
		}
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	streamCtx, cancel := context.WithTimeout(c.Request.Context(), completionTimeout)
	defer cancel()

	sendEvent := func(event string, payload interface{}) error {
		var data []byte
		switch v := payload.(type) {
		case string:
			data = []byte(v)
		default:
			var err error
			data, err = json.Marshal(v)
			if err != nil {
				return err
			}
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ready := make(chan struct{})
	var reply string
	result, err := h.workers.Submit(streamCtx, sess.ID, func(ctx context.Context) error {
		<-ready
		var err error
		reply, err = h.assistant.StreamReply(ctx, sess.User.Role, req.Messages, func(chunk string) error {
			return sendEvent("stream", gin.H{"content": chunk})
		})
		return err
	})
	if err != nil {
		h.fail(c, sess, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	ackErr := sendEvent("ack", gin.H{"messages": len(req.Messages), "role": sess.User.Role})
	if ackErr != nil {
		cancel()
	}
	close(ready)

	if err := <-result; err != nil {
		if ackErr != nil {
			return
		}
		msg := "failed to generate a reply"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			msg = "reply timed out"
		case errors.Is(err, worker.ErrClosed), errors.Is(err, worker.ErrCanceled):
			msg = "request canceled"
		}
		h.logger.Warn("completion failed", zap.String("session_id", sess.ID), zap.Error(err))
		_ = sendEvent("error", gin.H{"message": msg})
		return
	}
	_ = sendEvent("done", gin.H{
		"message": gin.H{"role": models.RoleAssistant, "content": reply},
	})
}
