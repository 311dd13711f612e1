package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sociofi/internal/models"
)

func (h *Handler) updateTaskStatus(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || taskID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	var req models.UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "status must be one of Planning, In Progress, Review, Completed",
			"allowed": models.TaskStatuses,
		})
		return
	}
	if err := h.backend.UpdateTaskStatus(c.Request.Context(), sess.Token, taskID, req.Status); err != nil {
		h.fail(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": taskID, "status": req.Status})
}

func (h *Handler) createMeeting(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req models.Meeting
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, date, time and channel are required"})
		return
	}
	meeting, err := h.backend.CreateMeeting(c.Request.Context(), sess.Token, req)
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	// The home screen shows the refreshed list right after scheduling.
	meetings, err := h.backend.ListMeetings(c.Request.Context(), sess.Token)
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"meeting": meeting, "meetings": meetings})
}
