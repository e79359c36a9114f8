package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK          = "ok"
	statusRescheduled = "rescheduled"

	errTaskNotFound   = "task not found"
	errUpdateInterval = "failed to update interval"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Request DTO for updating a task's interval.
type intervalRequest struct {
	IntervalMinutes int `json:"interval_minutes" binding:"required,min=1"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List task statuses
// @Tags         tasks
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "tasks"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/tasks [get]
// @Security     BearerAuth
func (h *Handler) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.services.GetAllTaskStatuses()})
}

// @Summary      Get one task status
// @Tags         tasks
// @Produce      json
// @Param        id   path      string  true  "task id"
// @Success      200  {object}  map[string]interface{}  "task"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/tasks/{id} [get]
// @Security     BearerAuth
func (h *Handler) getTask(c *gin.Context) {
	st, ok := h.services.GetTaskStatus(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errTaskNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": st})
}

// @Summary      Update task interval
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id   path      string           true  "task id"
// @Param        body body      intervalRequest  true  "new interval"
// @Success      200  {object}  map[string]interface{}  "status, task"
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/tasks/{id}/interval [put]
// @Security     BearerAuth
func (h *Handler) updateTaskInterval(c *gin.Context) {
	var input intervalRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	id := c.Param("id")
	if err := h.services.UpdateInterval(id, input.IntervalMinutes); err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errUpdateInterval, "task_interval_update_failed", err, "task", id)
		return
	}

	resp := gin.H{"status": statusRescheduled}
	if st, ok := h.services.GetTaskStatus(id); ok {
		resp["task"] = st
	}
	c.JSON(http.StatusOK, resp)
}
