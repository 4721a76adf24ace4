package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gh-pr-relay/internal/models"
)

// StartScheduler starts the reminder scheduler
func (h *Handlers) StartScheduler(c *gin.Context) {
	if err := h.scheduler.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// StopScheduler stops the reminder scheduler
func (h *Handlers) StopScheduler(c *gin.Context) {
	if err := h.scheduler.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// SchedulerStatus returns scheduler state and the registered jobs.
func (h *Handlers) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, models.SchedulerStatusResponse{
		Running: h.scheduler.IsRunning(),
		Jobs:    h.scheduler.Jobs(),
	})
}

// RunSchedulerJob triggers one recurring job by name.
func (h *Handlers) RunSchedulerJob(c *gin.Context) {
	name := c.Param("name")
	if err := h.scheduler.RunJobNow(name); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "unknown_job",
			Message: err.Error(),
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job executed", "job": name})
}
