package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gh-pr-relay/internal/dispatch"
	"gh-pr-relay/internal/models"
)

// TriggerReminders sends reminders for the acting user's old open PRs right
// now, outside the schedule.
func (h *Handlers) TriggerReminders(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	if user.SlackConnection == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no_slack_connection",
			Message: "No Slack connection found. Please connect your Slack account first.",
			Code:    http.StatusBadRequest,
		})
		return
	}

	req := models.ManualReminderRequest{
		DaysThreshold: h.schedCfg.DailyThresholdDays,
		MaxReminders:  h.schedCfg.MaxRemindersPerUser,
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "validation_error",
				Message: "Invalid reminder request",
				Code:    http.StatusBadRequest,
			})
			return
		}
	}
	if req.DaysThreshold == 0 {
		req.DaysThreshold = h.schedCfg.DailyThresholdDays
	}
	if req.MaxReminders == 0 {
		req.MaxReminders = h.schedCfg.MaxRemindersPerUser
	}

	oldPRs, err := h.store.OldOpenPRs(user.ID, req.DaysThreshold, req.MaxReminders)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch open PRs",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if len(oldPRs) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"message":    "No open PRs older than the threshold found",
			"sent_count": 0,
		})
		return
	}

	ctx := c.Request.Context()
	if len(oldPRs) == 1 && !req.SendAsBulk {
		err = h.dispatch.DispatchSingle(ctx, user.SlackConnection, user, &oldPRs[0])
	} else {
		err = h.dispatch.DispatchBatch(ctx, user.SlackConnection, user, oldPRs)
	}
	if err != nil {
		logrus.Errorf("Manual reminder for %s failed: %v", user.Email, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "dispatch_error",
			Message: "Failed to send reminders",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	now := time.Now().UTC()
	reminded := make([]gin.H, 0, len(oldPRs))
	for i := range oldPRs {
		reminded = append(reminded, gin.H{
			"id":       oldPRs[i].ID,
			"repo":     oldPRs[i].RepoName,
			"title":    oldPRs[i].PRTitle,
			"days_old": oldPRs[i].DaysOld(now),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Reminders sent successfully",
		"sent_count":   len(oldPRs),
		"prs_reminded": reminded,
	})
}

// TriggerSummary sends the daily digest to the acting user immediately.
func (h *Handlers) TriggerSummary(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	if user.SlackConnection == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no_slack_connection",
			Message: "No Slack connection found. Please connect your Slack account first.",
			Code:    http.StatusBadRequest,
		})
		return
	}

	data, err := h.store.DailySummaryData(user.ID, h.schedCfg.AttentionDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to build summary",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	if err := h.dispatch.DispatchSummary(c.Request.Context(), user.SlackConnection, user, data); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "dispatch_error",
			Message: "Failed to send daily summary",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Daily summary sent successfully",
		"summary": data,
	})
}

// TestSlackConnection posts a test message over the user's connection.
func (h *Handlers) TestSlackConnection(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}
	if user.SlackConnection == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no_slack_connection",
			Message: "No Slack connection found. Please connect your Slack account first.",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if err := h.dispatch.TestConnection(c.Request.Context(), user.SlackConnection); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "dispatch_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Test message sent successfully",
		"team_name": user.SlackConnection.TeamName,
	})
}

// PreviewReminders shows which PRs a reminder run would cover, without
// sending anything.
func (h *Handlers) PreviewReminders(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	threshold := h.schedCfg.DailyThresholdDays
	if raw := c.Query("days_threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 30 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "validation_error",
				Message: "days_threshold must be between 1 and 30",
				Code:    http.StatusBadRequest,
			})
			return
		}
		threshold = parsed
	}

	oldPRs, err := h.store.OldOpenPRs(user.ID, threshold, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch open PRs",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	now := time.Now().UTC()
	summary := map[string]int{"urgent": 0, "old": 0, "recent": 0}
	items := make([]models.ReminderPreviewItem, 0, len(oldPRs))
	for i := range oldPRs {
		pr := &oldPRs[i]
		daysOld := pr.DaysOld(now)
		urgency := "recent"
		switch dispatch.AgeBucket(daysOld) {
		case dispatch.BucketUrgent:
			urgency = "urgent"
		case dispatch.BucketGettingOld:
			urgency = "old"
		}
		summary[urgency]++
		items = append(items, models.ReminderPreviewItem{
			ID:         pr.ID,
			RepoName:   pr.RepoName,
			PRTitle:    pr.PRTitle,
			PRLink:     pr.PRLink,
			PRNumber:   pr.PRNumber,
			DaysOld:    daysOld,
			Urgency:    urgency,
			ReceivedAt: pr.ReceivedAt,
		})
	}

	c.JSON(http.StatusOK, models.ReminderPreviewResponse{
		TotalPRs:         len(oldPRs),
		ThresholdDays:    threshold,
		WouldRemindAbout: items,
		Summary:          summary,
	})
}

// ScheduleReminder registers a one-off reminder job for the acting user.
func (h *Handlers) ScheduleReminder(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req models.ScheduleReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "run_at is required",
			Code:    http.StatusBadRequest,
		})
		return
	}
	if req.DaysThreshold == 0 {
		req.DaysThreshold = h.schedCfg.DailyThresholdDays
	}
	if req.MaxReminders == 0 {
		req.MaxReminders = h.schedCfg.MaxRemindersPerUser
	}

	jobID, err := h.scheduler.TriggerUserReminder(user.ID, req.RunAt, req.DaysThreshold, req.MaxReminders)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to schedule reminder",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"run_at": req.RunAt,
	})
}

// CancelScheduledReminder cancels a pending one-off reminder job.
func (h *Handlers) CancelScheduledReminder(c *gin.Context) {
	jobID := c.Param("job_id")
	if !h.scheduler.CancelJob(jobID) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "No pending job with that id",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job cancelled", "job_id": jobID})
}
