package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"gh-pr-relay/internal/config"
	"gh-pr-relay/internal/dispatch"
	"gh-pr-relay/internal/models"
	"gh-pr-relay/internal/scheduler"
	"gh-pr-relay/internal/store"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db        *gorm.DB
	store     *store.Store
	dispatch  *dispatch.Service
	scheduler *scheduler.Scheduler
	schedCfg  *config.SchedulerConfig
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, st *store.Store, d *dispatch.Service, s *scheduler.Scheduler, schedCfg *config.SchedulerConfig) *Handlers {
	return &Handlers{db: db, store: st, dispatch: d, scheduler: s, schedCfg: schedCfg}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	webhook := api.Group("/webhook")
	{
		webhook.POST("/inbound", h.ProcessInboundWebhook)
		webhook.POST("/test", h.TestWebhook)
		webhook.GET("/health", h.WebhookHealth)
	}

	pr := api.Group("/pr")
	{
		pr.GET("/notifications", h.ListNotifications)
		pr.GET("/notifications/:id", h.GetNotification)
		pr.DELETE("/notifications/:id", h.DeleteNotification)
		pr.POST("/notifications/:id/mark-slack-sent", h.MarkNotificationSent)
		pr.POST("/notifications/bulk-delete", h.BulkDeleteNotifications)
		pr.POST("/notifications/bulk-mark-slack-sent", h.BulkMarkNotificationsSent)
		pr.GET("/stats", h.GetStats)
		pr.GET("/summary", h.GetSummary)
		pr.GET("/repositories", h.ListRepositories)
		pr.GET("/repositories/:owner/:repo/stats", h.GetRepositoryStats)
		pr.POST("/search", h.SearchNotifications)
		pr.GET("/export", h.ExportNotifications)
	}

	reminders := api.Group("/reminders")
	{
		reminders.POST("/trigger", h.TriggerReminders)
		reminders.POST("/summary/trigger", h.TriggerSummary)
		reminders.POST("/test", h.TestSlackConnection)
		reminders.GET("/preview", h.PreviewReminders)
		reminders.POST("/schedule", h.ScheduleReminder)
		reminders.DELETE("/schedule/:job_id", h.CancelScheduledReminder)
		reminders.GET("/scheduler/status", h.SchedulerStatus)
	}

	sched := api.Group("/scheduler")
	{
		sched.POST("/start", h.StartScheduler)
		sched.POST("/stop", h.StopScheduler)
		sched.GET("/status", h.SchedulerStatus)
		sched.POST("/jobs/:name/run", h.RunSchedulerJob)
	}
}

// currentUser resolves the acting user from the X-User-ID header. Writes the
// error response and returns nil when resolution fails.
func (h *Handlers) currentUser(c *gin.Context) *models.User {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "missing_user",
			Message: "X-User-ID header is required",
			Code:    http.StatusBadRequest,
		})
		return nil
	}

	user, err := h.store.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to resolve user",
			Code:    http.StatusInternalServerError,
		})
		return nil
	}
	if user == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "user_not_found",
			Message: "No user found for the given id",
			Code:    http.StatusNotFound,
		})
		return nil
	}
	return user
}
