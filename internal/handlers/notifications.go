package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gh-pr-relay/internal/models"
)

// ListNotifications returns one filtered, sorted page of the user's
// notifications.
func (h *Handlers) ListNotifications(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var filters models.FilterParams
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid filter parameters",
			Code:    http.StatusBadRequest,
		})
		return
	}

	list, err := h.store.ListNotifications(user.ID, filters)
	if err != nil {
		logrus.Errorf("Failed to list notifications: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch notifications",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetNotification returns one full notification record.
func (h *Handlers) GetNotification(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	notification, err := h.store.GetByID(user.ID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch notification",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if notification == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Notification not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, notification)
}

// DeleteNotification removes one notification.
func (h *Handlers) DeleteNotification(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	deleted, err := h.store.Delete(user.ID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to delete notification",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Notification not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted successfully"})
}

// MarkNotificationSent flips the relayed flag for one notification.
func (h *Handlers) MarkNotificationSent(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	marked, err := h.store.MarkRelayed(user.ID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to mark notification",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if !marked {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Notification not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as sent to Slack"})
}

// BulkDeleteNotifications deletes a set of notifications, reporting per-id
// misses.
func (h *Handlers) BulkDeleteNotifications(c *gin.Context) {
	h.bulkOperation(c, h.store.BulkDelete)
}

// BulkMarkNotificationsSent marks a set of notifications as relayed.
func (h *Handlers) BulkMarkNotificationsSent(c *gin.Context) {
	h.bulkOperation(c, h.store.BulkMarkRelayed)
}

func (h *Handlers) bulkOperation(c *gin.Context, op func(userID string, ids []string) (*models.BulkResponse, error)) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req models.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.NotificationIDs) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "notification_ids is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	result, err := op(user.ID, req.NotificationIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Bulk operation failed",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetStats returns lifetime notification statistics.
func (h *Handlers) GetStats(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	stats, err := h.store.Stats(user.ID)
	if err != nil {
		logrus.Errorf("Failed to compute stats: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to compute statistics",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSummary returns activity over the trailing N days (default 7).
func (h *Handlers) GetSummary(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "validation_error",
				Message: "days must be between 1 and 365",
				Code:    http.StatusBadRequest,
			})
			return
		}
		days = parsed
	}

	summary, err := h.store.Summary(user.ID, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to compute summary",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListRepositories returns the user's distinct repositories.
func (h *Handlers) ListRepositories(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	repositories, err := h.store.ListRepositories(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list repositories",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"repositories": repositories,
		"count":        len(repositories),
	})
}

// GetRepositoryStats returns per-repository activity detail.
func (h *Handlers) GetRepositoryStats(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	repoName := c.Param("owner") + "/" + c.Param("repo")
	stats, err := h.store.RepositoryStats(user.ID, repoName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to compute repository statistics",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SearchNotifications runs an advanced search.
func (h *Handlers) SearchNotifications(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "query is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	startTime := time.Now()
	results, err := h.store.Search(user.ID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Search failed",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, models.SearchResponse{
		Results:         results,
		TotalMatches:    len(results),
		SearchQuery:     req.Query,
		ExecutionTimeMs: float64(time.Since(startTime).Microseconds()) / 1000.0,
	})
}

// ExportNotifications exports the user's notifications as JSON or CSV.
func (h *Handlers) ExportNotifications(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	days := 0
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	notifications, err := h.store.ExportNotifications(user.ID, days, c.Query("repo_filter"), 10000)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Export failed",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format == "csv" {
		h.writeCSV(c, notifications)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"format":        format,
		"exported_at":   time.Now().UTC(),
		"total_records": len(notifications),
		"data":          notifications,
	})
}

func (h *Handlers) writeCSV(c *gin.Context, notifications []models.PRNotificationSummary) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=pr_notifications.csv")
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{
		"ID", "Repository", "PR Title", "PR Number", "Status",
		"Received At", "Slack Sent", "Is Forwarded", "PR Link",
	})
	for _, n := range notifications {
		writer.Write([]string{
			n.ID,
			n.RepoName,
			n.PRTitle,
			n.PRNumber,
			n.PRStatus,
			n.ReceivedAt.Format(time.RFC3339),
			fmt.Sprintf("%t", n.SlackSent),
			fmt.Sprintf("%t", n.IsForwarded),
			n.PRLink,
		})
	}
}
