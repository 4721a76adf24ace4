package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gh-pr-relay/internal/metrics"
	"gh-pr-relay/internal/models"
	"gh-pr-relay/internal/parser"
)

// ProcessInboundWebhook ingests one inbound email delivery: recipient
// resolution, PR extraction, deduplicated storage, then an immediate relay
// attempt when the user has a Slack connection.
func (h *Handlers) ProcessInboundWebhook(c *gin.Context) {
	var webhook models.InboundWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid webhook payload",
			Code:    http.StatusBadRequest,
		})
		return
	}
	h.processWebhook(c, &webhook)
}

func (h *Handlers) processWebhook(c *gin.Context, webhook *models.InboundWebhook) {
	metrics.WebhooksReceived.Inc()
	startTime := time.Now()
	defer func() {
		metrics.ProcessingTime.Observe(time.Since(startTime).Seconds())
	}()

	logrus.WithFields(logrus.Fields{
		"message_id": webhook.MessageID,
		"subject":    webhook.Subject,
	}).Info("Processing inbound webhook")

	recipient := parser.ExtractRecipient(webhook)
	user, err := h.store.FindUserByEmail(recipient)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to resolve recipient",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if user == nil {
		logrus.Warnf("No user found for recipient %s", recipient)
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "user_not_found",
			Message: fmt.Sprintf("User not found for email: %s", recipient),
			Code:    http.StatusNotFound,
		})
		return
	}

	extracted := parser.ExtractPRData(webhook)
	receivedAt := parser.ParseDate(webhook.Date)

	notification, created, err := h.store.CreateIfAbsent(user, webhook, &extracted, recipient, receivedAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "processing_error",
			Message: "Failed to store notification",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	response := models.WebhookProcessResponse{
		Success:        true,
		NotificationID: notification.ID,
		ExtractedData:  &extracted,
	}

	if !created {
		metrics.WebhookDuplicates.Inc()
		response.Message = "Notification already processed"
		c.JSON(http.StatusOK, response)
		return
	}
	metrics.NotificationsCreated.Inc()
	response.Message = "PR notification processed successfully"

	if user.SlackConnection != nil {
		payload, err := h.dispatch.DispatchNew(c.Request.Context(), user.SlackConnection, notification)
		response.ChannelPayload = payload
		if err != nil {
			// Left pending for the reminder scheduler.
			logrus.Errorf("Immediate relay failed for %s: %v", notification.ID, err)
		}
	} else {
		logrus.Debugf("User %s has no Slack connection, notification stays pending", user.Email)
	}

	c.JSON(http.StatusOK, response)
}

// WebhookHealth reports webhook endpoint liveness.
func (h *Handlers) WebhookHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "inbound-webhook",
		"timestamp": time.Now().UTC(),
	})
}

// TestWebhook accepts simplified test data, converts it to a full webhook
// payload and runs it through the normal processing path.
func (h *Handlers) TestWebhook(c *gin.Context) {
	var testPayload map[string]interface{}
	if err := c.ShouldBindJSON(&testPayload); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid test payload",
			Code:    http.StatusBadRequest,
		})
		return
	}

	str := func(key, fallback string) string {
		if v, ok := testPayload[key].(string); ok && v != "" {
			return v
		}
		return fallback
	}

	now := time.Now().UTC()
	webhook := models.InboundWebhook{
		FromName:          str("from_name", "Test User"),
		MessageStream:     "inbound",
		From:              str("from_email", "test@github.com"),
		FromFull:          models.EmailAddress{Email: str("from_email", "test@github.com"), Name: str("from_name", "Test User")},
		To:                str("to_email", "user@example.com"),
		ToFull:            []models.EmailAddress{{Email: str("to_email", "user@example.com"), Name: "Test Recipient"}},
		OriginalRecipient: str("to_email", "user@example.com"),
		Subject:           str("subject", "Fwd: [test/repo] Test PR (#123)"),
		MessageID:         str("message_id", fmt.Sprintf("test-%d", now.Unix())),
		Date:              str("date", now.Format(time.RFC1123Z)),
		TextBody:          str("text_body", "Test PR notification"),
		HtmlBody:          str("html_body", ""),
	}

	h.processWebhook(c, &webhook)
}
