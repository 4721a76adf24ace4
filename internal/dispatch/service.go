package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"gh-pr-relay/internal/metrics"
	"gh-pr-relay/internal/models"
	"gh-pr-relay/internal/parser"
)

// Marker records delivery outcomes. Satisfied by the store.
type Marker interface {
	MarkRelayed(userID, notificationID string) (bool, error)
	MarkAllRelayed(notifications []models.PRNotification) error
}

// Service turns stored notifications into Slack messages and records what
// was delivered.
type Service struct {
	client MessagePoster
	marker Marker
}

func NewService(client MessagePoster, marker Marker) *Service {
	return &Service{client: client, marker: marker}
}

// DispatchNew relays a freshly ingested notification as a channel message.
// Called from the webhook path right after the record is created; delivery
// failure leaves the record pending for the reminder scheduler.
func (s *Service) DispatchNew(ctx context.Context, conn *models.SlackConnection, n *models.PRNotification) (*models.SlackPayload, error) {
	payload := parser.BuildSlackPayload(&models.PRExtractionResult{
		RepoName:    n.RepoName,
		PRTitle:     n.PRTitle,
		PRLink:      n.PRLink,
		PRNumber:    n.PRNumber,
		PRStatus:    n.PRStatus,
		IsForwarded: n.IsForwarded,
	})

	if _, err := s.client.PostMessage(ctx, conn.AccessToken, conn.SlackUserID, payload); err != nil {
		metrics.DispatchFailures.Inc()
		return &payload, fmt.Errorf("failed to relay notification: %w", err)
	}
	metrics.DispatchSuccesses.Inc()

	if _, err := s.marker.MarkRelayed(n.UserID, n.ID); err != nil {
		return &payload, fmt.Errorf("relayed but failed to record delivery: %w", err)
	}
	n.SlackSent = true

	logrus.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"repo_name":       n.RepoName,
	}).Info("Notification relayed to Slack")
	return &payload, nil
}

// DispatchSingle sends a reminder for one open PR. Already-relayed records
// are a silent no-op: no message is sent and no error returned.
func (s *Service) DispatchSingle(ctx context.Context, conn *models.SlackConnection, user *models.User, n *models.PRNotification) error {
	if n.SlackSent {
		logrus.WithField("notification_id", n.ID).Debug("Notification already relayed, skipping reminder")
		return nil
	}

	daysAgo := n.DaysOld(time.Now().UTC())
	payload := models.SlackPayload{
		Text:   fmt.Sprintf("👋 Hey %s, you have an open PR that needs attention!", user.Name),
		Blocks: singleReminderBlocks(n, daysAgo),
	}

	if _, err := s.client.PostMessage(ctx, conn.AccessToken, conn.SlackUserID, payload); err != nil {
		metrics.DispatchFailures.Inc()
		return fmt.Errorf("failed to send PR reminder: %w", err)
	}
	metrics.DispatchSuccesses.Inc()

	if _, err := s.marker.MarkRelayed(n.UserID, n.ID); err != nil {
		return fmt.Errorf("reminder sent but failed to record delivery: %w", err)
	}
	return nil
}

// DispatchBatch sends one message covering several open PRs, grouped by age.
// Marking is all-or-nothing: every covered record is marked relayed only
// after the send succeeds.
func (s *Service) DispatchBatch(ctx context.Context, conn *models.SlackConnection, user *models.User, notifications []models.PRNotification) error {
	pending := make([]models.PRNotification, 0, len(notifications))
	for i := range notifications {
		if !notifications[i].SlackSent {
			pending = append(pending, notifications[i])
		}
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	prWord := "PRs"
	verb := "need"
	if len(pending) == 1 {
		prWord = "PR"
		verb = "needs"
	}

	payload := models.SlackPayload{
		Text:   fmt.Sprintf("👋 Hey %s, you have %d open %s that %s attention!", user.Name, len(pending), prWord, verb),
		Blocks: bulkReminderBlocks(groupByAge(pending, now), now),
	}

	if _, err := s.client.PostMessage(ctx, conn.AccessToken, conn.SlackUserID, payload); err != nil {
		metrics.DispatchFailures.Inc()
		return fmt.Errorf("failed to send bulk PR reminder: %w", err)
	}
	metrics.DispatchSuccesses.Inc()

	if err := s.marker.MarkAllRelayed(pending); err != nil {
		return fmt.Errorf("bulk reminder sent but failed to record delivery: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_email": user.Email,
		"pr_count":   len(pending),
	}).Info("Bulk PR reminder sent")
	return nil
}

// DispatchSummary sends the daily digest.
func (s *Service) DispatchSummary(ctx context.Context, conn *models.SlackConnection, user *models.User, data *models.DailySummaryData) error {
	payload := models.SlackPayload{
		Text:   fmt.Sprintf("📊 Good morning %s! Here's your PR summary for today:", user.Name),
		Blocks: dailySummaryBlocks(data),
	}

	if _, err := s.client.PostMessage(ctx, conn.AccessToken, conn.SlackUserID, payload); err != nil {
		metrics.DispatchFailures.Inc()
		return fmt.Errorf("failed to send daily summary: %w", err)
	}
	metrics.DispatchSuccesses.Inc()
	return nil
}

// TestConnection sends a short test message over the user's connection.
func (s *Service) TestConnection(ctx context.Context, conn *models.SlackConnection) error {
	payload := models.SlackPayload{
		Text: "🧪 Test message from your PR notification system! Connection is working perfectly. 🎉",
	}
	if _, err := s.client.PostMessage(ctx, conn.AccessToken, conn.SlackUserID, payload); err != nil {
		return fmt.Errorf("slack connection test failed: %w", err)
	}
	return nil
}
