package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gh-pr-relay/internal/models"
)

// Store wraps all database access for users, connections and notifications.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindUserByEmail resolves a user by primary or inbound relay address.
func (s *Store) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	result := s.db.Preload("SlackConnection").
		Where("email = ? OR inbound_email = ?", email, email).
		First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error looking up user: %w", result.Error)
	}
	return &user, nil
}

// GetUser fetches a user by id with the Slack connection preloaded.
func (s *Store) GetUser(userID string) (*models.User, error) {
	var user models.User
	result := s.db.Preload("SlackConnection").Where("id = ?", userID).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error looking up user: %w", result.Error)
	}
	return &user, nil
}

// CreateIfAbsent stores a notification for the webhook delivery, deduplicated
// on message id. A redelivery returns the existing record with created=false
// and never fails. The sender is the forwarded original sender when one was
// extracted, otherwise the webhook envelope sender.
func (s *Store) CreateIfAbsent(
	user *models.User,
	webhook *models.InboundWebhook,
	extracted *models.PRExtractionResult,
	recipient string,
	receivedAt time.Time,
) (*models.PRNotification, bool, error) {
	existing, err := s.findByMessageID(webhook.MessageID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		logrus.WithField("message_id", webhook.MessageID).Info("Notification already exists, skipping create")
		return existing, false, nil
	}

	senderEmail := webhook.From
	if extracted.IsForwarded && extracted.OriginalSender != "" {
		senderEmail = extracted.OriginalSender
	}

	notification := models.PRNotification{
		UserID:         user.ID,
		SenderEmail:    senderEmail,
		RecipientEmail: recipient,
		RepoName:       extracted.RepoName,
		PRTitle:        extracted.PRTitle,
		PRLink:         extracted.PRLink,
		PRNumber:       extracted.PRNumber,
		PRStatus:       extracted.PRStatus,
		Subject:        webhook.Subject,
		ReceivedAt:     receivedAt,
		MessageID:      webhook.MessageID,
		RawText:        webhook.TextBody,
		RawHTML:        webhook.HtmlBody,
		SlackSent:      false,
		IsForwarded:    extracted.IsForwarded,
	}

	if err := s.db.Create(&notification).Error; err != nil {
		// A concurrent delivery may have won the unique index race.
		if existing, lookupErr := s.findByMessageID(webhook.MessageID); lookupErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create notification: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"notification_id": notification.ID,
		"repo_name":       notification.RepoName,
		"user_email":      user.Email,
	}).Info("PR notification created")
	return &notification, true, nil
}

func (s *Store) findByMessageID(messageID string) (*models.PRNotification, error) {
	var notification models.PRNotification
	result := s.db.Where("message_id = ?", messageID).First(&notification)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error checking message id: %w", result.Error)
	}
	return &notification, nil
}

// GetByID fetches one notification owned by the user. Unknown or foreign ids
// report not-found rather than an error.
func (s *Store) GetByID(userID, notificationID string) (*models.PRNotification, error) {
	var notification models.PRNotification
	result := s.db.Where("id = ? AND user_id = ?", notificationID, userID).First(&notification)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error fetching notification: %w", result.Error)
	}
	return &notification, nil
}

// Delete removes one notification owned by the user. Returns false when the
// record does not exist or belongs to someone else.
func (s *Store) Delete(userID, notificationID string) (bool, error) {
	result := s.db.Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.PRNotification{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete notification: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkRelayed flips slack_sent for one user-owned notification. Returns false
// for unknown ids.
func (s *Store) MarkRelayed(userID, notificationID string) (bool, error) {
	result := s.db.Model(&models.PRNotification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("slack_sent", true)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark notification as sent: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkAllRelayed flips slack_sent on the given records in one statement.
// Used after a successful batch dispatch where marking is all-or-nothing.
func (s *Store) MarkAllRelayed(notifications []models.PRNotification) error {
	if len(notifications) == 0 {
		return nil
	}
	ids := make([]string, 0, len(notifications))
	for i := range notifications {
		ids = append(ids, notifications[i].ID)
	}
	result := s.db.Model(&models.PRNotification{}).
		Where("id IN ?", ids).
		Update("slack_sent", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notifications as sent: %w", result.Error)
	}
	return nil
}

// BulkDelete deletes each named notification, collecting ids that were not
// found. Per-id misses do not abort the batch.
func (s *Store) BulkDelete(userID string, notificationIDs []string) (*models.BulkResponse, error) {
	return s.bulkApply(userID, notificationIDs, func(id string) (bool, error) {
		return s.Delete(userID, id)
	})
}

// BulkMarkRelayed marks each named notification as relayed, collecting ids
// that were not found.
func (s *Store) BulkMarkRelayed(userID string, notificationIDs []string) (*models.BulkResponse, error) {
	return s.bulkApply(userID, notificationIDs, func(id string) (bool, error) {
		return s.MarkRelayed(userID, id)
	})
}

func (s *Store) bulkApply(userID string, ids []string, op func(id string) (bool, error)) (*models.BulkResponse, error) {
	response := &models.BulkResponse{Success: true}
	for _, id := range ids {
		ok, err := op(strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		if ok {
			response.ProcessedCount++
		} else {
			response.FailedCount++
			response.FailedIDs = append(response.FailedIDs, id)
		}
	}
	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"processed": response.ProcessedCount,
		"failed":    response.FailedCount,
	}).Info("Bulk notification operation completed")
	return response, nil
}
