package store

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"gh-pr-relay/internal/models"
)

// OldOpenPRs returns a user's open, still-pending notifications received at
// least thresholdDays ago, oldest first, capped at limit.
func (s *Store) OldOpenPRs(userID string, thresholdDays, limit int) ([]models.PRNotification, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -thresholdDays)

	var notifications []models.PRNotification
	query := s.db.Where(
		"user_id = ? AND pr_status = ? AND received_at <= ? AND slack_sent = ?",
		userID, models.StatusOpened, cutoff, false,
	).Order("received_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch old open PRs: %w", err)
	}
	return notifications, nil
}

// RetentionSweep removes merged and closed notifications older than the
// cutoff. Open records are never swept regardless of age.
func (s *Store) RetentionSweep(olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	result := s.db.Where(
		"received_at < ? AND pr_status IN ?",
		cutoff, []string{models.StatusMerged, models.StatusClosed},
	).Delete(&models.PRNotification{})
	if result.Error != nil {
		return 0, fmt.Errorf("retention sweep failed: %w", result.Error)
	}

	logrus.WithFields(logrus.Fields{
		"deleted_count": result.RowsAffected,
		"older_than":    olderThanDays,
	}).Info("Retention sweep completed")
	return result.RowsAffected, nil
}

// UsersWithSlack returns every user that has a Slack connection, in a stable
// order, with connections preloaded.
func (s *Store) UsersWithSlack() ([]models.User, error) {
	var users []models.User
	err := s.db.
		Joins("JOIN slack_connections ON slack_connections.user_id = users.id").
		Preload("SlackConnection").
		Order("users.created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users with Slack connections: %w", err)
	}
	return users, nil
}
