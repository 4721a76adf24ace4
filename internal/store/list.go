package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gh-pr-relay/internal/models"
)

// Columns the listing endpoint may sort on. Anything else falls back to
// received_at.
var sortColumns = map[string]string{
	"received_at": "received_at",
	"created_at":  "created_at",
	"pr_title":    "pr_title",
	"repo_name":   "repo_name",
	"pr_status":   "pr_status",
}

// Fields the search endpoint may match against.
var searchColumns = map[string]string{
	"pr_title":  "pr_title",
	"repo_name": "repo_name",
	"subject":   "subject",
}

const searchResultLimit = 100

// ListNotifications returns one page of a user's notifications after applying
// the filter parameters.
func (s *Store) ListNotifications(userID string, filters models.FilterParams) (*models.NotificationList, error) {
	query := s.applyFilters(s.db.Model(&models.PRNotification{}).Where("user_id = ?", userID), filters)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	column, ok := sortColumns[filters.SortBy]
	if !ok {
		column = "received_at"
	}
	direction := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		direction = "ASC"
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 {
		filters.Limit = 50
	}
	offset := (filters.Page - 1) * filters.Limit

	var notifications []models.PRNotification
	if err := query.Order(column + " " + direction).
		Offset(offset).Limit(filters.Limit).
		Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	totalPages := int((totalCount + int64(filters.Limit) - 1) / int64(filters.Limit))
	summaries := make([]models.PRNotificationSummary, 0, len(notifications))
	for i := range notifications {
		summaries = append(summaries, notifications[i].Summary())
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(summaries),
		"page":    filters.Page,
		"pages":   totalPages,
	}).Info("Retrieved notification page")

	return &models.NotificationList{
		Notifications: summaries,
		TotalCount:    totalCount,
		Page:          filters.Page,
		Limit:         filters.Limit,
		TotalPages:    totalPages,
		HasNext:       filters.Page < totalPages,
		HasPrevious:   filters.Page > 1,
	}, nil
}

func (s *Store) applyFilters(query *gorm.DB, filters models.FilterParams) *gorm.DB {
	if filters.Status != "" {
		query = query.Where("pr_status = ?", filters.Status)
	}
	if filters.RepoName != "" {
		query = query.Where("LOWER(repo_name) LIKE LOWER(?)", "%"+filters.RepoName+"%")
	}
	if filters.DaysOld > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -filters.DaysOld)
		query = query.Where("received_at <= ?", cutoff)
	}
	if filters.SlackSent != nil {
		query = query.Where("slack_sent = ?", *filters.SlackSent)
	}
	if filters.IsForwarded != nil {
		query = query.Where("is_forwarded = ?", *filters.IsForwarded)
	}
	return query
}

// Search runs an advanced search over a user's notifications. Unknown search
// fields are ignored; with none left the default field set is used.
func (s *Store) Search(userID string, req models.SearchRequest) ([]models.PRNotificationSummary, error) {
	fields := req.SearchFields
	if len(fields) == 0 {
		fields = []string{"pr_title", "repo_name", "subject"}
	}

	query := s.db.Model(&models.PRNotification{}).Where("user_id = ?", userID)
	if req.DateFrom != nil {
		query = query.Where("received_at >= ?", *req.DateFrom)
	}
	if req.DateTo != nil {
		query = query.Where("received_at <= ?", *req.DateTo)
	}

	var matcher *gorm.DB
	for _, field := range fields {
		column, ok := searchColumns[field]
		if !ok {
			continue
		}
		var condition *gorm.DB
		if req.ExactMatch {
			condition = s.db.Where(column+" = ?", req.Query)
		} else {
			condition = s.db.Where("LOWER("+column+") LIKE LOWER(?)", "%"+req.Query+"%")
		}
		if matcher == nil {
			matcher = condition
		} else {
			matcher = matcher.Or(condition)
		}
	}
	if matcher != nil {
		query = query.Where(matcher)
	}

	var notifications []models.PRNotification
	if err := query.Order("received_at DESC").Limit(searchResultLimit).Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	results := make([]models.PRNotificationSummary, 0, len(notifications))
	for i := range notifications {
		results = append(results, notifications[i].Summary())
	}
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"query":   req.Query,
		"matches": len(results),
	}).Info("Notification search completed")
	return results, nil
}

// ExportNotifications returns a user's notifications for export, newest
// first. days limits the window to the trailing N days; repoFilter is a
// case-insensitive substring match.
func (s *Store) ExportNotifications(userID string, days int, repoFilter string, limit int) ([]models.PRNotificationSummary, error) {
	query := s.db.Model(&models.PRNotification{}).Where("user_id = ?", userID)
	if days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		query = query.Where("received_at >= ?", cutoff)
	}
	if repoFilter != "" {
		query = query.Where("LOWER(repo_name) LIKE LOWER(?)", "%"+repoFilter+"%")
	}

	var notifications []models.PRNotification
	if err := query.Order("received_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to export notifications: %w", err)
	}

	summaries := make([]models.PRNotificationSummary, 0, len(notifications))
	for i := range notifications {
		summaries = append(summaries, notifications[i].Summary())
	}
	return summaries, nil
}

// ListRepositories returns the distinct repositories a user has notifications
// for, alphabetically.
func (s *Store) ListRepositories(userID string) ([]string, error) {
	var repositories []string
	err := s.db.Model(&models.PRNotification{}).
		Where("user_id = ? AND repo_name <> ''", userID).
		Distinct("repo_name").
		Order("repo_name").
		Pluck("repo_name", &repositories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	return repositories, nil
}
