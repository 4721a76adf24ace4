package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gh-pr-relay/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.SlackConnection{}, &models.PRNotification{}))
	return New(db)
}

func seedUser(t *testing.T, s *Store) *models.User {
	t.Helper()
	user := &models.User{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, s.db.Create(user).Error)
	return user
}

func seedNotification(t *testing.T, s *Store, userID, messageID, status string, age time.Duration) *models.PRNotification {
	t.Helper()
	n := &models.PRNotification{
		UserID:         userID,
		SenderEmail:    "notifications@github.com",
		RecipientEmail: "ada@example.com",
		RepoName:       "a/b",
		PRTitle:        "Fix " + messageID,
		PRStatus:       status,
		Subject:        "[a/b] Fix " + messageID,
		MessageID:      messageID,
		ReceivedAt:     time.Now().UTC().Add(-age),
	}
	require.NoError(t, s.db.Create(n).Error)
	return n
}

func TestCreateIfAbsentDeduplicates(t *testing.T) {
	s := testStore(t)
	user := seedUser(t, s)

	webhook := &models.InboundWebhook{
		From:      "notifications@github.com",
		Subject:   "[a/b] Fix bug (#42)",
		MessageID: "msg-dedupe-1",
	}
	extracted := &models.PRExtractionResult{
		RepoName: "a/b",
		PRTitle:  "Fix bug",
		PRNumber: "42",
		PRStatus: models.StatusOpened,
	}
	receivedAt := time.Now().UTC().Add(-time.Hour)

	first, created, err := s.CreateIfAbsent(user, webhook, extracted, "ada@example.com", receivedAt)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotEmpty(t, first.ID)

	second, created, err := s.CreateIfAbsent(user, webhook, extracted, "ada@example.com", receivedAt)
	require.NoError(t, err)
	assert.False(t, created, "redelivery of the same message id must not create")
	assert.Equal(t, first.ID, second.ID, "redelivery returns the existing record")

	var count int64
	require.NoError(t, s.db.Model(&models.PRNotification{}).
		Where("message_id = ?", webhook.MessageID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateIfAbsentForwardedSender(t *testing.T) {
	s := testStore(t)
	user := seedUser(t, s)

	webhook := &models.InboundWebhook{
		From:      "forwarder@corp.example.com",
		Subject:   "Fwd: [a/b] Fix bug (#42)",
		MessageID: "msg-fwd-1",
	}
	extracted := &models.PRExtractionResult{
		PRTitle:        "Fix bug",
		IsForwarded:    true,
		OriginalSender: "notifications@github.com",
	}

	n, created, err := s.CreateIfAbsent(user, webhook, extracted, "ada@example.com", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, "notifications@github.com", n.SenderEmail,
		"forwarded mail records the original sender")
	assert.True(t, n.IsForwarded)
}

func TestRetentionSweepSelectivity(t *testing.T) {
	s := testStore(t)
	user := seedUser(t, s)

	oldAge := 100 * 24 * time.Hour
	oldClosed := seedNotification(t, s, user.ID, "m-old-closed", models.StatusClosed, oldAge)
	oldMerged := seedNotification(t, s, user.ID, "m-old-merged", models.StatusMerged, oldAge)
	oldOpen := seedNotification(t, s, user.ID, "m-old-open", models.StatusOpened, oldAge)
	recentClosed := seedNotification(t, s, user.ID, "m-new-closed", models.StatusClosed, 24*time.Hour)

	deleted, err := s.RetentionSweep(90)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var remaining []models.PRNotification
	require.NoError(t, s.db.Order("message_id").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, recentClosed.ID, remaining[0].ID, "closed but inside the window survives")
	assert.Equal(t, oldOpen.ID, remaining[1].ID, "open records survive regardless of age")

	gone, err := s.GetByID(user.ID, oldClosed.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	gone, err = s.GetByID(user.ID, oldMerged.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestListNotificationsSortOrderCase(t *testing.T) {
	s := testStore(t)
	user := seedUser(t, s)

	for i := 1; i <= 3; i++ {
		seedNotification(t, s, user.ID, fmt.Sprintf("m-%d", i), models.StatusOpened,
			time.Duration(i)*24*time.Hour)
	}

	list, err := s.ListNotifications(user.ID, models.FilterParams{
		Page: 1, Limit: 10, SortBy: "received_at", SortOrder: "ASC",
	})
	require.NoError(t, err)
	require.Len(t, list.Notifications, 3)
	assert.True(t, list.Notifications[0].ReceivedAt.Before(list.Notifications[2].ReceivedAt),
		"uppercase sort order still sorts ascending")
}
