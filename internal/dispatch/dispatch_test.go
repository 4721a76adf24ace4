package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gh-pr-relay/internal/models"
)

type fakePoster struct {
	calls    int
	failWith error
	lastMsg  models.SlackPayload
}

func (f *fakePoster) PostMessage(ctx context.Context, token, channel string, msg models.SlackPayload) (string, error) {
	f.calls++
	f.lastMsg = msg
	if f.failWith != nil {
		return "", f.failWith
	}
	return "1234.5678", nil
}

type fakeMarker struct {
	marked     []string
	markedAll  int
	markAllErr error
}

func (f *fakeMarker) MarkRelayed(userID, notificationID string) (bool, error) {
	f.marked = append(f.marked, notificationID)
	return true, nil
}

func (f *fakeMarker) MarkAllRelayed(notifications []models.PRNotification) error {
	if f.markAllErr != nil {
		return f.markAllErr
	}
	f.markedAll += len(notifications)
	return nil
}

func testUser() *models.User {
	return &models.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}
}

func testConn() *models.SlackConnection {
	return &models.SlackConnection{UserID: "u1", SlackUserID: "U123", AccessToken: "xoxb-test"}
}

func notificationAgedDays(id string, days int) models.PRNotification {
	return models.PRNotification{
		ID:         id,
		UserID:     "u1",
		RepoName:   "a/b",
		PRTitle:    "Fix " + id,
		PRLink:     "https://github.com/a/b/pull/1",
		PRStatus:   models.StatusOpened,
		ReceivedAt: time.Now().UTC().AddDate(0, 0, -days),
	}
}

func TestAgeBucketBoundaries(t *testing.T) {
	assert.Equal(t, BucketRecent, AgeBucket(0))
	assert.Equal(t, BucketRecent, AgeBucket(2))
	assert.Equal(t, BucketGettingOld, AgeBucket(3))
	assert.Equal(t, BucketGettingOld, AgeBucket(7))
	assert.Equal(t, BucketUrgent, AgeBucket(8))
	assert.Equal(t, BucketUrgent, AgeBucket(30))
}

func TestDispatchSingleAlreadyRelayed(t *testing.T) {
	poster := &fakePoster{}
	marker := &fakeMarker{}
	service := NewService(poster, marker)

	n := notificationAgedDays("n1", 3)
	n.SlackSent = true

	err := service.DispatchSingle(context.Background(), testConn(), testUser(), &n)
	require.NoError(t, err)
	assert.Zero(t, poster.calls, "already-relayed notification must not hit the API")
	assert.Empty(t, marker.marked)
}

func TestDispatchSingleSendsAndMarks(t *testing.T) {
	poster := &fakePoster{}
	marker := &fakeMarker{}
	service := NewService(poster, marker)

	n := notificationAgedDays("n1", 3)
	err := service.DispatchSingle(context.Background(), testConn(), testUser(), &n)
	require.NoError(t, err)
	assert.Equal(t, 1, poster.calls)
	assert.Equal(t, []string{"n1"}, marker.marked)
	assert.Contains(t, poster.lastMsg.Text, "Ada")
}

func TestDispatchSingleFailureDoesNotMark(t *testing.T) {
	poster := &fakePoster{failWith: errors.New("slack API error: channel_not_found")}
	marker := &fakeMarker{}
	service := NewService(poster, marker)

	n := notificationAgedDays("n1", 3)
	err := service.DispatchSingle(context.Background(), testConn(), testUser(), &n)
	require.Error(t, err)
	assert.Empty(t, marker.marked)
}

func TestDispatchBatchAllOrNothing(t *testing.T) {
	poster := &fakePoster{}
	marker := &fakeMarker{}
	service := NewService(poster, marker)

	notifications := []models.PRNotification{
		notificationAgedDays("n1", 1),
		notificationAgedDays("n2", 5),
		notificationAgedDays("n3", 10),
	}

	err := service.DispatchBatch(context.Background(), testConn(), testUser(), notifications)
	require.NoError(t, err)
	assert.Equal(t, 1, poster.calls, "batch sends a single message")
	assert.Equal(t, 3, marker.markedAll)
}

func TestDispatchBatchFailureMarksNothing(t *testing.T) {
	poster := &fakePoster{failWith: errors.New("slack API error: invalid_auth")}
	marker := &fakeMarker{}
	service := NewService(poster, marker)

	notifications := []models.PRNotification{
		notificationAgedDays("n1", 1),
		notificationAgedDays("n2", 5),
	}

	err := service.DispatchBatch(context.Background(), testConn(), testUser(), notifications)
	require.Error(t, err)
	assert.Zero(t, marker.markedAll)
}

func TestDispatchBatchSkipsRelayed(t *testing.T) {
	poster := &fakePoster{}
	marker := &fakeMarker{}
	service := NewService(poster, marker)

	sent := notificationAgedDays("n1", 4)
	sent.SlackSent = true
	notifications := []models.PRNotification{sent, notificationAgedDays("n2", 4)}

	err := service.DispatchBatch(context.Background(), testConn(), testUser(), notifications)
	require.NoError(t, err)
	assert.Equal(t, 1, marker.markedAll)
}

func TestDispatchBatchAllRelayedIsNoop(t *testing.T) {
	poster := &fakePoster{}
	marker := &fakeMarker{}
	service := NewService(poster, marker)

	sent := notificationAgedDays("n1", 4)
	sent.SlackSent = true

	err := service.DispatchBatch(context.Background(), testConn(), testUser(), []models.PRNotification{sent})
	require.NoError(t, err)
	assert.Zero(t, poster.calls)
}

func TestBulkReminderBlocksOverflow(t *testing.T) {
	now := time.Now().UTC()
	var notifications []models.PRNotification
	for i := 0; i < 7; i++ {
		notifications = append(notifications, notificationAgedDays("n", 10))
	}

	blocks := bulkReminderBlocks(groupByAge(notifications, now), now)

	var overflow bool
	for _, block := range blocks {
		if block["type"] != "context" {
			continue
		}
		elements, ok := block["elements"].([]map[string]interface{})
		if ok && len(elements) > 0 {
			if text, ok := elements[0]["text"].(string); ok {
				assert.Contains(t, text, "2 more")
				overflow = true
			}
		}
	}
	assert.True(t, overflow, "seven urgent PRs should produce an overflow line")
}

func TestBulkEntryTextTruncatesOnRunes(t *testing.T) {
	now := time.Now().UTC()
	n := notificationAgedDays("n1", 3)
	n.PRTitle = strings.Repeat("é", 60)
	n.PRLink = ""

	text := bulkEntryText(&n, now)
	assert.True(t, utf8.ValidString(text), "truncation must not split a multi-byte character")
	assert.Contains(t, text, strings.Repeat("é", 50)+"...")
	assert.NotContains(t, text, strings.Repeat("é", 51))
}

func TestDispatchSummary(t *testing.T) {
	poster := &fakePoster{}
	service := NewService(poster, &fakeMarker{})

	data := &models.DailySummaryData{
		TotalOpen:      4,
		NewToday:       1,
		NeedsAttention: 2,
		MostActiveRepo: "a/b",
		ActionItems:    []string{"Review 2 old open PRs"},
	}
	err := service.DispatchSummary(context.Background(), testConn(), testUser(), data)
	require.NoError(t, err)
	assert.Equal(t, 1, poster.calls)
	assert.Contains(t, poster.lastMsg.Text, "Good morning Ada")
}

func TestTestConnection(t *testing.T) {
	poster := &fakePoster{}
	service := NewService(poster, &fakeMarker{})

	require.NoError(t, service.TestConnection(context.Background(), testConn()))
	assert.Equal(t, 1, poster.calls)

	poster.failWith = errors.New("slack API error: invalid_auth")
	assert.Error(t, service.TestConnection(context.Background(), testConn()))
}
