package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gh-pr-relay/internal/config"
	"gh-pr-relay/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	users     []models.User
	openPRs   map[string][]models.PRNotification
	summaries map[string]*models.DailySummaryData
	swept     int64
	sweepDays int
}

func (f *fakeStore) UsersWithSlack() ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, nil
}

func (f *fakeStore) GetUser(userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == userID {
			return &f.users[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) OldOpenPRs(userID string, thresholdDays, limit int) ([]models.PRNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prs := f.openPRs[userID]
	if limit > 0 && len(prs) > limit {
		prs = prs[:limit]
	}
	return prs, nil
}

func (f *fakeStore) DailySummaryData(userID string, attentionDays int) (*models.DailySummaryData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.summaries[userID]; ok {
		return data, nil
	}
	return &models.DailySummaryData{}, nil
}

func (f *fakeStore) RetentionSweep(olderThanDays int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweepDays = olderThanDays
	return f.swept, nil
}

type fakeDispatcher struct {
	mu          sync.Mutex
	singleUsers []string
	batchUsers  []string
	batchSizes  []int
	summaries   []string
	failUserID  string
	done        chan struct{}
}

func (f *fakeDispatcher) signal() {
	if f.done != nil {
		select {
		case f.done <- struct{}{}:
		default:
		}
	}
}

func (f *fakeDispatcher) DispatchSingle(ctx context.Context, conn *models.SlackConnection, user *models.User, n *models.PRNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == f.failUserID {
		return errors.New("slack API error: invalid_auth")
	}
	f.singleUsers = append(f.singleUsers, user.ID)
	f.signal()
	return nil
}

func (f *fakeDispatcher) DispatchBatch(ctx context.Context, conn *models.SlackConnection, user *models.User, notifications []models.PRNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == f.failUserID {
		return errors.New("slack API error: invalid_auth")
	}
	f.batchUsers = append(f.batchUsers, user.ID)
	f.batchSizes = append(f.batchSizes, len(notifications))
	f.signal()
	return nil
}

func (f *fakeDispatcher) DispatchSummary(ctx context.Context, conn *models.SlackConnection, user *models.User, data *models.DailySummaryData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, user.ID)
	return nil
}

func testSchedulerConfig() *config.SchedulerConfig {
	return &config.SchedulerConfig{
		DailyReminderHour:    9,
		DailySummaryHour:     8,
		UrgentReminderHour:   14,
		WeeklyCleanupDay:     "SUN",
		WeeklyCleanupHour:    2,
		DailyThresholdDays:   2,
		UrgentThresholdDays:  7,
		AttentionDays:        3,
		CleanupThresholdDays: 90,
		MaxRemindersPerUser:  10,
		MaxUrgentPerUser:     5,
	}
}

func connectedUser(id, name string) models.User {
	return models.User{
		ID:    id,
		Name:  name,
		Email: name + "@example.com",
		SlackConnection: &models.SlackConnection{
			UserID:      id,
			SlackUserID: "U" + id,
			AccessToken: "xoxb-" + id,
		},
	}
}

func agedPR(id string, days int) models.PRNotification {
	return models.PRNotification{
		ID:         id,
		RepoName:   "a/b",
		PRTitle:    "Fix " + id,
		PRStatus:   models.StatusOpened,
		ReceivedAt: time.Now().UTC().AddDate(0, 0, -days),
	}
}

func TestSchedulerStartStop(t *testing.T) {
	sched := NewScheduler(testSchedulerConfig(), &fakeStore{}, &fakeDispatcher{})

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	assert.Error(t, sched.Start(), "double start must fail")

	require.NoError(t, sched.Stop())
	assert.False(t, sched.IsRunning())
	assert.NoError(t, sched.Stop(), "stopping a stopped scheduler is a no-op")
}

func TestSchedulerRestart(t *testing.T) {
	sched := NewScheduler(testSchedulerConfig(), &fakeStore{}, &fakeDispatcher{})

	require.NoError(t, sched.Start())
	require.NoError(t, sched.Stop())
	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())

	jobs := sched.Jobs()
	assert.Len(t, jobs, 4, "restart must not duplicate recurring jobs")
	require.NoError(t, sched.Stop())
}

func TestSchedulerJobs(t *testing.T) {
	sched := NewScheduler(testSchedulerConfig(), &fakeStore{}, &fakeDispatcher{})
	require.NoError(t, sched.Start())
	defer sched.Stop()

	jobs := sched.Jobs()
	require.Len(t, jobs, 4)

	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name)
		assert.NotNil(t, job.NextRun, "recurring job %s must have a next run", job.Name)
	}
	assert.ElementsMatch(t, []string{JobDailyReminders, JobUrgentReminders, JobDailySummaries, JobWeeklyCleanup}, names)
}

func TestRunRemindersSinglePR(t *testing.T) {
	store := &fakeStore{
		users:   []models.User{connectedUser("u1", "ada")},
		openPRs: map[string][]models.PRNotification{"u1": {agedPR("n1", 5)}},
	}
	dispatcher := &fakeDispatcher{}
	sched := NewScheduler(testSchedulerConfig(), store, dispatcher)

	sched.RunReminders(2, 10)

	assert.Equal(t, []string{"u1"}, dispatcher.singleUsers)
	assert.Empty(t, dispatcher.batchUsers, "one PR goes out as a single reminder")
}

func TestRunRemindersBatchesMultiplePRs(t *testing.T) {
	store := &fakeStore{
		users: []models.User{connectedUser("u1", "ada")},
		openPRs: map[string][]models.PRNotification{
			"u1": {agedPR("n1", 5), agedPR("n2", 9), agedPR("n3", 3)},
		},
	}
	dispatcher := &fakeDispatcher{}
	sched := NewScheduler(testSchedulerConfig(), store, dispatcher)

	sched.RunReminders(2, 10)

	assert.Empty(t, dispatcher.singleUsers)
	assert.Equal(t, []string{"u1"}, dispatcher.batchUsers)
	assert.Equal(t, []int{3}, dispatcher.batchSizes)
}

func TestRunRemindersUserIsolation(t *testing.T) {
	store := &fakeStore{
		users: []models.User{
			connectedUser("u1", "ada"),
			connectedUser("u2", "bob"),
			connectedUser("u3", "cleo"),
		},
		openPRs: map[string][]models.PRNotification{
			"u1": {agedPR("n1", 5)},
			"u2": {agedPR("n2", 5)},
			"u3": {agedPR("n3", 5)},
		},
	}
	dispatcher := &fakeDispatcher{failUserID: "u2"}
	sched := NewScheduler(testSchedulerConfig(), store, dispatcher)

	sched.RunReminders(2, 10)

	assert.Equal(t, []string{"u1", "u3"}, dispatcher.singleUsers, "one failing user must not abort the run")
}

func TestRunRemindersSkipsDisconnectedUsers(t *testing.T) {
	disconnected := models.User{ID: "u1", Name: "ada", Email: "ada@example.com"}
	store := &fakeStore{
		users:   []models.User{disconnected},
		openPRs: map[string][]models.PRNotification{"u1": {agedPR("n1", 5)}},
	}
	dispatcher := &fakeDispatcher{}
	sched := NewScheduler(testSchedulerConfig(), store, dispatcher)

	sched.RunReminders(2, 10)

	assert.Empty(t, dispatcher.singleUsers)
	assert.Empty(t, dispatcher.batchUsers)
}

func TestRunSummariesSkipsUsersWithNoOpenPRs(t *testing.T) {
	store := &fakeStore{
		users: []models.User{connectedUser("u1", "ada"), connectedUser("u2", "bob")},
		summaries: map[string]*models.DailySummaryData{
			"u1": {TotalOpen: 3, NewToday: 1},
			"u2": {TotalOpen: 0},
		},
	}
	dispatcher := &fakeDispatcher{}
	sched := NewScheduler(testSchedulerConfig(), store, dispatcher)

	sched.RunSummaries()

	assert.Equal(t, []string{"u1"}, dispatcher.summaries)
}

func TestRunJobNow(t *testing.T) {
	store := &fakeStore{swept: 7}
	sched := NewScheduler(testSchedulerConfig(), store, &fakeDispatcher{})

	require.NoError(t, sched.RunJobNow(JobWeeklyCleanup))
	assert.Equal(t, 90, store.sweepDays)

	assert.Error(t, sched.RunJobNow("no_such_job"))
}

func TestTriggerUserReminderRunsAndExpires(t *testing.T) {
	store := &fakeStore{
		users:   []models.User{connectedUser("u1", "ada")},
		openPRs: map[string][]models.PRNotification{"u1": {agedPR("n1", 5)}},
	}
	dispatcher := &fakeDispatcher{done: make(chan struct{}, 1)}
	sched := NewScheduler(testSchedulerConfig(), store, dispatcher)

	jobID, err := sched.TriggerUserReminder("u1", time.Now().Add(10*time.Millisecond), 2, 10)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	select {
	case <-dispatcher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled reminder did not fire")
	}
	sched.Wait()

	assert.Equal(t, []string{"u1"}, dispatcher.singleUsers)
	assert.False(t, sched.CancelJob(jobID), "fired job is gone from the registry")
}

func TestCancelScheduledReminder(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	sched := NewScheduler(testSchedulerConfig(), &fakeStore{}, dispatcher)

	jobID, err := sched.TriggerUserReminder("u1", time.Now().Add(time.Hour), 2, 10)
	require.NoError(t, err)

	jobs := sched.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, jobID, jobs[0].ID)

	assert.True(t, sched.CancelJob(jobID))
	assert.False(t, sched.CancelJob(jobID), "second cancel reports not found")
	assert.Empty(t, sched.Jobs())
	assert.Empty(t, dispatcher.singleUsers)
}
