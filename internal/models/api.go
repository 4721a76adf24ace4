package models

import "time"

// FilterParams narrows and orders a notification listing.
type FilterParams struct {
	Status      string `form:"status"`
	RepoName    string `form:"repo_name"`
	DaysOld     int    `form:"days_old"`
	SlackSent   *bool  `form:"slack_sent"`
	IsForwarded *bool  `form:"is_forwarded"`
	Page        int    `form:"page,default=1"`
	Limit       int    `form:"limit,default=50"`
	SortBy      string `form:"sort_by,default=received_at"`
	SortOrder   string `form:"sort_order,default=desc"`
}

// NotificationList is one page of notifications plus pagination info.
type NotificationList struct {
	Notifications []PRNotificationSummary `json:"notifications"`
	TotalCount    int64                   `json:"total_count"`
	Page          int                     `json:"page"`
	Limit         int                     `json:"limit"`
	TotalPages    int                     `json:"total_pages"`
	HasNext       bool                    `json:"has_next"`
	HasPrevious   bool                    `json:"has_previous"`
}

// StatsResponse aggregates a user's notification history.
type StatsResponse struct {
	TotalNotifications int64            `json:"total_notifications"`
	SlackSent          int64            `json:"slack_sent"`
	PendingSlack       int64            `json:"pending_slack"`
	ByStatus           map[string]int64 `json:"by_status"`
	ByRepository       map[string]int64 `json:"by_repository"`
	ForwardedEmails    int64            `json:"forwarded_emails"`
	RecentActivity     map[string]int64 `json:"recent_activity"`
	OldestPendingPR    *time.Time       `json:"oldest_pending_pr,omitempty"`
	NewestPR           *time.Time       `json:"newest_pr,omitempty"`
	MostActiveRepo     string           `json:"most_active_repo,omitempty"`
}

// SummaryResponse describes PR activity over a trailing period.
type SummaryResponse struct {
	PeriodDays           int              `json:"period_days"`
	TotalNotifications   int64            `json:"total_notifications"`
	NewPRs               int64            `json:"new_prs"`
	MergedPRs            int64            `json:"merged_prs"`
	ClosedPRs            int64            `json:"closed_prs"`
	RepositoriesInvolved []string         `json:"repositories_involved"`
	DailyActivity        map[string]int64 `json:"daily_activity"`
	PendingReviews       int64            `json:"pending_reviews"`
	OldOpenPRs           int64            `json:"old_open_prs"`
	NotificationRate     float64          `json:"notification_rate"`
}

// SearchRequest is the advanced-search body.
type SearchRequest struct {
	Query        string     `json:"query" binding:"required"`
	SearchFields []string   `json:"search_fields,omitempty"`
	DateFrom     *time.Time `json:"date_from,omitempty"`
	DateTo       *time.Time `json:"date_to,omitempty"`
	ExactMatch   bool       `json:"exact_match"`
}

// SearchResponse carries search hits.
type SearchResponse struct {
	Results         []PRNotificationSummary `json:"results"`
	TotalMatches    int                     `json:"total_matches"`
	SearchQuery     string                  `json:"search_query"`
	ExecutionTimeMs float64                 `json:"execution_time_ms"`
}

// BulkRequest names the records a bulk operation targets.
type BulkRequest struct {
	NotificationIDs []string `json:"notification_ids" binding:"required"`
}

// BulkResponse reports the outcome of a bulk operation.
type BulkResponse struct {
	Success        bool     `json:"success"`
	ProcessedCount int      `json:"processed_count"`
	FailedCount    int      `json:"failed_count"`
	FailedIDs      []string `json:"failed_ids,omitempty"`
}

// ManualReminderRequest triggers a reminder run outside the schedule.
type ManualReminderRequest struct {
	DaysThreshold int  `json:"days_threshold" binding:"min=0,max=30"`
	MaxReminders  int  `json:"max_reminders" binding:"min=0,max=50"`
	SendAsBulk    bool `json:"send_as_bulk"`
}

// ScheduleReminderRequest schedules a one-off reminder for a single user.
type ScheduleReminderRequest struct {
	RunAt         time.Time `json:"run_at" binding:"required"`
	DaysThreshold int       `json:"days_threshold"`
	MaxReminders  int       `json:"max_reminders"`
}

// JobInfo describes one scheduled job for introspection.
type JobInfo struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// SchedulerStatusResponse reports scheduler state and its job list.
type SchedulerStatusResponse struct {
	Running bool      `json:"running"`
	Jobs    []JobInfo `json:"jobs"`
}

// DailySummaryData is the digest computed per user each morning.
type DailySummaryData struct {
	TotalOpen      int64    `json:"total_open"`
	NewToday       int64    `json:"new_today"`
	NeedsAttention int64    `json:"needs_attention"`
	MostActiveRepo string   `json:"most_active_repo,omitempty"`
	ActionItems    []string `json:"action_items,omitempty"`
}

// RepositoryStats describes activity for one repository.
type RepositoryStats struct {
	RepoName       string           `json:"repo_name"`
	TotalPRs       int64            `json:"total_prs"`
	OpenPRs        int64            `json:"open_prs"`
	MergedPRs      int64            `json:"merged_prs"`
	ClosedPRs      int64            `json:"closed_prs"`
	LastActivity   *time.Time       `json:"last_activity,omitempty"`
	RecentActivity map[string]int64 `json:"recent_activity"`
}

// ReminderPreviewItem is one PR a reminder run would cover.
type ReminderPreviewItem struct {
	ID         string    `json:"id"`
	RepoName   string    `json:"repo_name,omitempty"`
	PRTitle    string    `json:"pr_title"`
	PRLink     string    `json:"pr_link,omitempty"`
	PRNumber   string    `json:"pr_number,omitempty"`
	DaysOld    int       `json:"days_old"`
	Urgency    string    `json:"urgency"`
	ReceivedAt time.Time `json:"received_at"`
}

// ReminderPreviewResponse shows what a reminder run would send.
type ReminderPreviewResponse struct {
	TotalPRs         int                   `json:"total_prs"`
	ThresholdDays    int                   `json:"threshold_days"`
	WouldRemindAbout []ReminderPreviewItem `json:"would_remind_about"`
	Summary          map[string]int        `json:"summary"`
}

// HealthResponse is the health-check body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse is the structured error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
