package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PR status values extracted from notification emails.
const (
	StatusOpened  = "opened"
	StatusMerged  = "merged"
	StatusClosed  = "closed"
	StatusUpdated = "updated"
)

// PRNotification is one stored pull-request notification. Records are
// deduplicated on MessageID: a retried webhook delivery for the same id
// returns the existing record. SlackSent flips false->true only.
type PRNotification struct {
	ID             string    `json:"id" gorm:"type:char(36);primaryKey"`
	UserID         string    `json:"user_id" gorm:"type:char(36);not null;index"`
	SenderEmail    string    `json:"sender_email" gorm:"type:varchar(255);not null;index"`
	RecipientEmail string    `json:"recipient_email" gorm:"type:varchar(255);not null;index"`
	RepoName       string    `json:"repo_name,omitempty" gorm:"type:varchar(255);index"`
	PRTitle        string    `json:"pr_title" gorm:"type:varchar(512);not null"`
	PRLink         string    `json:"pr_link,omitempty" gorm:"type:varchar(512)"`
	PRNumber       string    `json:"pr_number,omitempty" gorm:"type:varchar(32)"`
	PRStatus       string    `json:"pr_status,omitempty" gorm:"type:varchar(32);index"`
	Subject        string    `json:"subject" gorm:"type:varchar(512);not null"`
	ReceivedAt     time.Time `json:"received_at" gorm:"not null;index"`
	MessageID      string    `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	RawText        string    `json:"raw_text,omitempty" gorm:"type:text"`
	RawHTML        string    `json:"raw_html,omitempty" gorm:"type:text"`
	SlackSent      bool      `json:"slack_sent" gorm:"default:false;not null"`
	IsForwarded    bool      `json:"is_forwarded" gorm:"default:false;not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relationship
	User *User `json:"-" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for PRNotification
func (PRNotification) TableName() string {
	return "pr_notifications"
}

// BeforeCreate assigns a UUID primary key
func (n *PRNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// DaysOld returns whole days elapsed since the notification was received.
func (n *PRNotification) DaysOld(now time.Time) int {
	return int(now.Sub(n.ReceivedAt).Hours() / 24)
}

// PRNotificationSummary is the lightweight list representation without the
// raw email snapshot.
type PRNotificationSummary struct {
	ID          string    `json:"id"`
	RepoName    string    `json:"repo_name,omitempty"`
	PRTitle     string    `json:"pr_title"`
	PRLink      string    `json:"pr_link,omitempty"`
	PRNumber    string    `json:"pr_number,omitempty"`
	PRStatus    string    `json:"pr_status,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
	SlackSent   bool      `json:"slack_sent"`
	IsForwarded bool      `json:"is_forwarded"`
}

// Summary converts a notification to its list representation.
func (n *PRNotification) Summary() PRNotificationSummary {
	return PRNotificationSummary{
		ID:          n.ID,
		RepoName:    n.RepoName,
		PRTitle:     n.PRTitle,
		PRLink:      n.PRLink,
		PRNumber:    n.PRNumber,
		PRStatus:    n.PRStatus,
		ReceivedAt:  n.ReceivedAt,
		SlackSent:   n.SlackSent,
		IsForwarded: n.IsForwarded,
	}
}
