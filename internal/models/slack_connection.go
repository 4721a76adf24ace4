package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SlackConnection holds the per-user token and channel used for relaying
// notifications. Absence of a connection means the user cannot be dispatched
// to and their records stay pending.
type SlackConnection struct {
	ID          string    `json:"id" gorm:"type:char(36);primaryKey"`
	UserID      string    `json:"user_id" gorm:"type:char(36);not null;uniqueIndex"`
	SlackUserID string    `json:"slack_user_id" gorm:"type:varchar(64);not null"`
	SlackTeamID string    `json:"slack_team_id" gorm:"type:varchar(64);not null"`
	AccessToken string    `json:"-" gorm:"type:varchar(512);not null"`
	TeamName    string    `json:"team_name,omitempty" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for SlackConnection
func (SlackConnection) TableName() string {
	return "slack_connections"
}

// BeforeCreate assigns a UUID primary key
func (c *SlackConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
