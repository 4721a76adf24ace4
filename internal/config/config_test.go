package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Host:   "localhost",
			User:   "test",
			DBName: "test",
		},
		Slack: SlackConfig{
			APIBaseURL: "https://slack.com/api",
		},
		Scheduler: SchedulerConfig{
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
		},
	}
}

func TestConfigValidation(t *testing.T) {
	config := validConfig()
	assert.NoError(t, config.Validate())

	invalidConfig := &Config{
		Server: ServerConfig{
			Port: "",
		},
	}
	assert.Error(t, invalidConfig.Validate())
}

func TestConfigValidationSchedulerBounds(t *testing.T) {
	config := validConfig()
	config.Scheduler.DailyReminderHour = 24
	assert.Error(t, config.Validate())

	config = validConfig()
	config.Scheduler.DailyThresholdDays = 0
	assert.Error(t, config.Validate())

	config = validConfig()
	config.Scheduler.CleanupThresholdDays = -1
	assert.Error(t, config.Validate())

	config = validConfig()
	config.Scheduler.MaxUrgentPerUser = 0
	assert.Error(t, config.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	config := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	dsn := config.GetDSN()
	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	assert.Equal(t, expected, dsn)
}
