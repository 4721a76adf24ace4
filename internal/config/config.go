package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// SlackConfig holds messaging API configuration
type SlackConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// SchedulerConfig holds reminder scheduling configuration. All thresholds,
// caps and fire times are externally configurable; core logic receives them
// as parameters rather than reading globals.
type SchedulerConfig struct {
	DailyReminderHour    int    `mapstructure:"daily_reminder_hour"`
	DailySummaryHour     int    `mapstructure:"daily_summary_hour"`
	UrgentReminderHour   int    `mapstructure:"urgent_reminder_hour"`
	WeeklyCleanupDay     string `mapstructure:"weekly_cleanup_day"`
	WeeklyCleanupHour    int    `mapstructure:"weekly_cleanup_hour"`
	DailyThresholdDays   int    `mapstructure:"daily_threshold_days"`
	UrgentThresholdDays  int    `mapstructure:"urgent_threshold_days"`
	AttentionDays        int    `mapstructure:"attention_days"`
	CleanupThresholdDays int    `mapstructure:"cleanup_threshold_days"`
	MaxRemindersPerUser  int    `mapstructure:"max_reminders_per_user"`
	MaxUrgentPerUser     int    `mapstructure:"max_urgent_per_user"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("slack.api_base_url", "https://slack.com/api")
	viper.SetDefault("slack.timeout", "10s")
	viper.SetDefault("slack.max_retries", 3)

	viper.SetDefault("scheduler.daily_reminder_hour", 9)
	viper.SetDefault("scheduler.daily_summary_hour", 8)
	viper.SetDefault("scheduler.urgent_reminder_hour", 14)
	viper.SetDefault("scheduler.weekly_cleanup_day", "SUN")
	viper.SetDefault("scheduler.weekly_cleanup_hour", 2)
	viper.SetDefault("scheduler.daily_threshold_days", 2)
	viper.SetDefault("scheduler.urgent_threshold_days", 7)
	viper.SetDefault("scheduler.attention_days", 3)
	viper.SetDefault("scheduler.cleanup_threshold_days", 90)
	viper.SetDefault("scheduler.max_reminders_per_user", 10)
	viper.SetDefault("scheduler.max_urgent_per_user", 5)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	// Slack
	viper.BindEnv("slack.api_base_url", "SLACK_API_BASE_URL")
	viper.BindEnv("slack.timeout", "SLACK_TIMEOUT")
	viper.BindEnv("slack.max_retries", "SLACK_MAX_RETRIES")

	// Scheduler
	viper.BindEnv("scheduler.daily_reminder_hour", "SCHEDULER_DAILY_REMINDER_HOUR")
	viper.BindEnv("scheduler.daily_summary_hour", "SCHEDULER_DAILY_SUMMARY_HOUR")
	viper.BindEnv("scheduler.urgent_reminder_hour", "SCHEDULER_URGENT_REMINDER_HOUR")
	viper.BindEnv("scheduler.weekly_cleanup_day", "SCHEDULER_WEEKLY_CLEANUP_DAY")
	viper.BindEnv("scheduler.weekly_cleanup_hour", "SCHEDULER_WEEKLY_CLEANUP_HOUR")
	viper.BindEnv("scheduler.daily_threshold_days", "SCHEDULER_DAILY_THRESHOLD_DAYS")
	viper.BindEnv("scheduler.urgent_threshold_days", "SCHEDULER_URGENT_THRESHOLD_DAYS")
	viper.BindEnv("scheduler.attention_days", "SCHEDULER_ATTENTION_DAYS")
	viper.BindEnv("scheduler.cleanup_threshold_days", "SCHEDULER_CLEANUP_THRESHOLD_DAYS")
	viper.BindEnv("scheduler.max_reminders_per_user", "SCHEDULER_MAX_REMINDERS_PER_USER")
	viper.BindEnv("scheduler.max_urgent_per_user", "SCHEDULER_MAX_URGENT_PER_USER")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Slack.APIBaseURL == "" {
		return fmt.Errorf("slack API base URL is required")
	}

	s := c.Scheduler
	for _, h := range []int{s.DailyReminderHour, s.DailySummaryHour, s.UrgentReminderHour, s.WeeklyCleanupHour} {
		if h < 0 || h > 23 {
			return fmt.Errorf("scheduler hours must be between 0 and 23")
		}
	}
	if s.DailyThresholdDays <= 0 || s.UrgentThresholdDays <= 0 {
		return fmt.Errorf("reminder thresholds must be greater than 0")
	}
	if s.CleanupThresholdDays <= 0 {
		return fmt.Errorf("cleanup threshold must be greater than 0")
	}
	if s.MaxRemindersPerUser <= 0 || s.MaxUrgentPerUser <= 0 {
		return fmt.Errorf("per-user reminder caps must be greater than 0")
	}

	return nil
}
