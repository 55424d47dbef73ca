package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a backup notification.
type TelegramMessage struct {
	Success   bool
	Host      string
	MediaType MediaType
	Volume    string
	StartTime time.Time
	Duration  time.Duration

	// Run details.
	DriveLetter   string
	Outcome       string
	UsageResponse string
	MessageSent   bool
	LogsPruned    int
	ExitCode      int

	// Error info (if failed).
	ErrorMessage string
	FailedStep   string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
