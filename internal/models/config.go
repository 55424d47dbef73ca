// Package models contains the data structures used throughout localbackup.
package models

import "time"

// RunConfig holds the complete configuration for a backup run.
type RunConfig struct {
	Media     MediaSettings
	SMTP      SMTPConfig
	Recipient string
	Tools     ToolPaths
	Job       BackupJobConfig
	Usage     UsageSettings
	Logs      LogSettings
	Telegram  *TelegramConfig // nil if not configured
}

// MediaSettings describes the removable medium and how to mount it.
type MediaSettings struct {
	Type         MediaType
	VolumeName   string
	Password     string
	Device       string        // VeraCrypt volume path, e.g. \Device\Harddisk1\Partition1
	PollAttempts int           // label lookups after the mount command
	PollInterval time.Duration // pause between lookups, 0 polls back to back
}

// VolumeConfig returns the subset of media settings needed to mount the volume.
func (m MediaSettings) VolumeConfig() VolumeConfig {
	return VolumeConfig{
		VolumeName:   m.VolumeName,
		Password:     m.Password,
		Device:       m.Device,
		PollAttempts: m.PollAttempts,
		PollInterval: m.PollInterval,
	}
}

// SMTPConfig holds mail server settings for the completion email.
type SMTPConfig struct {
	URL      string
	Port     int
	Account  string
	Password string
	From     string // defaults to Account
}

// ToolPaths holds the locations of the external programs the job drives.
type ToolPaths struct {
	VeraCrypt    string
	FreeFileSync string
}

// UsageBackend selects how media usage is recorded.
type UsageBackend string

// Usage backends.
const (
	UsageBackendCommand UsageBackend = "command"
	UsageBackendLedger  UsageBackend = "ledger"
)

// UsageSettings configures the usage recorder.
type UsageSettings struct {
	Backend    UsageBackend
	Command    string
	Args       []string // media type is appended as the last argument
	LedgerPath string
}

// LogSettings configures log retention.
type LogSettings struct {
	Dir          string
	KeepPerGroup int
	PrefixLen    int
}
