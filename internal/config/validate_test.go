package config

import (
	"testing"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/stretchr/testify/assert"
)

func validConfig() *models.RunConfig {
	return &models.RunConfig{
		Media: models.MediaSettings{
			Type:         models.MediaTape,
			VolumeName:   "BACKUP",
			Password:     "secret",
			Device:       DefaultDevice,
			PollAttempts: DefaultPollAttempts,
			PollInterval: DefaultPollInterval,
		},
		SMTP: models.SMTPConfig{
			URL:      "smtp.example.com",
			Port:     587,
			Account:  "backup@example.com",
			Password: "mailpass",
		},
		Recipient: "admin@example.com",
		Job:       models.BackupJobConfig{BatchFile: "job.ffs_batch", DriveEnv: DefaultDriveEnv},
		Usage:     models.UsageSettings{Backend: models.UsageBackendCommand, Command: "usage-tool"},
		Logs:      models.LogSettings{Dir: "logs", KeepPerGroup: 2, PrefixLen: 4},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *models.RunConfig)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(*models.RunConfig) {},
		},
		{
			name:    "missing smtp url",
			mutate:  func(cfg *models.RunConfig) { cfg.SMTP.URL = "" },
			wantErr: true,
			errMsg:  "smtp.url is required",
		},
		{
			name:    "smtp url with scheme",
			mutate:  func(cfg *models.RunConfig) { cfg.SMTP.URL = "smtp://smtp.example.com" },
			wantErr: true,
			errMsg:  "smtp.url must be a bare host name",
		},
		{
			name:    "smtp url with port",
			mutate:  func(cfg *models.RunConfig) { cfg.SMTP.URL = "smtp.example.com:25" },
			wantErr: true,
			errMsg:  "smtp.url must be a bare host name",
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *models.RunConfig) { cfg.SMTP.Port = 70000 },
			wantErr: true,
			errMsg:  "smtp.port must be between 1 and 65535",
		},
		{
			name:    "missing smtp account",
			mutate:  func(cfg *models.RunConfig) { cfg.SMTP.Account = "" },
			wantErr: true,
			errMsg:  "smtp.account is required",
		},
		{
			name:    "missing smtp password",
			mutate:  func(cfg *models.RunConfig) { cfg.SMTP.Password = "" },
			wantErr: true,
			errMsg:  "smtp.password is required",
		},
		{
			name:    "missing recipient",
			mutate:  func(cfg *models.RunConfig) { cfg.Recipient = "" },
			wantErr: true,
			errMsg:  "notify.recipient is required",
		},
		{
			name:    "malformed recipient",
			mutate:  func(cfg *models.RunConfig) { cfg.Recipient = "not an address" },
			wantErr: true,
			errMsg:  "notify.recipient",
		},
		{
			name:    "unknown media type",
			mutate:  func(cfg *models.RunConfig) { cfg.Media.Type = "usb" },
			wantErr: true,
			errMsg:  "media.type must be one of",
		},
		{
			name:    "missing volume name",
			mutate:  func(cfg *models.RunConfig) { cfg.Media.VolumeName = "" },
			wantErr: true,
			errMsg:  "media.volume_name is required",
		},
		{
			name:    "missing volume password",
			mutate:  func(cfg *models.RunConfig) { cfg.Media.Password = "" },
			wantErr: true,
			errMsg:  "media.password is required",
		},
		{
			name:    "zero poll attempts",
			mutate:  func(cfg *models.RunConfig) { cfg.Media.PollAttempts = 0 },
			wantErr: true,
			errMsg:  "media.poll_attempts must be at least 1",
		},
		{
			name:    "missing batch file",
			mutate:  func(cfg *models.RunConfig) { cfg.Job.BatchFile = "" },
			wantErr: true,
			errMsg:  "job.batch_file is required",
		},
		{
			name:    "missing usage command",
			mutate:  func(cfg *models.RunConfig) { cfg.Usage.Command = "" },
			wantErr: true,
			errMsg:  "usage.command is required",
		},
		{
			name: "ledger backend without command",
			mutate: func(cfg *models.RunConfig) {
				cfg.Usage = models.UsageSettings{Backend: models.UsageBackendLedger, LedgerPath: "media.db"}
			},
		},
		{
			name:    "unknown usage backend",
			mutate:  func(cfg *models.RunConfig) { cfg.Usage.Backend = "spreadsheet" },
			wantErr: true,
			errMsg:  "usage.backend must be one of",
		},
		{
			name:    "missing log dir",
			mutate:  func(cfg *models.RunConfig) { cfg.Logs.Dir = "" },
			wantErr: true,
			errMsg:  "logs.dir is required",
		},
		{
			name:    "zero keep per group",
			mutate:  func(cfg *models.RunConfig) { cfg.Logs.KeepPerGroup = 0 },
			wantErr: true,
			errMsg:  "logs.keep_per_group must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	err := Validate(nil)

	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "configuration is nil")
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.SMTP.URL = ""
	cfg.Media.VolumeName = ""

	err := Validate(cfg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "smtp.url is required")
	assert.Contains(t, err.Error(), "media.volume_name is required")
}
