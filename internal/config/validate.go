package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/fgeck/localbackup/internal/models"
)

// Validate performs validation on the loaded configuration.
// All problems are reported together, wrapped in ErrInvalid.
func Validate(cfg *models.RunConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", ErrInvalid)
	}

	errs := append(ValidateSMTP(cfg), ValidateMedia(cfg)...)
	errs = append(errs, validateRun(cfg)...)
	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// ValidateSMTP checks that the mail settings have the shape of a reachable server.
func ValidateSMTP(cfg *models.RunConfig) []error {
	var errs []error

	host := strings.TrimSpace(cfg.SMTP.URL)
	switch {
	case host == "":
		errs = append(errs, errors.New("smtp.url is required"))
	case strings.Contains(host, "://") || strings.ContainsAny(host, " /:"):
		errs = append(errs, fmt.Errorf("smtp.url must be a bare host name, got %q", cfg.SMTP.URL))
	}

	if cfg.SMTP.Port < 1 || cfg.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("smtp.port must be between 1 and 65535, got %d", cfg.SMTP.Port))
	}
	if cfg.SMTP.Account == "" {
		errs = append(errs, errors.New("smtp.account is required"))
	}
	if cfg.SMTP.Password == "" {
		errs = append(errs, errors.New("smtp.password is required"))
	}

	if cfg.Recipient == "" {
		errs = append(errs, errors.New("notify.recipient is required"))
	} else if _, err := mail.ParseAddress(cfg.Recipient); err != nil {
		errs = append(errs, fmt.Errorf("notify.recipient: %w", err))
	}

	return errs
}

// ValidateMedia checks the media type and the volume credentials.
func ValidateMedia(cfg *models.RunConfig) []error {
	var errs []error

	if !cfg.Media.Type.IsValid() {
		errs = append(errs, fmt.Errorf("media.type must be one of: %s, got %q",
			models.MediaTypeNames(", "), cfg.Media.Type))
	}
	if cfg.Media.VolumeName == "" {
		errs = append(errs, errors.New("media.volume_name is required"))
	}
	if cfg.Media.Password == "" {
		errs = append(errs, errors.New("media.password is required"))
	}
	if cfg.Media.PollAttempts < 1 {
		errs = append(errs, fmt.Errorf("media.poll_attempts must be at least 1, got %d", cfg.Media.PollAttempts))
	}
	if cfg.Media.PollInterval < 0 {
		errs = append(errs, errors.New("media.poll_interval must not be negative"))
	}

	return errs
}

func validateRun(cfg *models.RunConfig) []error {
	var errs []error

	if cfg.Job.BatchFile == "" {
		errs = append(errs, errors.New("job.batch_file is required"))
	}

	switch cfg.Usage.Backend {
	case models.UsageBackendCommand:
		if cfg.Usage.Command == "" {
			errs = append(errs, errors.New("usage.command is required for the command backend"))
		}
	case models.UsageBackendLedger:
		if cfg.Usage.LedgerPath == "" {
			errs = append(errs, errors.New("usage.ledger_path is required for the ledger backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("usage.backend must be one of: command, ledger, got %q", cfg.Usage.Backend))
	}

	errs = append(errs, ValidateLogs(cfg.Logs)...)

	return errs
}

// ValidateLogs checks the retention settings.
func ValidateLogs(logs models.LogSettings) []error {
	var errs []error

	if logs.Dir == "" {
		errs = append(errs, errors.New("logs.dir is required"))
	}
	if logs.KeepPerGroup < 1 {
		errs = append(errs, fmt.Errorf("logs.keep_per_group must be at least 1, got %d", logs.KeepPerGroup))
	}
	if logs.PrefixLen < 1 {
		errs = append(errs, fmt.Errorf("logs.prefix_len must be at least 1, got %d", logs.PrefixLen))
	}

	return errs
}
