// Package runner orchestrates the removable-media backup run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/fgeck/localbackup/internal/services/freefilesync"
	"github.com/fgeck/localbackup/internal/services/mail"
	"github.com/fgeck/localbackup/internal/services/retention"
	"github.com/fgeck/localbackup/internal/services/telegram"
	"github.com/fgeck/localbackup/internal/services/usage"
	"github.com/fgeck/localbackup/internal/services/veracrypt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConfigSource supplies the run parameters.
type ConfigSource interface {
	Validate() error
	MediaType() models.MediaType
	Config() models.RunConfig
}

// Service defines the interface for the backup runner.
type Service interface {
	Run(ctx context.Context, src ConfigSource) *models.RunResult
}

// Services bundles the collaborators of a run.
type Services struct {
	Volume    veracrypt.Service
	Backup    freefilesync.Service
	Usage     usage.Service
	Mail      mail.Service
	Retention retention.Service
	Telegram  telegram.Service
}

// DefaultServices builds the production services for cfg. Nothing is
// touched until a service method is called.
func DefaultServices(logger zerolog.Logger, cfg models.RunConfig) Services {
	var usageSvc usage.Service
	if cfg.Usage.Backend == models.UsageBackendLedger {
		usageSvc = usage.NewLedger(logger, usage.OpenLedger(cfg.Usage.LedgerPath))
	} else {
		usageSvc = usage.NewCommand(logger, cfg.Usage)
	}

	return Services{
		Volume:    veracrypt.New(logger, cfg.Tools.VeraCrypt),
		Backup:    freefilesync.New(logger, cfg.Tools.FreeFileSync),
		Usage:     usageSvc,
		Mail:      mail.New(logger, cfg.SMTP),
		Retention: retention.New(logger, cfg.Logs),
		Telegram:  telegram.New(logger),
	}
}

// Impl implements the runner Service interface.
type Impl struct {
	build  func(cfg models.RunConfig) Services
	out    io.Writer
	logger zerolog.Logger
}

// New creates a new runner that prints progress lines to out.
func New(logger zerolog.Logger, out io.Writer) *Impl {
	return &Impl{
		build: func(cfg models.RunConfig) Services {
			return DefaultServices(logger, cfg)
		},
		out:    out,
		logger: logger,
	}
}

// NewWithServices creates a new runner with custom services (for testing).
func NewWithServices(logger zerolog.Logger, out io.Writer, svcs Services) *Impl {
	return &Impl{
		build:  func(models.RunConfig) Services { return svcs },
		out:    out,
		logger: logger,
	}
}

// Subject is the completion email subject for a media type.
func Subject(mediaType models.MediaType) string {
	return fmt.Sprintf("Local %s backup complete", mediaType)
}

// Run executes the backup workflow and reports the exit code to use:
// 2 when validation, mounting or the backup job fails, 1 when there is no
// usage to record or the email could not be sent, 0 otherwise.
//
//nolint:gocognit,gocyclo // backup workflow has multiple steps by design
func (s *Impl) Run(ctx context.Context, src ConfigSource) *models.RunResult {
	start := time.Now()
	res := &models.RunResult{
		RunID:     uuid.NewString(),
		State:     models.StateValidating,
		StartTime: start,
	}
	logger := s.logger.With().Str("run_id", res.RunID).Logger()

	// Step 1: Validate configuration
	if err := src.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		s.println("Error: " + err.Error())
		return s.fail(res, models.StateValidating, models.ExitBackupFail, err)
	}

	cfg := src.Config()
	res.MediaType = src.MediaType()
	svcs := s.build(cfg)

	logger.Info().
		Str("media_type", string(cfg.Media.Type)).
		Str("volume", cfg.Media.VolumeName).
		Str("job", cfg.Job.BatchFile).
		Msg("starting backup run")

	defer func() {
		res.Duration = time.Since(start)
		if cfg.Telegram != nil {
			s.sendTelegram(ctx, logger, svcs.Telegram, cfg, res)
		}
	}()

	// Steps 2-4: Mount, back up, unmount
	if !s.backupOnVolume(ctx, logger, svcs, cfg, res) {
		return res
	}

	// Step 5: Record media usage
	res.State = models.StateUpdating
	usageRes, err := svcs.Usage.Record(ctx, cfg.Media.Type)
	if err != nil {
		usageRes = &models.UsageResult{Error: err}
	}
	if usageRes.Error != nil {
		logger.Warn().Err(usageRes.Error).Msg("usage recorder reported an error")
	}
	res.UsageResponse = usageRes.Response

	if res.UsageResponse == "" {
		s.println(fmt.Sprintf("No %s media to update.", cfg.Media.Type))
		logger.Warn().Str("media_type", string(cfg.Media.Type)).Msg("no media to update")
		return s.fail(res, models.StateUpdating, models.ExitNoUpdate, usageRes.Error)
	}

	// Step 6: Email the usage response
	res.State = models.StateNotifying
	mailRes, err := svcs.Mail.Send(ctx, cfg.Recipient, Subject(cfg.Media.Type), res.UsageResponse)
	if err != nil {
		mailRes = &models.MailResult{Error: err}
	}
	res.MessageSent = mailRes.MessageSent && mailRes.Error == nil
	if res.MessageSent {
		s.println("Message sent.")
	} else {
		s.println("Message failed.")
		logger.Error().Err(mailRes.Error).Msg("failed to send completion email")
		res.ExitCode = models.ExitNoUpdate
		res.FailedStep = models.StateNotifying
		res.Error = mailRes.Error
	}

	// Step 7: Prune old logs
	res.State = models.StatePruning
	pruneRes, err := svcs.Retention.Prune(ctx, cfg.Logs.Dir)
	switch {
	case err != nil:
		logger.Error().Err(err).Str("dir", cfg.Logs.Dir).Msg("log retention failed")
	default:
		res.LogsPruned = len(pruneRes.Deleted)
		if len(pruneRes.Errors) > 0 {
			logger.Warn().Err(errors.Join(pruneRes.Errors...)).Msg("some logs could not be deleted")
		}
	}

	if res.ExitCode != models.ExitSuccess {
		res.State = models.StateFailed
		return res
	}

	res.State = models.StateDone
	logger.Info().
		Dur("duration", time.Since(start)).
		Msg("backup run completed successfully")

	return res
}

// backupOnVolume mounts the volume, runs the backup job and always unmounts
// once a drive letter was obtained. It reports whether the backup succeeded.
func (s *Impl) backupOnVolume(
	ctx context.Context,
	logger zerolog.Logger,
	svcs Services,
	cfg models.RunConfig,
	res *models.RunResult,
) bool {
	res.State = models.StateMounting
	mountRes, err := svcs.Volume.Mount(ctx, cfg.Media.VolumeConfig())
	if err != nil {
		mountRes = &models.MountResult{Error: err}
	}
	if mountRes.Mounted() {
		res.DriveLetter = mountRes.DriveLetter
		defer s.unmount(ctx, logger, svcs.Volume, res)
	}
	if !mountRes.Mounted() || mountRes.Error != nil {
		s.println("Error: Unable to mount backup volume.")
		err := mountRes.Error
		if err == nil {
			err = fmt.Errorf("volume %q not found after %d attempts", cfg.Media.VolumeName, mountRes.Attempts)
		}
		logger.Error().Err(err).Str("drive", res.DriveLetter).Msg("mount failed")
		s.fail(res, models.StateMounting, models.ExitBackupFail, err)
		return false
	}

	res.State = models.StateBackupRunning
	backupRes, err := svcs.Backup.Run(ctx, cfg.Job, res.DriveLetter)
	if err != nil {
		backupRes = &models.BackupResult{ExitCode: -1, Outcome: models.OutcomeFailed, Error: err}
	}
	outcome := backupRes.Outcome
	res.Outcome = &outcome

	if !outcome.Succeeded() {
		s.println("Backup completed with errors.  See log for details.")
		logger.Error().
			Err(backupRes.Error).
			Int("exit_code", backupRes.ExitCode).
			Msg("backup job failed")
		s.fail(res, models.StateBackupRunning, models.ExitBackupFail, backupRes.Error)
		return false
	}

	if outcome == models.OutcomeSuccessWithWarnings {
		s.println("Backup completed with warnings.  See log for details.")
	} else {
		s.println("Backup completed successfully.")
	}

	return true
}

// unmount releases the volume. It runs even if ctx was cancelled so the
// encrypted volume is not left attached.
func (s *Impl) unmount(ctx context.Context, logger zerolog.Logger, vol veracrypt.Service, res *models.RunResult) {
	prev := res.State
	res.State = models.StateUnmounting

	result, err := vol.Unmount(context.WithoutCancel(ctx), res.DriveLetter)
	switch {
	case err != nil:
		logger.Warn().Err(err).Str("drive", res.DriveLetter).Msg("unmount failed")
	case result.Error != nil:
		logger.Warn().Err(result.Error).Str("drive", res.DriveLetter).Msg("unmount reported an error")
	}

	if prev == models.StateFailed {
		res.State = prev
	}
}

func (s *Impl) fail(res *models.RunResult, step models.RunState, code int, err error) *models.RunResult {
	res.State = models.StateFailed
	res.FailedStep = step
	res.ExitCode = code
	res.Error = err
	return res
}

func (s *Impl) println(line string) {
	if s.out != nil {
		_, _ = fmt.Fprintln(s.out, line)
	}
}

func (s *Impl) sendTelegram(
	ctx context.Context,
	logger zerolog.Logger,
	svc telegram.Service,
	cfg models.RunConfig,
	res *models.RunResult,
) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	msg := models.TelegramMessage{
		Success:       res.ExitCode == models.ExitSuccess,
		Host:          host,
		MediaType:     res.MediaType,
		Volume:        cfg.Media.VolumeName,
		StartTime:     res.StartTime,
		Duration:      res.Duration,
		DriveLetter:   res.DriveLetter,
		UsageResponse: res.UsageResponse,
		MessageSent:   res.MessageSent,
		LogsPruned:    res.LogsPruned,
		ExitCode:      res.ExitCode,
	}
	if res.Outcome != nil {
		msg.Outcome = res.Outcome.String()
	}
	if !msg.Success {
		msg.FailedStep = string(res.FailedStep)
		if res.Error != nil {
			msg.ErrorMessage = res.Error.Error()
		}
	}

	result, err := svc.SendNotification(context.WithoutCancel(ctx), *cfg.Telegram, msg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}

	logger.Info().Msg("Telegram notification sent")
}
