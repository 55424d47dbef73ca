// Package veracrypt mounts and unmounts the encrypted backup volume.
package veracrypt

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for volume operations.
type Service interface {
	Mount(ctx context.Context, cfg models.VolumeConfig) (*models.MountResult, error)
	Unmount(ctx context.Context, driveLetter string) (*models.UnmountResult, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

// VolumeLister enumerates the logical disks currently visible to the system.
type VolumeLister interface {
	Volumes(ctx context.Context) ([]models.Volume, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its combined output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Impl implements the Service interface.
type Impl struct {
	executor CommandExecutor
	lister   VolumeLister
	binary   string
	logger   zerolog.Logger
}

// New creates a new VeraCrypt service using the given VeraCrypt binary.
func New(logger zerolog.Logger, binary string) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		lister:   NewSystemLister(),
		binary:   binary,
		logger:   logger,
	}
}

// NewWithDeps creates a new VeraCrypt service with custom dependencies (for testing).
func NewWithDeps(logger zerolog.Logger, binary string, executor CommandExecutor, lister VolumeLister) *Impl {
	return &Impl{
		executor: executor,
		lister:   lister,
		binary:   binary,
		logger:   logger,
	}
}

// Mount issues a single mount command and then looks for a volume labelled
// cfg.VolumeName up to cfg.PollAttempts times. Not finding it is reported as
// an empty DriveLetter, not as an error. On cancellation Error is set and
// DriveLetter is filled in if the volume attached anyway.
func (s *Impl) Mount(ctx context.Context, cfg models.VolumeConfig) (*models.MountResult, error) {
	result := &models.MountResult{}

	s.logger.Info().
		Str("device", cfg.Device).
		Str("volume", cfg.VolumeName).
		Msg("mounting encrypted volume")

	output, err := s.executor.Execute(ctx, s.binary,
		"/v", cfg.Device,
		"/p", cfg.Password,
		"/q", "/s")
	result.CommandRun = true
	if err != nil {
		// The mount may still have happened; the label lookup decides.
		s.logger.Warn().Err(err).Str("output", string(output)).Msg("mount command returned error")
	}

	attempts := cfg.PollAttempts
	if attempts < 1 {
		attempts = 1
	}

	for result.Attempts < attempts {
		if ctx.Err() != nil {
			return s.cancelled(ctx, cfg, result), nil
		}
		if result.Attempts > 0 && cfg.PollInterval > 0 {
			select {
			case <-ctx.Done():
				return s.cancelled(ctx, cfg, result), nil
			case <-time.After(cfg.PollInterval):
			}
		}
		result.Attempts++

		volumes, err := s.lister.Volumes(ctx)
		if err != nil {
			s.logger.Debug().Err(err).Int("attempt", result.Attempts).Msg("volume enumeration failed")
			continue
		}

		if letter := findVolume(volumes, cfg.VolumeName); letter != "" {
			result.DriveLetter = letter
			s.logger.Info().
				Str("drive", letter).
				Int("attempts", result.Attempts).
				Msg("volume mounted")
			return result, nil
		}

		s.logger.Debug().Int("attempt", result.Attempts).Msg("volume label not found yet")
	}

	s.logger.Warn().
		Str("volume", cfg.VolumeName).
		Int("attempts", result.Attempts).
		Msg("volume label not found")

	return result, nil
}

// cancelled records the cancellation and looks for the label one last time.
// The mount command has already run, so a volume that did attach is reported
// with its drive letter and the caller can still unmount it.
func (s *Impl) cancelled(ctx context.Context, cfg models.VolumeConfig, result *models.MountResult) *models.MountResult {
	result.Error = ctx.Err()

	volumes, err := s.lister.Volumes(context.WithoutCancel(ctx))
	if err != nil {
		return result
	}
	if letter := findVolume(volumes, cfg.VolumeName); letter != "" {
		result.DriveLetter = letter
		s.logger.Warn().
			Str("drive", letter).
			Msg("mount cancelled after the volume attached")
	}
	return result
}

// findVolume returns the path of the last volume whose label matches.
func findVolume(volumes []models.Volume, label string) string {
	var path string
	for _, v := range volumes {
		if v.Label == label {
			path = v.Path
		}
	}
	return path
}

// Unmount dismounts the volume at driveLetter. The command outcome is only
// logged; callers treat unmounting as best effort.
func (s *Impl) Unmount(ctx context.Context, driveLetter string) (*models.UnmountResult, error) {
	result := &models.UnmountResult{}

	s.logger.Info().Str("drive", driveLetter).Msg("unmounting volume")

	output, err := s.executor.Execute(ctx, s.binary, "/u", driveLetter, "/q", "/s")
	result.CommandRun = true
	result.Output = string(output)

	if err != nil {
		result.Error = fmt.Errorf("unmount failed: %w", err)
		s.logger.Warn().Err(err).Str("output", result.Output).Msg("unmount command returned error")
		return result, nil
	}

	s.logger.Info().Str("drive", driveLetter).Msg("volume unmounted")
	return result, nil
}
