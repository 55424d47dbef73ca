// Package freefilesync runs the FreeFileSync batch job that performs the backup.
package freefilesync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for running the backup job.
type Service interface {
	Run(ctx context.Context, job models.BackupJobConfig, driveLetter string) (*models.BackupResult, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	// Run waits for the process and returns its exit code. err is non-nil
	// only when the process could not be started or waited on.
	Run(ctx context.Context, env []string, name string, args ...string) (int, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Run starts the command with the extra environment, attached to the
// current console, and waits for it to exit.
func (e *DefaultExecutor) Run(ctx context.Context, env []string, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Impl implements the Service interface.
type Impl struct {
	executor CommandExecutor
	binary   string
	logger   zerolog.Logger
}

// New creates a new FreeFileSync service using the given binary.
func New(logger zerolog.Logger, binary string) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		binary:   binary,
		logger:   logger,
	}
}

// NewWithExecutor creates a new FreeFileSync service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, binary string, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		binary:   binary,
		logger:   logger,
	}
}

// Run executes the batch job and classifies its exit status. The mounted
// drive letter is exported as job.DriveEnv for the batch definition to use.
func (s *Impl) Run(ctx context.Context, job models.BackupJobConfig, driveLetter string) (*models.BackupResult, error) {
	s.logger.Info().
		Str("job", job.BatchFile).
		Str("drive", driveLetter).
		Msg("starting backup job")

	start := time.Now()

	var env []string
	if job.DriveEnv != "" {
		env = append(env, fmt.Sprintf("%s=%s", job.DriveEnv, driveLetter))
	}

	code, err := s.executor.Run(ctx, env, s.binary, job.BatchFile)
	result := &models.BackupResult{
		ExitCode: code,
		Outcome:  models.OutcomeFromExitCode(code),
		Duration: time.Since(start),
	}

	if err != nil {
		result.ExitCode = -1
		result.Outcome = models.OutcomeFailed
		result.Error = fmt.Errorf("backup job failed to run: %w", err)
		return result, nil
	}
	if result.Outcome == models.OutcomeFailed {
		result.Error = fmt.Errorf("backup job exited with status %d", code)
	}

	s.logger.Info().
		Int("exit_code", result.ExitCode).
		Str("outcome", result.Outcome.String()).
		Dur("duration", result.Duration).
		Msg("backup job finished")

	return result, nil
}
