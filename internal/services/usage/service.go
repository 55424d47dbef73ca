// Package usage records that a medium was used for a backup cycle.
package usage

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for usage recording. An empty
// UsageResult.Response means there was nothing to record.
type Service interface {
	Record(ctx context.Context, mediaType models.MediaType) (*models.UsageResult, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	// Output runs the command and returns its standard output only.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Output runs a command and returns its standard output.
func (e *DefaultExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CommandImpl records usage by running an external accounting program.
type CommandImpl struct {
	executor CommandExecutor
	command  string
	args     []string
	logger   zerolog.Logger
}

// NewCommand creates a usage recorder that runs settings.Command.
func NewCommand(logger zerolog.Logger, settings models.UsageSettings) *CommandImpl {
	return NewCommandWithExecutor(logger, settings, &DefaultExecutor{})
}

// NewCommandWithExecutor creates a command recorder with a custom executor (for testing).
func NewCommandWithExecutor(logger zerolog.Logger, settings models.UsageSettings, executor CommandExecutor) *CommandImpl {
	return &CommandImpl{
		executor: executor,
		command:  settings.Command,
		args:     settings.Args,
		logger:   logger,
	}
}

// Record runs the accounting program with the media type as its last
// argument and returns the first line of its output. A failed run is
// reported in Error and yields whatever output was produced, usually nothing.
func (s *CommandImpl) Record(ctx context.Context, mediaType models.MediaType) (*models.UsageResult, error) {
	args := make([]string, 0, len(s.args)+1)
	args = append(args, s.args...)
	args = append(args, string(mediaType))

	s.logger.Info().
		Str("command", s.command).
		Str("media_type", string(mediaType)).
		Msg("recording media usage")

	output, err := s.executor.Output(ctx, s.command, args...)
	result := &models.UsageResult{Response: firstLine(string(output))}

	if err != nil {
		result.Error = fmt.Errorf("usage command failed: %w", err)
		s.logger.Warn().Err(err).Msg("usage command returned error")
	}

	s.logger.Info().Str("response", result.Response).Msg("usage recorded")
	return result, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r")
}
