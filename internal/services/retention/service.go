// Package retention prunes the backup log directory.
//
// Log files are grouped by the first few characters of their name. Within a
// group only the most recently modified files are kept.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for log retention.
type Service interface {
	Plan(ctx context.Context, dir string) ([]models.PruneDecision, error)
	Prune(ctx context.Context, dir string) (*models.PruneResult, error)
}

// Impl implements the retention Service interface.
type Impl struct {
	keep      int
	prefixLen int
	logger    zerolog.Logger
}

// New creates a retention service keeping settings.KeepPerGroup files per
// settings.PrefixLen-character group.
func New(logger zerolog.Logger, settings models.LogSettings) *Impl {
	return &Impl{
		keep:      settings.KeepPerGroup,
		prefixLen: settings.PrefixLen,
		logger:    logger,
	}
}

// GroupKey returns the first n characters of name, or name if it is shorter.
func GroupKey(name string, n int) string {
	runes := []rune(name)
	if len(runes) <= n {
		return name
	}
	return string(runes[:n])
}

// Records lists the regular files directly under dir.
func (s *Impl) Records(dir string) ([]models.LogFileRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	records := make([]models.LogFileRecord, 0, len(entries))
	for _, entry := range entries {
		// Stat follows symlinks so a link to a file counts as a file.
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		records = append(records, models.LogFileRecord{
			FileName:     entry.Name(),
			GroupKey:     GroupKey(entry.Name(), s.prefixLen),
			LastModified: info.ModTime(),
		})
	}

	return records, nil
}

// Decide orders records by group key and then newest first, and marks every
// record beyond the keep limit of its group for deletion.
func (s *Impl) Decide(records []models.LogFileRecord) []models.PruneDecision {
	sorted := make([]models.LogFileRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].GroupKey != sorted[j].GroupKey {
			return sorted[i].GroupKey < sorted[j].GroupKey
		}
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})

	decisions := make([]models.PruneDecision, 0, len(sorted))
	var group string
	pos := 0
	for i, rec := range sorted {
		if i == 0 || rec.GroupKey != group {
			group = rec.GroupKey
			pos = 1
		} else {
			pos++
		}
		decisions = append(decisions, models.PruneDecision{
			Record:   rec,
			Position: pos,
			Keep:     pos <= s.keep,
		})
	}

	return decisions
}

// Plan reports what Prune would do without touching the directory.
func (s *Impl) Plan(ctx context.Context, dir string) ([]models.PruneDecision, error) {
	records, err := s.Records(dir)
	if err != nil {
		return nil, err
	}
	return s.Decide(records), nil
}

// Prune deletes the files Plan marks for deletion. A failed deletion is
// recorded and the pass carries on; running Prune again converges.
func (s *Impl) Prune(ctx context.Context, dir string) (*models.PruneResult, error) {
	s.logger.Info().
		Str("dir", dir).
		Int("keep_per_group", s.keep).
		Msg("pruning old logs")

	decisions, err := s.Plan(ctx, dir)
	if err != nil {
		return nil, err
	}

	result := &models.PruneResult{}
	for _, d := range decisions {
		if d.Keep {
			result.Kept = append(result.Kept, d.Record.FileName)
			continue
		}
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err())
			break
		}

		path := filepath.Join(dir, d.Record.FileName)
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("file", d.Record.FileName).Msg("failed to delete log")
			result.Errors = append(result.Errors, err)
			continue
		}
		s.logger.Debug().
			Str("file", d.Record.FileName).
			Str("group", d.Record.GroupKey).
			Msg("deleted old log")
		result.Deleted = append(result.Deleted, d.Record.FileName)
	}

	s.logger.Info().
		Int("kept", len(result.Kept)).
		Int("deleted", len(result.Deleted)).
		Msg("log retention applied")

	return result, nil
}
