package usage

import (
	"context"
	"fmt"

	"github.com/fgeck/localbackup/internal/medialedger"
	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog"
)

// Ledger is the part of the media ledger the recorder needs.
type Ledger interface {
	Increment(ctx context.Context, mediaType models.MediaType) (*models.Medium, error)
	Close() error
}

// LedgerOpener opens the ledger for the duration of one Record call.
type LedgerOpener func(ctx context.Context) (Ledger, error)

// OpenLedger returns an opener for the SQLite ledger at path.
func OpenLedger(path string) LedgerOpener {
	return func(ctx context.Context) (Ledger, error) {
		store, err := medialedger.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// LedgerImpl records usage in the built-in media ledger.
type LedgerImpl struct {
	open   LedgerOpener
	logger zerolog.Logger
}

// NewLedger creates a usage recorder backed by the ledger open returns.
func NewLedger(logger zerolog.Logger, open LedgerOpener) *LedgerImpl {
	return &LedgerImpl{open: open, logger: logger}
}

// Record bumps the least recently used medium of mediaType. When no active
// medium of that type is registered the response is empty.
func (s *LedgerImpl) Record(ctx context.Context, mediaType models.MediaType) (*models.UsageResult, error) {
	s.logger.Info().Str("media_type", string(mediaType)).Msg("recording media usage in ledger")

	result := &models.UsageResult{}

	ledger, err := s.open(ctx)
	if err != nil {
		result.Error = fmt.Errorf("open ledger: %w", err)
		return result, nil
	}
	defer func() { _ = ledger.Close() }()

	medium, err := ledger.Increment(ctx, mediaType)
	if err != nil {
		result.Error = fmt.Errorf("ledger update failed: %w", err)
		return result, nil
	}
	if medium == nil {
		s.logger.Warn().Str("media_type", string(mediaType)).Msg("no active media of this type")
		return result, nil
	}

	result.Response = CompletionMessage(medium.ID)

	s.logger.Info().
		Str("medium", medium.ID).
		Int("use_count", medium.UseCount).
		Msg("usage recorded")

	return result, nil
}

// CompletionMessage is the response reported for an updated medium.
func CompletionMessage(mediumID string) string {
	return fmt.Sprintf("Media %s: Last Used date and Usage Count updated.", mediumID)
}
