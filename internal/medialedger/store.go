// Package medialedger keeps track of physical backup media and how often
// each one has been used, in a small SQLite database.
package medialedger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fgeck/localbackup/internal/models"
)

// MaxUseCount is the ceiling for a medium's use counter.
const MaxUseCount = 9999

const schema = `
CREATE TABLE IF NOT EXISTS media (
	id         TEXT PRIMARY KEY,
	media_type TEXT NOT NULL,
	first_use  TEXT,
	last_use   TEXT,
	use_count  INTEGER NOT NULL DEFAULT 0,
	active     INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS media_type_last_use ON media (media_type, last_use);
`

// timeLayout keeps fractional seconds fixed width so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrDuplicate is returned when adding a medium whose id already exists.
var ErrDuplicate = errors.New("medium already exists")

// Store is the SQLite backed media ledger.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the ledger at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add registers a new active medium with no recorded use.
func (s *Store) Add(ctx context.Context, id string, mediaType models.MediaType) error {
	if id == "" {
		return errors.New("medium id is required")
	}
	if !mediaType.IsValid() {
		return fmt.Errorf("unknown media type %q", mediaType)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup medium: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO media (id, media_type, use_count, active) VALUES (?, ?, 0, 1)",
		id, string(mediaType))
	if err != nil {
		return fmt.Errorf("insert medium: %w", err)
	}
	return nil
}

// SetActive marks a medium as in or out of rotation.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE media SET active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("update medium: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("medium %s not found", id)
	}
	return nil
}

// List returns media ordered by type and id. An empty mediaType lists everything.
func (s *Store) List(ctx context.Context, mediaType models.MediaType) ([]models.Medium, error) {
	query := "SELECT id, media_type, first_use, last_use, use_count, active FROM media"
	var args []any
	if mediaType != "" {
		query += " WHERE media_type = ?"
		args = append(args, string(mediaType))
	}
	query += " ORDER BY media_type, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var media []models.Medium
	for rows.Next() {
		m, err := scanMedium(rows)
		if err != nil {
			return nil, err
		}
		media = append(media, *m)
	}
	return media, rows.Err()
}

// Increment records a use of the least recently used active medium of the
// given type: never-used media first, then oldest last use, then id.
// It returns nil when no active medium of that type exists.
func (s *Store) Increment(ctx context.Context, mediaType models.MediaType) (*models.Medium, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, media_type, first_use, last_use, use_count, active
		FROM media
		WHERE media_type = ? AND active = 1
		ORDER BY last_use IS NOT NULL, last_use, id
		LIMIT 1`, string(mediaType))

	m, err := scanMedium(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if m.FirstUse == nil {
		m.FirstUse = &now
	}
	m.LastUse = &now
	if m.UseCount < MaxUseCount {
		m.UseCount++
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE media SET first_use = ?, last_use = ?, use_count = ? WHERE id = ?",
		formatTime(m.FirstUse), formatTime(m.LastUse), m.UseCount, m.ID)
	if err != nil {
		return nil, fmt.Errorf("update medium: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMedium(row scanner) (*models.Medium, error) {
	var (
		m        models.Medium
		typ      string
		first    sql.NullString
		last     sql.NullString
		activeIn int
	)
	if err := row.Scan(&m.ID, &typ, &first, &last, &m.UseCount, &activeIn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan medium: %w", err)
	}
	m.Type = models.MediaType(typ)
	m.Active = activeIn != 0

	var err error
	if m.FirstUse, err = parseTime(first); err != nil {
		return nil, err
	}
	if m.LastUse, err = parseTime(last); err != nil {
		return nil, err
	}
	return &m, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", ns.String, err)
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
