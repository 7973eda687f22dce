// Package sqlite persists resolved lookup records in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/weather-lookup-service/internal/domain"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("lookup record not found")

// Store persists lookup records. It implements pipeline.BatchLoader.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the store at path and creates the schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CheckReadiness verifies the database is reachable.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("record store: %w", err)
	}
	return nil
}

const upsertRecord = `
INSERT INTO lookup_records (
    entity, lookup_filename, lookup_filename_part, lookup_timestamp, lookup_mtime,
    data, issued_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (entity, lookup_filename) DO UPDATE SET
    lookup_filename_part = excluded.lookup_filename_part,
    lookup_timestamp     = excluded.lookup_timestamp,
    lookup_mtime         = excluded.lookup_mtime,
    data                 = excluded.data,
    issued_at            = excluded.issued_at,
    updated_at           = excluded.updated_at
RETURNING id`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Save inserts or replaces the record for (entity, filename) and returns its id.
func (s *Store) Save(ctx context.Context, rec domain.StoredRecord) (int64, error) {
	return s.save(ctx, s.db, rec)
}

func (s *Store) save(ctx context.Context, q queryer, rec domain.StoredRecord) (int64, error) {
	if rec.Entity == "" || rec.Filename == "" {
		return 0, errors.New("entity and filename are required")
	}
	var id int64
	err := q.QueryRowContext(ctx, upsertRecord,
		rec.Entity,
		rec.Filename,
		rec.FilenamePart,
		rec.Timestamp.Unix(),
		rec.Timestamp.Unix(),
		rec.Data,
		toMillis(rec.IssuedAt),
		toMillis(s.now()),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save %s/%s: %w", rec.Entity, rec.Filename, err)
	}
	return id, nil
}

// LoadBatch saves every event in one transaction.
func (s *Store) LoadBatch(ctx context.Context, events []domain.LookupEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range events {
		if _, err := s.save(ctx, tx, ev.Stored()); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const selectRecord = `
SELECT id, entity, lookup_filename, lookup_filename_part, lookup_timestamp, data, issued_at
FROM lookup_records`

// Get returns the record for (entity, filename).
func (s *Store) Get(ctx context.Context, entity, filename string) (domain.StoredRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE entity = ? AND lookup_filename = ?`, entity, filename)
	return scanRecord(row)
}

// FindLatest returns the most recently issued record of entity.
func (s *Store) FindLatest(ctx context.Context, entity string) (domain.StoredRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE entity = ? ORDER BY issued_at DESC, id DESC LIMIT 1`, entity)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (domain.StoredRecord, error) {
	var (
		rec      domain.StoredRecord
		ts       int64
		issuedAt int64
	)
	err := row.Scan(&rec.ID, &rec.Entity, &rec.Filename, &rec.FilenamePart, &ts, &rec.Data, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.StoredRecord{}, fmt.Errorf("scan lookup record: %w", err)
	}
	rec.Timestamp = time.Unix(ts, 0).UTC()
	rec.IssuedAt = fromMillis(issuedAt)
	return rec, nil
}
