package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-lookup-service/internal/domain"
	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "lookups.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEvent(stem string, issued time.Time) domain.LookupEvent {
	return domain.LookupEvent{
		Entity:    "Forecast",
		Stem:      stem,
		Filename:  stem + ".lookup",
		Timestamp: time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC),
		IssuedAt:  issued,
		Vars:      map[string]string{"temp": "12"},
		Data:      `{"temp" => "12"}`,
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestStore_SaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	issued := time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC)

	id, err := s.Save(ctx, sampleEvent("EGLL", issued).Stored())
	require.NoError(t, err)
	assert.Positive(t, id)

	rec, err := s.Get(ctx, "Forecast", "EGLL.lookup")
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "EGLL", rec.FilenamePart)
	assert.Equal(t, `{"temp" => "12"}`, rec.Data)
	assert.Equal(t, issued, rec.IssuedAt)
	assert.Equal(t, time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC), rec.Timestamp)
}

func TestStore_SaveUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, sampleEvent("EGLL", time.Unix(100, 0)).Stored())
	require.NoError(t, err)

	ev := sampleEvent("EGLL", time.Unix(200, 0))
	ev.Data = `{"temp" => "13"}`
	second, err := s.Save(ctx, ev.Stored())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	rec, err := s.Get(ctx, "Forecast", "EGLL.lookup")
	require.NoError(t, err)
	assert.Equal(t, `{"temp" => "13"}`, rec.Data)
}

func TestStore_SaveRequiresIdentity(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Save(context.Background(), domain.StoredRecord{Entity: "Forecast"})
	assert.Error(t, err)
}

func TestStore_CheckReadiness(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "lookups.db"))
	require.NoError(t, err)
	require.NoError(t, s.CheckReadiness(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.CheckReadiness(context.Background()))
}

func TestStore_GetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "Forecast", "XXXX.lookup")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindLatest(context.Background(), "Forecast")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FindLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LoadBatch(ctx, []domain.LookupEvent{
		sampleEvent("EGLL", time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC)),
		sampleEvent("KJFK", time.Date(2024, 4, 26, 9, 0, 0, 0, time.UTC)),
		sampleEvent("LSZH", time.Date(2024, 4, 25, 23, 0, 0, 0, time.UTC)),
	}))

	rec, err := s.FindLatest(ctx, "Forecast")
	require.NoError(t, err)
	assert.Equal(t, "KJFK", rec.FilenamePart)
}

func TestStore_LoadBatchIsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bad := sampleEvent("KJFK", time.Now())
	bad.Filename = ""
	err := s.LoadBatch(ctx, []domain.LookupEvent{sampleEvent("EGLL", time.Now()), bad})
	require.Error(t, err)

	_, err = s.Get(ctx, "Forecast", "EGLL.lookup")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RestoredRecordKeepsIssuedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	issued := time.Date(2024, 4, 26, 6, 0, 0, 0, time.UTC)
	_, err := s.Save(ctx, sampleEvent("EGLL", issued).Stored())
	require.NoError(t, err)

	stored, err := s.Get(ctx, "Forecast", "EGLL.lookup")
	require.NoError(t, err)

	l := domain.NewLoader(domain.Entity{Name: "Forecast", Dir: t.TempDir(), Format: lookup.FormatLookup}, nil, slog.Default())
	rec := l.Restore(stored)

	got, err := rec.IssuedAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, issued, got)
	v, err := rec.Var(ctx, "temp")
	require.NoError(t, err)
	assert.Equal(t, "12", v)
}
