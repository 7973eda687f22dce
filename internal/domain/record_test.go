package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
)

func loadEGLL(t *testing.T, content string, opts ...Option) (*Record, *Loader, *recordingObserver) {
	t.Helper()
	dir := t.TempDir()
	writeLookup(t, dir, "EGLL.lookup", content, testMTime)
	l, obs := newTestLoader(forecastEntity(dir), opts...)
	rec, err := l.FromLookup(context.Background(), "EGLL")
	require.NoError(t, err)
	return rec, l, obs
}

func TestRecord_SetDataInvalidatesVars(t *testing.T) {
	ctx := context.Background()
	rec, _, _ := loadEGLL(t, "temp|12\n")

	v, err := rec.Var(ctx, "temp")
	require.NoError(t, err)
	require.Equal(t, "12", v)

	rec.SetData(`{"temp" => "3"}`)

	vars, err := rec.Vars(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"temp": "3"}, vars)
	data, err := rec.Data(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"temp" => "3"}`, data)
}

func TestRecord_SetDataDoesNotPoisonSharedCache(t *testing.T) {
	ctx := context.Background()
	rec, l, _ := loadEGLL(t, "temp|12\n")

	rec.SetData(`{"temp" => "3"}`)
	_, err := rec.Vars(ctx)
	require.NoError(t, err)

	fresh, err := l.FromLookup(ctx, "EGLL")
	require.NoError(t, err)
	v, err := fresh.Var(ctx, "temp")
	require.NoError(t, err)
	assert.Equal(t, "12", v)
}

func TestRecord_SetVars(t *testing.T) {
	ctx := context.Background()
	rec, _, _ := loadEGLL(t, "temp|12\n")
	_, err := rec.Vars(ctx)
	require.NoError(t, err)

	rec.SetVars(map[string]string{"wind": `say "hi" # now`})

	vars, err := rec.Vars(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"wind": `say "hi" # now`}, vars)
}

func TestRecord_VarsSharedAcrossRecords(t *testing.T) {
	ctx := context.Background()
	rec, l, obs := loadEGLL(t, "temp|12\n")

	_, err := rec.Vars(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.misses["vars"])

	other, err := l.FromLookup(ctx, "EGLL")
	require.NoError(t, err)
	v, err := other.Var(ctx, "temp")
	require.NoError(t, err)
	assert.Equal(t, "12", v)
	assert.Equal(t, 1, obs.hits["vars"])
}

func TestRecord_VarsMemoized(t *testing.T) {
	ctx := context.Background()
	rec, _, obs := loadEGLL(t, "temp|12\n")

	for range 3 {
		_, err := rec.Vars(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, obs.misses["vars"]+obs.hits["vars"])
}

func TestRecord_ParseErrorIsWrapped(t *testing.T) {
	ctx := context.Background()
	rec, _, _ := loadEGLL(t, "temp|12\n")
	rec.SetData(`{"temp" => `)

	_, err := rec.Vars(ctx)
	require.Error(t, err)

	var recErr *RecordParseError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, "Forecast", recErr.Entity)
	assert.Equal(t, "EGLL.lookup", recErr.Record)
	assert.Contains(t, err.Error(), "EGLL.lookup")

	var parseErr *lookup.ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestRecord_ParseErrorUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeLookup(t, dir, "EGLL.hash.rb", `{"temp" => `, testMTime)
	e := Entity{Name: "Forecast", Dir: dir, Format: lookup.FormatRubyHash, ExceptionsUnchanged: true}
	l, _ := newTestLoader(e)

	rec, err := l.FromLookup(context.Background(), "EGLL")
	require.NoError(t, err)
	_, err = rec.Vars(context.Background())

	var parseErr *lookup.ParseError
	require.True(t, errors.As(err, &parseErr))
	var recErr *RecordParseError
	assert.False(t, errors.As(err, &recErr))
}

func TestRecord_RepairsTruncatedData(t *testing.T) {
	ctx := context.Background()
	rec, _, obs := loadEGLL(t, "temp|12\n")

	var b strings.Builder
	b.WriteString("{")
	for i := 0; b.Len() < lookup.MaxStoredLength+100; i++ {
		fmt.Fprintf(&b, `"_k%05d" => "some value %d", `, i, i)
	}
	rec.SetData(b.String()[:lookup.MaxStoredLength])

	vars, err := rec.Vars(ctx)
	require.NoError(t, err)
	assert.Equal(t, "some value 0", vars["_k00000"])
	assert.Equal(t, 1, obs.repaired)
}

func TestLoader_Restore(t *testing.T) {
	ctx := context.Background()
	l, obs := newTestLoader(forecastEntity(t.TempDir()))
	issued := time.Date(2020, time.January, 2, 3, 4, 0, 0, time.UTC)

	rec := l.Restore(StoredRecord{
		ID:           7,
		FilenamePart: "EGLL",
		Timestamp:    testMTime,
		Data:         `{"_gmtissued" => "2021-01-01 00:00", "temp" => "12"}`,
		IssuedAt:     issued,
	})

	assert.Equal(t, "EGLL.lookup", rec.Filename)
	v, err := rec.Var(ctx, "temp")
	require.NoError(t, err)
	assert.Equal(t, "12", v)

	got, err := rec.IssuedAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, issued, got, "stored issued-at must not be re-derived")
	assert.Empty(t, obs.fallbacks)
}
