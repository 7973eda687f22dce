package domain

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
)

func TestNewRegistry_DuplicateEntity(t *testing.T) {
	a, _ := newTestLoader(forecastEntity("a"))
	b, _ := newTestLoader(forecastEntity("b"))

	_, err := NewRegistry(a, b)
	assert.ErrorContains(t, err, "Forecast")
}

func TestRegistry_Loaders(t *testing.T) {
	fc, _ := newTestLoader(forecastEntity("a"))
	obs, _ := newTestLoader(Entity{Name: "Observation", Dir: "b", Format: lookup.FormatPHP})

	reg, err := NewRegistry(obs, fc)
	require.NoError(t, err)

	names := []string{}
	for _, l := range reg.Loaders() {
		names = append(names, l.Entity().Name)
	}
	assert.Equal(t, []string{"Observation", "Forecast"}, names)

	_, err = reg.Loader("Station")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestRegistry_Lookup(t *testing.T) {
	dir := t.TempDir()
	writeLookup(t, dir, "EGLL.lookup", "_gmtissued|2020-01-02 03:04\ntemp|12\n", testMTime)
	now := time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)
	l, _ := newTestLoader(forecastEntity(dir), WithClock(clockwork.NewFakeClockAt(now)))
	reg, err := NewRegistry(l)
	require.NoError(t, err)

	ev, err := reg.Lookup(context.Background(), LookupRef{Entity: "Forecast", Stem: "EGLL"})
	require.NoError(t, err)

	assert.Equal(t, "Forecast", ev.Entity)
	assert.Equal(t, "EGLL", ev.Stem)
	assert.Equal(t, "EGLL.lookup", ev.Filename)
	assert.True(t, testMTime.Equal(ev.Timestamp))
	assert.Equal(t, time.Date(2020, 1, 2, 3, 4, 0, 0, time.UTC), ev.IssuedAt)
	assert.Equal(t, "12", ev.Vars["temp"])
	assert.Equal(t, now, ev.LoadedAt)
	assert.NotEmpty(t, ev.Data)
	assert.Equal(t, LookupRef{Entity: "Forecast", Stem: "EGLL"}, ev.Ref())

	stored := ev.Stored()
	assert.Equal(t, ev.Data, stored.Data)
	assert.Equal(t, "EGLL", stored.FilenamePart)
}

func TestRegistry_LookupErrors(t *testing.T) {
	l, _ := newTestLoader(forecastEntity(t.TempDir()))
	reg, err := NewRegistry(l)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = reg.Lookup(ctx, LookupRef{Entity: "Forecast", Stem: "EGLL"})
	assert.ErrorIs(t, err, ErrLookupFileMissing)

	_, err = reg.Lookup(ctx, LookupRef{Entity: "Station", Stem: "EGLL"})
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = reg.Lookup(ctx, LookupRef{Entity: "Forecast", Stem: "../x"})
	assert.ErrorIs(t, err, ErrInvalidStem)
}

func TestLookupEvent_JSONOmitsData(t *testing.T) {
	ev := LookupEvent{Entity: "Forecast", Stem: "EGLL", Data: "{}", Vars: map[string]string{"temp": "12"}}
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.NotContains(t, string(b), `"Data"`)
	assert.Contains(t, string(b), `"vars":{"temp":"12"}`)
	assert.Equal(t, "Forecast/EGLL", ev.Ref().String())
}
