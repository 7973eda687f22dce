package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-lookup-service/internal/cache"
	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
)

// Loader builds records for one entity. It is safe for concurrent use; the
// records it returns are not.
type Loader struct {
	entity    Entity
	cache     cache.Cache
	ttl       time.Duration
	sanitizer *lookup.Sanitizer
	location  *time.Location
	clock     clockwork.Clock
	logger    *slog.Logger
	observer  Observer
}

// Option configures a Loader.
type Option func(*Loader)

// WithTTL sets how long raw text and parsed vars stay cached.
func WithTTL(ttl time.Duration) Option {
	return func(l *Loader) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithSanitizer sets the charset lookup files are decoded with.
func WithSanitizer(s *lookup.Sanitizer) Option {
	return func(l *Loader) { l.sanitizer = s }
}

// WithLocation sets the zone _date0/_time0 pairs are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(l *Loader) {
		if loc != nil {
			l.location = loc
		}
	}
}

// WithObserver routes data-quality signals to o.
func WithObserver(o Observer) Option {
	return func(l *Loader) {
		if o != nil {
			l.observer = o
		}
	}
}

// NewLoader creates a loader for entity. A nil cache disables caching.
func NewLoader(entity Entity, c cache.Cache, logger *slog.Logger, opts ...Option) *Loader {
	if entity.UnwantedChars == nil {
		entity.UnwantedChars = DefaultUnwantedChars
	}
	l := &Loader{
		entity:   entity,
		cache:    c,
		ttl:      cache.DefaultTTL,
		location: time.UTC,
		clock:    clockwork.NewRealClock(),
		logger:   logger.With("entity", entity.Name),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Entity returns the loader's entity options.
func (l *Loader) Entity() Entity { return l.entity }

// FromLookup builds the record for stem. Data is loaded immediately unless
// the entity supplies its own timestamps. A missing primary file is not an
// error: the record comes back with no data and a nil Timestamp.
func (l *Loader) FromLookup(ctx context.Context, stem string) (*Record, error) {
	if err := validStem(stem); err != nil {
		return nil, err
	}
	r := &Record{
		loader:       l,
		FilenamePart: stem,
		Filename:     l.entity.Filename(stem),
	}

	if l.entity.TimestampFunc != nil {
		ts, err := l.entity.TimestampFunc(stem)
		if err != nil {
			return nil, fmt.Errorf("timestamp for %s: %w", stem, err)
		}
		ts = ts.Truncate(time.Second)
		r.Timestamp = &ts
		return r, nil
	}

	mtime, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	r.Timestamp = mtime
	return r, nil
}

// Path returns where the primary lookup for stem lives.
func (l *Loader) Path(stem string) string {
	return filepath.Join(l.entity.Dir, l.entity.Filename(stem))
}

// RawDataKey is the cache key for normalized text of the file at path.
func RawDataKey(path string, mtime time.Time) string {
	return fmt.Sprintf("%s_data_%d", path, mtime.Unix())
}

// readNormalized returns the normalized text of path, cached under its mtime.
func (l *Loader) readNormalized(ctx context.Context, path string, format lookup.Format) (string, time.Time, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrLookupFileMissing, path)
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("stat lookup: %w", err)
	}
	mtime := time.Unix(info.ModTime().Unix(), 0).UTC()

	text, hit, err := cache.GetOrCompute(ctx, l.cache, RawDataKey(path, mtime), l.ttl, func() (string, error) {
		n, err := lookup.ReadFile(path, format, l.sanitizer)
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrLookupFileMissing, path)
		}
		if err != nil {
			return "", fmt.Errorf("read lookup %s: %w", path, err)
		}
		if n.Replaced > 0 {
			l.logger.Warn("characters illegal for charset replaced, watch out for misspelled words",
				"path", path, "charset", l.sanitizer.Charset(), "replaced", n.Replaced)
			l.observer.EncodingReplaced(path, n.Replaced)
		}
		return n.Text, nil
	})
	if err != nil {
		return "", time.Time{}, err
	}
	l.observer.CacheLookup("raw", hit)
	return text, mtime, nil
}

// StemOf maps a directory entry name back to its stem. It reports false for
// files of another format or postfix, and for stems with unwanted characters.
func (l *Loader) StemOf(name string) (string, bool) {
	stem, ok := strings.CutSuffix(name, l.entity.Format.Extension())
	if !ok {
		return "", false
	}
	if l.entity.Postfix != "" {
		if stem, ok = strings.CutSuffix(stem, l.entity.Postfix); !ok {
			return "", false
		}
	}
	if stem == "" || l.entity.UnwantedChars.MatchString(stem) {
		return "", false
	}
	return stem, true
}

// Stems lists the stems present in the entity directory, in filename order.
func (l *Loader) Stems() ([]string, error) {
	entries, err := os.ReadDir(l.entity.Dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", l.entity.Dir, err)
	}
	var stems []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if stem, ok := l.StemOf(e.Name()); ok {
			stems = append(stems, stem)
		}
	}
	return stems, nil
}

// EachLookup loads every lookup in the entity directory and calls fn with
// each record that has data. Stems whose load fails are logged and skipped.
// Iteration stops at the first error from fn or when ctx is done.
func (l *Loader) EachLookup(ctx context.Context, fn func(r *Record, stem string) error) error {
	stems, err := l.Stems()
	if err != nil {
		return err
	}
	for _, stem := range stems {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := l.FromLookup(ctx, stem)
		if err != nil {
			l.logger.Error("failed to load lookup", "stem", stem, "error", err)
			continue
		}
		found, err := r.Found(ctx)
		if err != nil {
			l.logger.Error("failed to load lookup", "stem", stem, "error", err)
			continue
		}
		if !found {
			continue
		}
		if err := fn(r, stem); err != nil {
			return err
		}
	}
	return nil
}

// Restore rebuilds a record from its persisted form. Its data is not reloaded
// from disk and its issued-at is returned as stored.
func (l *Loader) Restore(s StoredRecord) *Record {
	r := &Record{
		loader:       l,
		ID:           s.ID,
		FilenamePart: s.FilenamePart,
		Filename:     s.Filename,
		data:         s.Data,
		hasData:      true,
		loaded:       true,
	}
	if r.Filename == "" && r.FilenamePart != "" {
		r.Filename = l.entity.Filename(r.FilenamePart)
	}
	if !s.Timestamp.IsZero() {
		ts := s.Timestamp
		r.Timestamp = &ts
	}
	if !s.IssuedAt.IsZero() {
		at := s.IssuedAt
		r.issuedAt = &at
	}
	return r
}

// Now returns the loader's current time in UTC.
func (l *Loader) Now() time.Time {
	return l.clock.Now().UTC()
}
