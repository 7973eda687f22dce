package domain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-lookup-service/internal/cache"
	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
)

// Record is one lookup-backed entity instance. Data is loaded at most once;
// vars are parsed on demand and dropped whenever the data is replaced.
//
// A Record must not be used from several goroutines at once.
type Record struct {
	loader *Loader

	// ID is non-zero for records restored from the store.
	ID           int64
	FilenamePart string
	Filename     string

	// Timestamp comes from the entity's TimestampFunc or the primary file's
	// mtime, at second precision. Nil when no backing file was read.
	Timestamp *time.Time

	data    string
	hasData bool
	loaded  bool
	// dirty is set by explicit writes; the shared vars cache is keyed by
	// timestamp and would serve the old mapping.
	dirty bool

	vars     map[string]string
	issuedAt *time.Time
}

// Entity returns the name of the entity the record belongs to.
func (r *Record) Entity() string { return r.loader.entity.Name }

// MTime is the time of Timestamp, or the zero time.
func (r *Record) MTime() time.Time {
	if r.Timestamp == nil {
		return time.Time{}
	}
	return *r.Timestamp
}

// Found reports whether the record has data, loading it if necessary.
func (r *Record) Found(ctx context.Context) (bool, error) {
	if _, err := r.Data(ctx); err != nil {
		return false, err
	}
	return r.hasData, nil
}

// Data returns the normalized text, loading the primary and dependent
// lookups on first use. A missing primary file yields "".
func (r *Record) Data(ctx context.Context) (string, error) {
	if !r.loaded {
		if _, err := r.load(ctx); err != nil {
			return "", err
		}
	}
	return r.data, nil
}

// SetData replaces the normalized text and drops any parsed vars.
func (r *Record) SetData(text string) {
	r.data = text
	r.hasData = true
	r.loaded = true
	r.dirty = true
	r.vars = nil
}

// SetVars replaces the data with the serialized form of vars.
func (r *Record) SetVars(vars map[string]string) {
	r.SetData(lookup.Serialize(vars))
}

// SetIssuedAt pins the issued-at time; later calls to IssuedAt return t.
func (r *Record) SetIssuedAt(t time.Time) {
	r.issuedAt = &t
}

// Vars returns the parsed mapping. It is nil when the record has no data.
// A shared cache hit does not read the lookup files.
func (r *Record) Vars(ctx context.Context) (map[string]string, error) {
	if r.vars != nil {
		return r.vars, nil
	}

	var (
		vars map[string]string
		err  error
	)
	if key, ok := r.varsKey(); ok && !r.dirty {
		var hit bool
		vars, hit, err = cache.GetOrCompute(ctx, r.loader.cache, key, r.loader.ttl, r.loadAndParse(ctx))
		if errors.Is(err, errNoData) {
			return nil, nil
		}
		if err == nil {
			r.loader.observer.CacheLookup("vars", hit)
		}
	} else {
		vars, err = r.loadAndParse(ctx)()
		if errors.Is(err, errNoData) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if vars == nil {
		vars = map[string]string{}
	}
	r.vars = vars
	return vars, nil
}

// errNoData keeps records without data out of the vars cache.
var errNoData = errors.New("record has no data")

func (r *Record) loadAndParse(ctx context.Context) func() (map[string]string, error) {
	return func() (map[string]string, error) {
		if _, err := r.Data(ctx); err != nil {
			return nil, err
		}
		if !r.hasData {
			return nil, errNoData
		}
		return r.parse()
	}
}

// Var returns a single variable, "" when absent.
func (r *Record) Var(ctx context.Context, key string) (string, error) {
	vars, err := r.Vars(ctx)
	if err != nil {
		return "", err
	}
	return vars[key], nil
}

// identity names the record in cache keys and errors.
func (r *Record) identity() string {
	if r.Filename != "" {
		return r.Filename
	}
	if r.ID != 0 {
		return strconv.FormatInt(r.ID, 10)
	}
	return ""
}

// varsKey is "<entity>/<filename-or-id>/<timestamp>"; without both an
// identity and a timestamp the shared cache cannot be used.
func (r *Record) varsKey() (string, bool) {
	id := r.identity()
	if id == "" || r.Timestamp == nil {
		return "", false
	}
	return fmt.Sprintf("%s/%s/%d", r.loader.entity.Name, id, r.Timestamp.Unix()), true
}

// parse parses the current data without touching any cache.
func (r *Record) parse() (map[string]string, error) {
	l := r.loader
	vars, repaired, err := lookup.ParseStored(r.data)
	if err != nil {
		if l.entity.ExceptionsUnchanged {
			return nil, err
		}
		return nil, &RecordParseError{Entity: l.entity.Name, Record: r.identity(), Err: err}
	}
	if repaired {
		l.logger.Warn("truncated lookup data repaired", "record", r.identity(), "length", len(r.data))
		l.observer.TruncationRepaired(l.entity.Name)
	}
	return vars, nil
}

// load reads the primary lookup and merges dependents into it. It returns
// the primary mtime, or nil when the primary file is missing.
func (r *Record) load(ctx context.Context) (*time.Time, error) {
	l := r.loader

	path := l.Path(r.FilenamePart)
	text, mtime, err := l.readNormalized(ctx, path, l.entity.Format)
	if errors.Is(err, ErrLookupFileMissing) {
		l.logger.Error("lookup file missing", "path", path)
		r.loaded = true
		return nil, nil
	}
	if err != nil {
		// Not marked loaded: the next access retries the read.
		return nil, err
	}
	r.loaded = true
	r.data = text
	r.hasData = true

	for _, dep := range l.entity.Dependents {
		if err := r.mergeDependent(ctx, dep); err != nil {
			l.logger.Warn("dependent lookup skipped", "record", r.Filename, "error", err)
			l.observer.DependentFailed(l.entity.Name)
		}
	}
	return &mtime, nil
}

func (r *Record) mergeDependent(ctx context.Context, dep Dependent) error {
	l := r.loader
	depErr := func(path string, err error) error {
		return &DependentLookupError{Entity: l.entity.Name, Dir: dep.Dir, Path: path, Err: err}
	}

	stem := r.FilenamePart
	if dep.Key != "" {
		vars, err := r.parse()
		if err != nil {
			return depErr("", err)
		}
		stem = vars[dep.Key]
		if stem == "" {
			return depErr("", fmt.Errorf("key %q not present in primary lookup", dep.Key))
		}
	}
	if err := validStem(stem); err != nil {
		return depErr("", err)
	}

	path := filepath.Join(dep.Dir, dep.Filename(stem))
	text, _, err := l.readNormalized(ctx, path, dep.Format)
	if err != nil {
		return depErr(path, err)
	}
	// A dependent that does not parse on its own would break the whole record.
	if _, err := lookup.Parse(text); err != nil {
		return depErr(path, err)
	}
	r.data = strings.TrimSpace(r.data) + ".merge(" + text + ")"
	return nil
}
