package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Variables issued-at is derived from.
const (
	KeyGMTIssued = "_gmtissued"
	KeyDate      = "_date0"
	KeyTime      = "_time0"
)

// Issued-at fallback sources reported to the Observer.
const (
	FallbackGMTIssued = "gmtissued"
	FallbackDateTime  = "date_time"
)

// timestampLayouts seen across legacy lookup producers, tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04 -0700",
	"2006-01-02 15:04Z",
	"2006-01-02 15:04",
	"2006-01-02 1504",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02 Jan 2006 15:04:05",
	"02 Jan 2006 15:04",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
	time.UnixDate,
	"200601021504",
	"2006-01-02",
}

var errEmptyTimestamp = errors.New("empty timestamp")

// parseTimestamp parses s with the first matching layout; values without a
// zone are read in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// wallClockUTC keeps the wall-clock fields of t and relabels them as UTC,
// dropping sub-second precision.
func wallClockUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// IssuedAt returns when the lookup was issued. A stored or pinned value is
// returned unchanged; otherwise it is derived from the vars once and kept.
// Unparsable sources fall back to the current time in UTC.
func (r *Record) IssuedAt(ctx context.Context) (time.Time, error) {
	if r.issuedAt != nil {
		return *r.issuedAt, nil
	}
	if r.ID != 0 {
		return time.Time{}, nil
	}
	vars, err := r.Vars(ctx)
	if err != nil {
		return time.Time{}, err
	}
	t := r.loader.deriveIssuedAt(r, vars)
	r.issuedAt = &t
	return t, nil
}

func (l *Loader) deriveIssuedAt(r *Record, vars map[string]string) time.Time {
	if raw, ok := vars[KeyGMTIssued]; ok {
		t, err := parseTimestamp(raw, time.UTC)
		if err != nil {
			l.logger.Error("wrong datetime in lookup", "record", r.identity(), "key", KeyGMTIssued, "value", raw, "error", err)
			l.observer.IssuedAtFallback(l.entity.Name, FallbackGMTIssued)
			return l.Now()
		}
		return wallClockUTC(t)
	}

	date, okDate := vars[KeyDate]
	clock, okTime := vars[KeyTime]
	if okDate && okTime {
		if t, err := parseTimestamp(date+" "+clock, l.location); err == nil {
			return t.UTC()
		}
	}
	l.logger.Debug("issued-at falls back to current time", "record", r.identity())
	l.observer.IssuedAtFallback(l.entity.Name, FallbackDateTime)
	return l.Now()
}
