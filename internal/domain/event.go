package domain

import (
	"context"
	"fmt"
	"time"
)

// LookupRef names one lookup to (re)load.
type LookupRef struct {
	Entity string `json:"entity"`
	Stem   string `json:"stem"`
}

func (r LookupRef) String() string { return r.Entity + "/" + r.Stem }

// LookupEvent is a loaded lookup as published to sinks and served over HTTP.
type LookupEvent struct {
	Entity    string            `json:"entity"`
	Stem      string            `json:"stem"`
	Filename  string            `json:"filename"`
	Timestamp time.Time         `json:"timestamp"`
	IssuedAt  time.Time         `json:"issued_at"`
	Vars      map[string]string `json:"vars"`
	LoadedAt  time.Time         `json:"loaded_at"`

	// Data is the merged normalized text, persisted but never published.
	Data string `json:"-"`
}

// Ref returns the reference the event was loaded from.
func (e LookupEvent) Ref() LookupRef {
	return LookupRef{Entity: e.Entity, Stem: e.Stem}
}

// StoredRecord is the persisted form of a record.
type StoredRecord struct {
	ID           int64
	Entity       string
	Filename     string
	FilenamePart string
	Timestamp    time.Time
	Data         string
	IssuedAt     time.Time
}

// NewLookupEvent resolves vars and issued-at of r. Records without data
// yield ErrLookupFileMissing.
func NewLookupEvent(ctx context.Context, r *Record) (LookupEvent, error) {
	found, err := r.Found(ctx)
	if err != nil {
		return LookupEvent{}, err
	}
	if !found {
		return LookupEvent{}, fmt.Errorf("%w: %s", ErrLookupFileMissing, r.Filename)
	}
	vars, err := r.Vars(ctx)
	if err != nil {
		return LookupEvent{}, err
	}
	issued, err := r.IssuedAt(ctx)
	if err != nil {
		return LookupEvent{}, err
	}
	data, err := r.Data(ctx)
	if err != nil {
		return LookupEvent{}, err
	}
	return LookupEvent{
		Entity:    r.Entity(),
		Stem:      r.FilenamePart,
		Filename:  r.Filename,
		Timestamp: r.MTime(),
		IssuedAt:  issued,
		Vars:      vars,
		LoadedAt:  r.loader.Now(),
		Data:      data,
	}, nil
}

// Stored converts the event to its persisted form.
func (e LookupEvent) Stored() StoredRecord {
	return StoredRecord{
		Entity:       e.Entity,
		Filename:     e.Filename,
		FilenamePart: e.Stem,
		Timestamp:    e.Timestamp,
		Data:         e.Data,
		IssuedAt:     e.IssuedAt,
	}
}
