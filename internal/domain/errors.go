package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLookupFileMissing is returned when a lookup file does not exist.
	// Loaders contain it: the record simply has no data.
	ErrLookupFileMissing = errors.New("lookup file missing")

	// ErrInvalidStem is returned for stems that are empty or contain path separators.
	ErrInvalidStem = errors.New("invalid lookup stem")

	// ErrUnknownEntity is returned by Registry for unregistered entity names.
	ErrUnknownEntity = errors.New("unknown lookup entity")
)

// DependentLookupError wraps any failure to load or merge one dependent lookup.
type DependentLookupError struct {
	Entity string
	Dir    string
	Path   string
	Err    error
}

func (e *DependentLookupError) Error() string {
	where := e.Path
	if where == "" {
		where = e.Dir
	}
	return fmt.Sprintf("dependent lookup %s for %s: %v", where, e.Entity, e.Err)
}

func (e *DependentLookupError) Unwrap() error { return e.Err }

// RecordParseError identifies the record whose data failed to parse.
type RecordParseError struct {
	Entity string
	Record string
	Err    error
}

func (e *RecordParseError) Error() string {
	return fmt.Sprintf("cannot parse lookup data of %s %s: %v", e.Entity, e.Record, e.Err)
}

func (e *RecordParseError) Unwrap() error { return e.Err }
