package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
)

// DefaultUnwantedChars excludes stems with anything but word characters,
// spaces and dashes from directory scans.
var DefaultUnwantedChars = regexp.MustCompile(`[^\w\d_ -]`)

// Entity describes one kind of lookup-backed record: where its files live,
// how they are encoded, and which dependent lookups are merged on top.
type Entity struct {
	// Name identifies the entity in cache keys, logs and HTTP routes.
	Name string

	Dir     string
	Format  lookup.Format
	Postfix string

	// Dependents are merged in order; later ones override earlier keys.
	Dependents []Dependent

	// UnwantedChars excludes matching stems from EachLookup.
	// Nil means DefaultUnwantedChars.
	UnwantedChars *regexp.Regexp

	// TimestampFunc, when set, supplies the record timestamp from the stem
	// and defers reading the file until data is first needed.
	TimestampFunc func(stem string) (time.Time, error)

	// ExceptionsUnchanged returns raw *lookup.ParseError values instead of
	// wrapping them in *RecordParseError.
	ExceptionsUnchanged bool
}

// Dependent is a secondary lookup merged over the primary one.
type Dependent struct {
	Dir     string
	Format  lookup.Format
	Postfix string

	// Key, when set, names the primary variable holding the dependent's stem.
	// Otherwise the primary stem is reused.
	Key string
}

// Filename returns stem + postfix + format extension.
func (e Entity) Filename(stem string) string {
	return stem + e.Postfix + e.Format.Extension()
}

// Filename returns stem + postfix + format extension.
func (d Dependent) Filename(stem string) string {
	return stem + d.Postfix + d.Format.Extension()
}

// Validate reports missing or inconsistent entity options.
func (e Entity) Validate() error {
	var errs []error
	if e.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if e.Dir == "" {
		errs = append(errs, errors.New("dir is required"))
	}
	if _, err := lookup.ParseFormat(string(e.Format)); err != nil {
		errs = append(errs, err)
	}
	for i, d := range e.Dependents {
		if d.Dir == "" {
			errs = append(errs, fmt.Errorf("dependent %d: dir is required", i))
		}
		if _, err := lookup.ParseFormat(string(d.Format)); err != nil {
			errs = append(errs, fmt.Errorf("dependent %d: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("entity %q: %w", e.Name, err)
	}
	return nil
}

// validStem rejects stems that would escape the entity directory.
func validStem(stem string) error {
	if stem == "" || stem == "." || stem == ".." || strings.ContainsAny(stem, `/\`+"\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidStem, stem)
	}
	return nil
}
