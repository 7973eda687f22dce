package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/weather-lookup-service/internal/domain"
)

// NamedLoader labels a sink in fan-out errors.
type NamedLoader struct {
	Name   string
	Loader BatchLoader
}

// FanOut loads every batch into each sink in order. All sinks are attempted;
// their errors are joined.
type FanOut []NamedLoader

func (f FanOut) LoadBatch(ctx context.Context, events []domain.LookupEvent) error {
	var errs []error
	for _, s := range f {
		if err := s.Loader.LoadBatch(ctx, events); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
