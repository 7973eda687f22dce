package pipeline

import (
	"context"

	"github.com/couchcryptid/weather-lookup-service/internal/domain"
)

// LookupTransformer implements Transformer by loading lookups through the
// entity registry.
type LookupTransformer struct {
	registry *domain.Registry
}

// NewTransformer creates a LookupTransformer.
func NewTransformer(registry *domain.Registry) *LookupTransformer {
	return &LookupTransformer{registry: registry}
}

func (t *LookupTransformer) Transform(ctx context.Context, ref domain.LookupRef) (domain.LookupEvent, error) {
	return t.registry.Lookup(ctx, ref)
}
