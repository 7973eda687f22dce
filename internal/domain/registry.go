package domain

import (
	"context"
	"fmt"
)

// Registry maps entity names to their loaders.
type Registry struct {
	loaders map[string]*Loader
	order   []string
}

// NewRegistry registers loaders under their entity names, which must be unique.
func NewRegistry(loaders ...*Loader) (*Registry, error) {
	r := &Registry{loaders: make(map[string]*Loader, len(loaders))}
	for _, l := range loaders {
		name := l.entity.Name
		if _, dup := r.loaders[name]; dup {
			return nil, fmt.Errorf("entity %q registered twice", name)
		}
		r.loaders[name] = l
		r.order = append(r.order, name)
	}
	return r, nil
}

// Loader returns the loader for entity.
func (r *Registry) Loader(entity string) (*Loader, error) {
	l, ok := r.loaders[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return l, nil
}

// Loaders returns every loader in registration order.
func (r *Registry) Loaders() []*Loader {
	out := make([]*Loader, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.loaders[name])
	}
	return out
}

// Record loads the record for ref.
func (r *Registry) Record(ctx context.Context, ref LookupRef) (*Record, error) {
	l, err := r.Loader(ref.Entity)
	if err != nil {
		return nil, err
	}
	return l.FromLookup(ctx, ref.Stem)
}

// Lookup loads ref and resolves it into an event.
func (r *Registry) Lookup(ctx context.Context, ref LookupRef) (LookupEvent, error) {
	rec, err := r.Record(ctx, ref)
	if err != nil {
		return LookupEvent{}, err
	}
	return NewLookupEvent(ctx, rec)
}
