package domain

import "github.com/jonboulle/clockwork"

// WithClock swaps the time source used for issued-at fallbacks and event
// load times. Pass nil to keep real time.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loader) {
		if c != nil {
			l.clock = c
		}
	}
}
