package domain

// Observer receives data-quality and cache signals from loaders.
// observability.Metrics implements it with Prometheus counters.
type Observer interface {
	// CacheLookup reports a get-or-compute outcome; kind is "raw" or "vars".
	CacheLookup(kind string, hit bool)
	EncodingReplaced(path string, count int)
	DependentFailed(entity string)
	// IssuedAtFallback reports a fallback to the current time; source is
	// "gmtissued" or "date_time".
	IssuedAtFallback(entity, source string)
	TruncationRepaired(entity string)
}

// NopObserver discards every signal.
type NopObserver struct{}

func (NopObserver) CacheLookup(string, bool) {}
func (NopObserver) EncodingReplaced(string, int) {}
func (NopObserver) DependentFailed(string) {}
func (NopObserver) IssuedAtFallback(string, string) {}
func (NopObserver) TruncationRepaired(string) {}
