package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/weather-lookup-service/internal/domain"
	"github.com/couchcryptid/weather-lookup-service/internal/observability"
)

// BatchExtractor yields up to batchSize lookups that need (re)loading.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.LookupRef, error)
}

// Requeuer is implemented by extractors that can hand refs out again. The
// pipeline returns the refs of a batch no sink accepted, from the goroutine
// that calls ExtractBatch.
type Requeuer interface {
	Requeue(refs []domain.LookupRef)
}

// Transformer loads and resolves one lookup.
type Transformer interface {
	Transform(ctx context.Context, ref domain.LookupRef) (domain.LookupEvent, error)
}

// BatchLoader writes resolved lookups to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.LookupEvent) error
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has completed a refresh cycle,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a refresh cycle yet")
	}
	return nil
}

// Ready reports whether a refresh cycle has completed.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run executes the batch refresh loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	refs, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(refs) == 0 {
		p.ready.Store(true)
		return ctx.Err() == nil
	}

	p.metrics.BatchSize.Observe(float64(len(refs)))
	*backoff = 200 * time.Millisecond

	loaded, ok := p.transformAndLoad(ctx, refs, backoff, maxBackoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// transformAndLoad resolves each lookup in the batch and loads the successes.
// Returns the number of loaded lookups and false if the pipeline should stop.
// A batch the sinks reject is requeued when the extractor supports it.
func (p *Pipeline) transformAndLoad(ctx context.Context, refs []domain.LookupRef, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	events := make([]domain.LookupEvent, 0, len(refs))

	for _, ref := range refs {
		ev, err := p.transformer.Transform(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return 0, false
			}
			p.logger.Warn("load failed, skipping lookup", "error", err, "entity", ref.Entity, "stem", ref.Stem)
			p.metrics.LoadErrors.Inc()
			continue
		}
		events = append(events, ev)
	}

	if len(events) == 0 {
		return 0, true
	}
	p.metrics.LookupsLoaded.Add(float64(len(events)))

	if err := p.loader.LoadBatch(ctx, events); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(events))
		if rq, ok := p.extractor.(Requeuer); ok {
			failed := make([]domain.LookupRef, 0, len(events))
			for _, ev := range events {
				failed = append(failed, ev.Ref())
			}
			rq.Requeue(failed)
		}
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.LookupsPublished.Add(float64(len(events)))
	return len(events), true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
