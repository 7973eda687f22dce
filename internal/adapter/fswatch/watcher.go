// Package fswatch turns lookup directories into a stream of lookups to
// reload: every lookup present at startup, then each one written afterwards.
package fswatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/couchcryptid/weather-lookup-service/internal/domain"
)

// target maps file names in one directory to stems of one entity.
type target struct {
	loader *domain.Loader
	stemOf func(name string) (string, bool)
}

// Watcher implements pipeline.BatchExtractor.
type Watcher struct {
	fs            *fsnotify.Watcher // nil when only the initial scan is wanted
	targets       map[string][]target
	pending       []domain.LookupRef
	scanned       bool
	flushInterval time.Duration
	logger        *slog.Logger
}

// New scans every entity directory and, if watch is set, subscribes to
// changes in entity and dependent directories.
func New(registry *domain.Registry, flushInterval time.Duration, watch bool, logger *slog.Logger) (*Watcher, error) {
	w := &Watcher{
		targets:       make(map[string][]target),
		flushInterval: flushInterval,
		logger:        logger,
	}

	for _, l := range registry.Loaders() {
		e := l.Entity()
		stems, err := l.Stems()
		if err != nil {
			logger.Warn("initial scan failed", "entity", e.Name, "error", err)
		}
		for _, stem := range stems {
			w.pending = append(w.pending, domain.LookupRef{Entity: e.Name, Stem: stem})
		}

		w.addTarget(e.Dir, target{loader: l, stemOf: l.StemOf})
		for _, dep := range e.Dependents {
			if dep.Key != "" {
				// The primary stem cannot be recovered from a keyed dependent.
				continue
			}
			w.addTarget(dep.Dir, target{loader: l, stemOf: dependentStemOf(l, dep)})
		}
	}
	logger.Info("initial scan complete", "lookups", len(w.pending))

	if !watch {
		return w, nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for dir := range w.targets {
		if err := fsw.Add(dir); err != nil {
			logger.Warn("cannot watch directory", "dir", dir, "error", err)
		}
	}
	w.fs = fsw
	return w, nil
}

func (w *Watcher) addTarget(dir string, t target) {
	dir = filepath.Clean(dir)
	w.targets[dir] = append(w.targets[dir], t)
}

// dependentStemOf maps a dependent file back to the primary stem sharing it.
func dependentStemOf(l *domain.Loader, dep domain.Dependent) func(string) (string, bool) {
	return func(name string) (string, bool) {
		stem, ok := strings.CutSuffix(name, dep.Format.Extension())
		if !ok {
			return "", false
		}
		if stem, ok = strings.CutSuffix(stem, dep.Postfix); !ok {
			return "", false
		}
		return l.StemOf(l.Entity().Filename(stem))
	}
}

// ExtractBatch returns up to batchSize lookups to reload. The first calls
// drain the initial scan; later calls wait for file events and return what
// arrived within the flush interval, possibly nothing.
func (w *Watcher) ExtractBatch(ctx context.Context, batchSize int) ([]domain.LookupRef, error) {
	if !w.scanned || len(w.pending) > 0 {
		w.scanned = true
		n := min(batchSize, len(w.pending))
		batch := w.pending[:n:n]
		w.pending = w.pending[n:]
		return batch, nil
	}

	if w.fs == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	timer := time.NewTimer(w.flushInterval)
	defer timer.Stop()

	var batch []domain.LookupRef
	seen := make(map[domain.LookupRef]struct{})
	for len(batch) < batchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return batch, nil
		case err, ok := <-w.fs.Errors:
			if !ok {
				return batch, nil
			}
			return batch, fmt.Errorf("watch lookups: %w", err)
		case ev, ok := <-w.fs.Events:
			if !ok {
				return batch, nil
			}
			for _, ref := range w.refsFor(ev) {
				if _, dup := seen[ref]; dup {
					continue
				}
				seen[ref] = struct{}{}
				batch = append(batch, ref)
			}
		}
	}
	return batch, nil
}

func (w *Watcher) refsFor(ev fsnotify.Event) []domain.LookupRef {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return nil
	}
	dir, name := filepath.Split(ev.Name)
	var refs []domain.LookupRef
	for _, t := range w.targets[filepath.Clean(dir)] {
		if stem, ok := t.stemOf(name); ok {
			refs = append(refs, domain.LookupRef{Entity: t.loader.Entity().Name, Stem: stem})
		}
	}
	if len(refs) == 0 {
		w.logger.Debug("ignoring file event", "file", ev.Name, "op", ev.Op.String())
	}
	return refs
}

// Requeue puts refs back in front of the queue, skipping any already pending.
// It must be called from the goroutine that calls ExtractBatch.
func (w *Watcher) Requeue(refs []domain.LookupRef) {
	pending := make(map[domain.LookupRef]struct{}, len(w.pending))
	for _, ref := range w.pending {
		pending[ref] = struct{}{}
	}
	var front []domain.LookupRef
	for _, ref := range refs {
		if _, dup := pending[ref]; dup {
			continue
		}
		pending[ref] = struct{}{}
		front = append(front, ref)
	}
	w.pending = append(front, w.pending...)
	w.logger.Info("lookups requeued", "count", len(front))
}

// Close stops watching.
func (w *Watcher) Close() error {
	if w.fs == nil {
		return nil
	}
	return w.fs.Close()
}
