// dataloader/dataloader.go

package dataloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	datacop_errors "github.com/prosapient/datacop/errors"
	logger "github.com/prosapient/datacop/logging"
)

// Source resolves one logical batch group in a single round trip. Inputs are
// deduplicated before the call; the returned map is keyed by input. Inputs
// missing from the map are treated as absent by Get.
type Source interface {
	BatchLoad(ctx context.Context, batchKey interface{}, inputs []interface{}) (map[interface{}]interface{}, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, batchKey interface{}, inputs []interface{}) (map[interface{}]interface{}, error)

func (f SourceFunc) BatchLoad(ctx context.Context, batchKey interface{}, inputs []interface{}) (map[interface{}]interface{}, error) {
	return f(ctx, batchKey, inputs)
}

// batchID identifies one coalescible batch group. Batch keys and inputs must
// be comparable values since they are used as map keys.
type batchID struct {
	source   string
	batchKey interface{}
}

// Loader accumulates pending load requests and executes them in batches, one
// round trip per distinct (source, batch key) pair. Results are cached for
// the lifetime of the loader, so repeated loads of an already-resolved input
// add no pending work.
//
// A loader is a single-owner accumulator: it is not safe for concurrent use
// from independently scheduled goroutines. Run itself may execute distinct
// batches concurrently; that concurrency is internal and guarded.
type Loader struct {
	sources map[string]Source
	pending map[batchID][]interface{}
	queued  map[batchID]map[interface{}]struct{}
	results map[batchID]map[interface{}]interface{}
}

func New() *Loader {
	return &Loader{
		sources: make(map[string]Source),
		pending: make(map[batchID][]interface{}),
		queued:  make(map[batchID]map[interface{}]struct{}),
		results: make(map[batchID]map[interface{}]interface{}),
	}
}

// AddSource registers a batch source under a name. Registering the same name
// twice replaces the previous source.
func (l *Loader) AddSource(name string, src Source) *Loader {
	l.sources[name] = src
	return l
}

// Load queues an input for the given source and batch key. Inputs already
// queued or already resolved are not queued again.
func (l *Loader) Load(source string, batchKey, input interface{}) error {
	if _, ok := l.sources[source]; !ok {
		return fmt.Errorf("%w: %s", datacop_errors.ErrUnknownSource, source)
	}

	id := batchID{source: source, batchKey: batchKey}
	if _, done := l.results[id][input]; done {
		return nil
	}
	if _, dup := l.queued[id][input]; dup {
		return nil
	}
	if l.queued[id] == nil {
		l.queued[id] = make(map[interface{}]struct{})
	}
	l.queued[id][input] = struct{}{}
	l.pending[id] = append(l.pending[id], input)
	return nil
}

// PendingBatches reports whether any queued loads are waiting for Run.
func (l *Loader) PendingBatches() bool {
	return len(l.pending) > 0
}

// Run executes every pending batch and blocks until all of them complete.
// Distinct batches never share state, so they run concurrently. A failing
// source fails the whole run; its inputs stay unresolved.
func (l *Loader) Run(ctx context.Context) error {
	if len(l.pending) == 0 {
		return nil
	}

	start := time.Now()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for id, inputs := range l.pending {
		id, inputs := id, inputs
		src := l.sources[id.source]
		g.Go(func() error {
			resolved, err := src.BatchLoad(gctx, id.batchKey, inputs)
			if err != nil {
				return fmt.Errorf("batch %s/%v failed: %w", id.source, id.batchKey, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if l.results[id] == nil {
				l.results[id] = make(map[interface{}]interface{}, len(resolved))
			}
			for input, value := range resolved {
				l.results[id][input] = value
			}
			return nil
		})
	}

	batches := len(l.pending)
	if err := g.Wait(); err != nil {
		return err
	}

	l.pending = make(map[batchID][]interface{})
	l.queued = make(map[batchID]map[interface{}]struct{})

	logger.Debug("Executed pending batches",
		zap.Int("batches", batches),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Get returns the resolved value for an input. The batch must have been
// executed by Run first.
func (l *Loader) Get(source string, batchKey, input interface{}) (interface{}, error) {
	id := batchID{source: source, batchKey: batchKey}
	value, ok := l.results[id][input]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%v input %v", datacop_errors.ErrNotLoaded, source, batchKey, input)
	}
	return value, nil
}
