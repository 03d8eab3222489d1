package stats

import (
	"sync"

	"github.com/crytic/svmfuzz/logging"
)

// DefaultSnapshotInterval is the number of merged deltas between two aggregate snapshots buffered into the store.
const DefaultSnapshotInterval = 25

// Reporter aggregates statistics deltas submitted by workers. Workers never share their statistics in place: each
// submits a delta at a synchronization point and the reporter's goroutine merges it into the aggregate.
type Reporter struct {
	// incoming queues deltas for the aggregation goroutine.
	incoming chan *Statistics

	// aggregatedLock guards aggregated.
	aggregatedLock sync.Mutex

	// aggregated is the merge of every delta received so far.
	aggregated *Statistics

	// store receives a snapshot of the aggregate every snapshotInterval merges and once more on Close, if set.
	store *FindingStore

	// snapshotInterval is the number of merged deltas between two snapshots.
	snapshotInterval int

	// done is closed when the aggregation goroutine exits.
	done chan struct{}

	// closeOnce guards closing incoming.
	closeOnce sync.Once

	logger *logging.Logger
}

// NewReporter creates a Reporter. If store is non-nil, aggregate snapshots are buffered into it.
func NewReporter(store *FindingStore) *Reporter {
	return &Reporter{
		incoming:         make(chan *Statistics, 500),
		aggregated:       NewStatistics(),
		store:            store,
		snapshotInterval: DefaultSnapshotInterval,
		done:             make(chan struct{}),
		logger:           logging.GlobalLogger.NewSubLogger(logging.SERVICE_KEY, logging.STATISTICS_SERVICE),
	}
}

// Start launches the goroutine which merges submitted deltas. It exits once Close is called and every queued delta
// has been merged.
func (r *Reporter) Start() {
	go func() {
		defer close(r.done)
		pending := 0
		for delta := range r.incoming {
			r.aggregatedLock.Lock()
			err := r.aggregated.MergeFrom(delta)
			r.aggregatedLock.Unlock()
			if err != nil {
				r.logger.Error("Failed to merge statistics", err)
				continue
			}

			pending++
			if pending >= r.snapshotInterval {
				r.bufferSnapshot()
				pending = 0
			}
		}
		if pending > 0 {
			r.bufferSnapshot()
		}
	}()
}

// bufferSnapshot buffers a snapshot of the aggregate into the store, if one is set. Snapshots leave out the
// regression hashes, which grow with every iteration and are only needed by the final report.
func (r *Reporter) bufferSnapshot() {
	if r.store == nil {
		return
	}
	r.aggregatedLock.Lock()
	snapshot := r.aggregated.cloneWithoutRegression()
	r.aggregatedLock.Unlock()

	if err := r.store.BufferStatistics(snapshot); err != nil {
		r.logger.Error("Failed to store statistics snapshot", err)
	}
}

// Submit queues a delta for aggregation. The reporter takes ownership of delta.
func (r *Reporter) Submit(delta *Statistics) {
	r.incoming <- delta
}

// Snapshot returns a copy of the aggregate as of the last merged delta.
func (r *Reporter) Snapshot() *Statistics {
	r.aggregatedLock.Lock()
	defer r.aggregatedLock.Unlock()
	return r.aggregated.Clone()
}

// Close stops accepting deltas, waits for queued deltas to be merged and returns the final aggregate. Start must
// have been called.
func (r *Reporter) Close() *Statistics {
	r.closeOnce.Do(func() {
		close(r.incoming)
	})
	<-r.done
	return r.Snapshot()
}
