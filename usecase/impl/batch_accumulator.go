package impl

import (
	"sync"
	"time"

	"github.com/swarmops/telemetry/domain/entity"
)

// fullBatchQueueSize bounds how many filled batches may wait for the
// background flusher before producers start dropping.
const fullBatchQueueSize = 16

// batchAccumulator buffers metrics and hands filled batches to a background
// flusher goroutine over a bounded queue, so producers never run storage or
// emission work themselves. The flush function owns error handling; the
// accumulator never reports flush failures to producers.
type batchAccumulator struct {
	mu      sync.Mutex
	pending []*entity.UnifiedMetric

	batchSize int
	interval  time.Duration
	flushFn   func([]*entity.UnifiedMetric)
	dropFn    func(int)

	full     chan []*entity.UnifiedMetric
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newBatchAccumulator(batchSize int, interval time.Duration, flushFn func([]*entity.UnifiedMetric), dropFn func(int)) *batchAccumulator {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	a := &batchAccumulator{
		pending:   make([]*entity.UnifiedMetric, 0, batchSize),
		batchSize: batchSize,
		interval:  interval,
		flushFn:   flushFn,
		dropFn:    dropFn,
		full:      make(chan []*entity.UnifiedMetric, fullBatchQueueSize),
		stopChan:  make(chan struct{}),
	}

	a.wg.Add(1)
	go a.runFlusher()

	return a
}

// add buffers one metric. A filled batch goes onto the flusher queue; when
// the queue is saturated the batch is dropped rather than blocking the
// producer.
func (a *batchAccumulator) add(metric *entity.UnifiedMetric) {
	a.mu.Lock()
	a.pending = append(a.pending, metric)
	var batch []*entity.UnifiedMetric
	if len(a.pending) >= a.batchSize {
		batch = a.takeLocked()
	}
	a.mu.Unlock()

	if batch == nil {
		return
	}

	select {
	case a.full <- batch:
	default:
		if a.dropFn != nil {
			a.dropFn(len(batch))
		}
	}
}

// flush drains the queued batches and whatever is pending now, on the
// caller's goroutine.
func (a *batchAccumulator) flush() {
	for {
		select {
		case batch := <-a.full:
			a.flushFn(batch)
		default:
			a.mu.Lock()
			batch := a.takeLocked()
			a.mu.Unlock()

			if batch != nil {
				a.flushFn(batch)
			}
			return
		}
	}
}

func (a *batchAccumulator) takeLocked() []*entity.UnifiedMetric {
	if len(a.pending) == 0 {
		return nil
	}
	batch := a.pending
	a.pending = make([]*entity.UnifiedMetric, 0, a.batchSize)
	return batch
}

func (a *batchAccumulator) runFlusher() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case batch := <-a.full:
			a.flushFn(batch)
		case <-ticker.C:
			a.flush()
		case <-a.stopChan:
			return
		}
	}
}

// stop halts the flusher and drains remaining metrics. Idempotent.
func (a *batchAccumulator) stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.wg.Wait()
		a.flush()
	})
}
