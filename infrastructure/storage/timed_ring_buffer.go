package storage

import (
	"context"
	"sync"
	"time"

	"github.com/swarmops/telemetry/domain"
)

// TimedRingBuffer is a RingBuffer that additionally evicts entries older
// than a configured max age. A periodic sweep runs every tenth of the max
// age (at least every second). The sweep is fail-safe-keep: on any internal
// error the buffer is left untouched and the error is only logged.
type TimedRingBuffer[T any] struct {
	*RingBuffer[T]

	maxAge      time.Duration
	timestampOf func(T) (time.Time, error)
	logger      domain.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewTimedRingBuffer creates a time-aware buffer. timestampOf extracts an
// item's timestamp; items whose timestamp cannot be read are eligible for
// removal rather than failing the sweep.
func NewTimedRingBuffer[T any](capacity int, maxAge time.Duration, timestampOf func(T) (time.Time, error), logger domain.Logger) *TimedRingBuffer[T] {
	b := &TimedRingBuffer[T]{
		RingBuffer:  NewRingBuffer[T](capacity),
		maxAge:      maxAge,
		timestampOf: timestampOf,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}

	b.wg.Add(1)
	go b.runSweep()

	return b
}

// sweepInterval is a tenth of the max age, floored at one second.
func (b *TimedRingBuffer[T]) sweepInterval() time.Duration {
	interval := b.maxAge / 10
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func (b *TimedRingBuffer[T]) runSweep() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Sweep()
		case <-b.stopChan:
			return
		}
	}
}

// Sweep removes expired items now. Filtering and the rebuild run as one
// critical section on the ring, so concurrent adds are never lost. A panic
// inside the sweep leaves the buffer untouched.
func (b *TimedRingBuffer[T]) Sweep() {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error(context.Background(), "buffer sweep failed, keeping contents",
				domain.NewField("panic", r))
		}
	}()

	cutoff := time.Now().Add(-b.maxAge)
	b.retain(func(item T) bool {
		ts, err := b.timestampOf(item)
		if err != nil {
			return false
		}
		return ts.After(cutoff)
	})
}

// filterValid keeps items whose timestamp is within max age of now. Items
// with unreadable timestamps are dropped.
func (b *TimedRingBuffer[T]) filterValid(items []T, now time.Time) []T {
	cutoff := now.Add(-b.maxAge)
	valid := make([]T, 0, len(items))
	for _, item := range items {
		ts, err := b.timestampOf(item)
		if err != nil {
			continue
		}
		if ts.After(cutoff) {
			valid = append(valid, item)
		}
	}
	return valid
}

// GetValid returns only currently-unexpired items without mutating the
// buffer.
func (b *TimedRingBuffer[T]) GetValid() []T {
	return b.filterValid(b.GetAll(), time.Now())
}

// MaxAge returns the configured retention window.
func (b *TimedRingBuffer[T]) MaxAge() time.Duration {
	return b.maxAge
}

// Stop cancels the periodic sweep. Safe to call more than once, and safe
// even if internal teardown panics.
func (b *TimedRingBuffer[T]) Stop() {
	b.stopOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil && b.logger != nil {
				b.logger.Error(context.Background(), "buffer teardown panic",
					domain.NewField("panic", r))
			}
		}()
		close(b.stopChan)
		b.wg.Wait()
	})
}
