package impl

import (
	"sync"
	"time"
)

const guardWindowSize = 100

// performanceGuard tracks the rolling average of the collector's own
// per-call overhead. When the average exceeds the budget, recording is
// skipped until cheaper calls pull it back down.
type performanceGuard struct {
	mu      sync.Mutex
	budget  time.Duration
	samples [guardWindowSize]time.Duration
	next    int
	count   int
	sum     time.Duration
}

func newPerformanceGuard(budget time.Duration) *performanceGuard {
	return &performanceGuard{budget: budget}
}

// record folds one measured overhead into the window.
func (g *performanceGuard) record(overhead time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count == guardWindowSize {
		g.sum -= g.samples[g.next]
	} else {
		g.count++
	}
	g.samples[g.next] = overhead
	g.sum += overhead
	g.next = (g.next + 1) % guardWindowSize
}

// average returns the current rolling average, 0 with no samples.
func (g *performanceGuard) average() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.averageLocked()
}

func (g *performanceGuard) averageLocked() time.Duration {
	if g.count == 0 {
		return 0
	}
	return g.sum / time.Duration(g.count)
}

// overBudget reports whether recording should be skipped.
func (g *performanceGuard) overBudget() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.averageLocked() > g.budget
}

// withinFraction reports whether the average sits below the given fraction
// of the budget.
func (g *performanceGuard) withinFraction(fraction float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return float64(g.averageLocked()) < fraction*float64(g.budget)
}
