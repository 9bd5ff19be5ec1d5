package batch

import (
	"sync"

	"github.com/PipeOpsHQ/medical-coder-api/runtime/orchestrator"
)

// Collector accumulates the results of one batch. It is safe for concurrent
// use.
type Collector struct {
	mu      sync.Mutex
	results []orchestrator.Result
}

func NewCollector() *Collector {
	return &Collector{results: []orchestrator.Result{}}
}

func (c *Collector) Append(r orchestrator.Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

// Snapshot returns a copy of the results appended so far. It never returns
// nil.
func (c *Collector) Snapshot() []orchestrator.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]orchestrator.Result, len(c.results))
	copy(out, c.results)
	return out
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}
