package batch

import "sync"

const DefaultHistory = 256

type entry struct {
	submitted int
	collector *Collector
}

// Registry remembers the collectors of the most recent batches. The oldest
// batch is evicted once the limit is reached.
type Registry struct {
	mu      sync.Mutex
	limit   int
	order   []string
	batches map[string]entry
}

func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Registry{limit: limit, batches: make(map[string]entry, limit)}
}

func (r *Registry) Put(batchID string, submitted int, c *Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[batchID]; !ok {
		r.order = append(r.order, batchID)
	}
	r.batches[batchID] = entry{submitted: submitted, collector: c}
	for len(r.order) > r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.batches, oldest)
	}
}

func (r *Registry) Lookup(batchID string) (Status, bool) {
	r.mu.Lock()
	e, ok := r.batches[batchID]
	r.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return Status{BatchID: batchID, Submitted: e.submitted, Results: e.collector.Snapshot()}, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
