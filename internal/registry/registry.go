package registry

import (
	"context"
	"sync"

	"studyrag/internal/domain"
)

// Corpus is a fitted, queryable set of chunks.
type Corpus interface {
	Query(ctx context.Context, text string, k int) ([]domain.Chunk, error)
	Len() int
}

// Entry pairs a corpus with the identifier it was registered under.
type Entry struct {
	ID     string
	Corpus Corpus
}

// Registry keeps corpora in registration order. Re-registering an identifier
// replaces the corpus but keeps its original slot.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	corpora map[string]Corpus
}

func New() *Registry {
	return &Registry{corpora: make(map[string]Corpus)}
}

// Register adds or replaces the corpus under id.
func (r *Registry) Register(id string, c Corpus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.corpora[id]; !ok {
		r.order = append(r.order, id)
	}
	r.corpora[id] = c
}

func (r *Registry) Get(id string) (Corpus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.corpora[id]
	return c, ok
}

// IDs returns identifiers in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Entries returns a snapshot of all corpora in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.order))
	for i, id := range r.order {
		out[i] = Entry{ID: id, Corpus: r.corpora[id]}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
