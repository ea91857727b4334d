package live

import (
	"sync"

	"trend-edge-lab/internal/domain"
)

// DefaultMaxPending bounds the pending-idea list when the config leaves it unset.
const DefaultMaxPending = 30

// Idea is an approved entry that has not been opened yet.
type Idea struct {
	ID          string
	Key         string // no-repeat guard key
	Symbol      string
	Interval    string
	Side        domain.Signal
	Model       domain.ModelType
	Score       float64
	Entry       float64
	Stop        float64
	Target      float64
	ATR         float64
	RiskMult    float64
	BarTs       int64
	CreatedAtMs int64
	Reasons     []string
}

// PendingBook holds ideas waiting for manual acceptance, newest first.
type PendingBook struct {
	mu    sync.Mutex
	max   int
	ideas []Idea
}

// NewPendingBook creates a book keeping at most max ideas.
func NewPendingBook(max int) *PendingBook {
	if max <= 0 {
		max = DefaultMaxPending
	}
	return &PendingBook{max: max}
}

// Add inserts idea at the front. It reports false when an idea with the same
// key is already pending. When the book overflows the oldest idea is evicted
// and returned.
func (b *PendingBook) Add(idea Idea) (added bool, evicted *Idea) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.ideas {
		if p.Key == idea.Key {
			return false, nil
		}
	}
	b.ideas = append([]Idea{idea}, b.ideas...)
	if len(b.ideas) > b.max {
		last := b.ideas[len(b.ideas)-1]
		b.ideas = b.ideas[:len(b.ideas)-1]
		return true, &last
	}
	return true, nil
}

// Get returns the idea with id.
func (b *PendingBook) Get(id string) (Idea, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.ideas {
		if p.ID == id {
			return p, true
		}
	}
	return Idea{}, false
}

// Remove deletes the idea with id and returns it.
func (b *PendingBook) Remove(id string) (Idea, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.ideas {
		if p.ID == id {
			b.ideas = append(b.ideas[:i:i], b.ideas[i+1:]...)
			return p, true
		}
	}
	return Idea{}, false
}

// List returns a copy of the pending ideas, newest first.
func (b *PendingBook) List() []Idea {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Idea(nil), b.ideas...)
}

// Len returns the number of pending ideas.
func (b *PendingBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ideas)
}

// Clear drops every idea.
func (b *PendingBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ideas = nil
}
