package server

import (
	"sort"
	"sync"
	"time"

	"nifty-signals/internal/signal"
)

// Board holds the most recently published signal set.
type Board struct {
	mu        sync.RWMutex
	evals     map[string]signal.Evaluation
	updatedAt time.Time
}

func NewBoard() *Board {
	return &Board{evals: map[string]signal.Evaluation{}}
}

// Publish replaces the current set.
func (b *Board) Publish(evals map[string]signal.Evaluation, at time.Time) {
	next := make(map[string]signal.Evaluation, len(evals))
	for k, v := range evals {
		next[k] = v
	}
	b.mu.Lock()
	b.evals = next
	b.updatedAt = at
	b.mu.Unlock()
}

// Sorted returns the current set ordered by symbol.
func (b *Board) Sorted() ([]signal.Evaluation, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]signal.Evaluation, 0, len(b.evals))
	for _, e := range b.evals {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, b.updatedAt
}

func (b *Board) Get(symbol string) (signal.Evaluation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.evals[symbol]
	return e, ok
}
