package hygiene

import (
	"sync"
)

// Holder keeps Scoped items, and therefore their spans, open.
//
// With a limit of zero nothing is ever closed before ReleaseAll. With a
// positive limit the oldest item is closed when a new one would exceed it,
// so its span ends long after its work finished.
type Holder[T Scoped] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// NewHolder creates a holder. limit <= 0 means unbounded.
func NewHolder[T Scoped](limit int) *Holder[T] {
	if limit < 0 {
		limit = 0
	}
	return &Holder[T]{limit: limit}
}

// Hold retains item without closing it.
func (h *Holder[T]) Hold(item T) {
	h.mu.Lock()
	var evicted []T
	h.items = append(h.items, item)
	if h.limit > 0 && len(h.items) > h.limit {
		n := len(h.items) - h.limit
		evicted = append(evicted, h.items[:n]...)
		h.items = append(h.items[:0:0], h.items[n:]...)
	}
	h.mu.Unlock()

	for _, e := range evicted {
		e.Close()
	}
}

// Len returns the number of items currently held.
func (h *Holder[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// ReleaseAll closes every held item, oldest first, and returns how many
// were closed.
func (h *Holder[T]) ReleaseAll() int {
	h.mu.Lock()
	items := h.items
	h.items = nil
	h.mu.Unlock()

	for _, item := range items {
		item.Close()
	}
	return len(items)
}
