// internal/core/services/holder.go
package services

import (
	"sync"

	"github.com/cyclosproject/searchd/internal/core/domain"
)

// ResultHolder owns the single live result page of a screen. Each
// issued fetch gets a monotonically increasing sequence token;
// completions carrying a stale token are discarded, so the holder
// always reflects the most recently issued request regardless of
// network completion order.
type ResultHolder struct {
	mu        sync.Mutex
	seq       uint64
	rendering bool
	result    *domain.PagedResult
	lastGood  *domain.PagedResult
}

// NewResultHolder creates an empty holder.
func NewResultHolder() *ResultHolder {
	return &ResultHolder{}
}

// Begin registers a new fetch: bumps the sequence, raises the
// rendering flag, and clears the displayed page while remembering it
// as last-known-good. Returns the token the completion must present.
func (h *ResultHolder) Begin() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.rendering = true
	if h.result != nil {
		h.lastGood = h.result
	}
	h.result = nil
	return h.seq
}

// Complete stores a fetched page if the token is still the latest.
// Stale completions report false and leave state untouched.
func (h *ResultHolder) Complete(token uint64, page *domain.PagedResult) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if token != h.seq {
		return false
	}
	h.rendering = false
	h.result = page
	h.lastGood = page
	return true
}

// Fail ends a fetch in error. The previous page is restored so the
// screen keeps showing stale-but-valid data instead of clearing.
// Stale failures report false.
func (h *ResultHolder) Fail(token uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if token != h.seq {
		return false
	}
	h.rendering = false
	h.result = h.lastGood
	return true
}

// Result returns the displayed page (nil while a fetch is clearing the
// screen) and whether a fetch is in flight.
func (h *ResultHolder) Result() (*domain.PagedResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.rendering
}
