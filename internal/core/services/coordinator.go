// internal/core/services/coordinator.go
package services

import (
	"fmt"

	"github.com/cyclosproject/searchd/internal/core/domain"
)

// Coordinator decides whether switching a screen's presentation mode
// warrants a backend fetch. Categories is a transient, locally rendered
// state: entering it never fetches, leaving it always fetches once,
// and pure mode toggles with unchanged filters reuse the cached page.
type Coordinator struct {
	allowed []domain.ResultType
	current domain.ResultType
}

// NewCoordinator creates a coordinator for the screen's allowed modes.
func NewCoordinator(allowed []domain.ResultType) *Coordinator {
	return &Coordinator{allowed: allowed}
}

// Current returns the active result type; ResultTypeNone before the
// first transition.
func (c *Coordinator) Current() domain.ResultType {
	return c.current
}

// FirstListed returns the first allowed non-categories type, used when
// a fetch completes while categories is active.
func (c *Coordinator) FirstListed() domain.ResultType {
	for _, t := range c.allowed {
		if t != domain.ResultTypeCategories {
			return t
		}
	}
	return domain.ResultTypeNone
}

// Transition moves to the next result type and reports whether the
// change requires a fetch. filtersChanged tells whether the filter form
// differs from the previously applied value.
func (c *Coordinator) Transition(next domain.ResultType, filtersChanged bool) (bool, error) {
	if !c.isAllowed(next) {
		return false, fmt.Errorf("result type %q not allowed for this screen", next)
	}

	prev := c.current
	c.current = next

	switch {
	case next == prev:
		return false, nil
	case next == domain.ResultTypeCategories:
		// Categories render from already-known taxonomy.
		return false, nil
	case prev == domain.ResultTypeNone:
		return true, nil
	case prev == domain.ResultTypeCategories:
		// Leaving categories always needs fresh list data.
		return true, nil
	default:
		return filtersChanged, nil
	}
}

// ForceTo sets the current type without fetch evaluation. Used by the
// holder's auto-switch away from categories after a completed fetch.
func (c *Coordinator) ForceTo(rt domain.ResultType) {
	if c.isAllowed(rt) {
		c.current = rt
	}
}

func (c *Coordinator) isAllowed(rt domain.ResultType) bool {
	for _, t := range c.allowed {
		if t == rt {
			return true
		}
	}
	return false
}
