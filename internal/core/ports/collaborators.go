// internal/core/ports/collaborators.go
package ports

import "context"

// ErrorReporter receives failures the core decided not to handle
// itself. Presentation is entirely the implementation's concern; the
// core only classifies whether a failure is ignorable for its cascade.
type ErrorReporter interface {
	Report(ctx context.Context, err error, ignorable bool)
}

// Notifier presents user prompts and returns their outcome.
type Notifier interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// Navigator transitions the visible screen after terminal actions.
type Navigator interface {
	NavigateTo(ctx context.Context, path string) error
}

// StateStore is a blind string-keyed store used to persist a screen's
// filter values and result type across navigation.
type StateStore interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// ErrStateMiss is returned by StateStore.Get when no value is stored
// under the key; defined here so core code need not import adapters.
type stateMissError struct{}

func (stateMissError) Error() string { return "state store: key not found" }

// ErrStateMiss is the sentinel for an absent persisted-state key.
var ErrStateMiss error = stateMissError{}
