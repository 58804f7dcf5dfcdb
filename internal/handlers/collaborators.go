// internal/handlers/collaborators.go
package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cyclosproject/searchd/internal/core/ports"
)

type confirmationKey struct{}

// WithConfirmation marks the request context as carrying the user's
// confirmation answer. Payment submissions read it back through the
// Notifier port.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmationKey{}, confirmed)
}

// logReporter surfaces core failures through the structured log.
// Ignorable failures are part of normal cascade operation and log at
// debug; hard failures log at error.
type logReporter struct {
	logger *slog.Logger
}

var _ ports.ErrorReporter = (*logReporter)(nil)

func newLogReporter(logger *slog.Logger) *logReporter {
	return &logReporter{logger: logger.With(slog.String("component", "error_reporter"))}
}

func (r *logReporter) Report(ctx context.Context, err error, ignorable bool) {
	if ignorable {
		r.logger.DebugContext(ctx, "ignorable backend error",
			slog.String("error", err.Error()))
		return
	}
	r.logger.ErrorContext(ctx, "backend error",
		slog.String("error", err.Error()))
}

// contextNotifier answers confirmation prompts from the request
// context. A submission without an explicit confirmed flag is treated
// as declined, which the core maps to a silent no-op.
type contextNotifier struct{}

var _ ports.Notifier = (*contextNotifier)(nil)

func (contextNotifier) Confirm(ctx context.Context, message string) (bool, error) {
	confirmed, _ := ctx.Value(confirmationKey{}).(bool)
	return confirmed, nil
}

// navRecorder captures the path the core navigated to so the response
// can hand it to the client as the next location.
type navRecorder struct {
	mu   sync.Mutex
	path string
}

var _ ports.Navigator = (*navRecorder)(nil)

func (n *navRecorder) NavigateTo(ctx context.Context, path string) error {
	n.mu.Lock()
	n.path = path
	n.mu.Unlock()
	return nil
}

// Next returns the recorded path and clears it.
func (n *navRecorder) Next() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := n.path
	n.path = ""
	return p
}
