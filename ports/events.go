package ports

import (
	"context"

	"github.com/layer-3/portal/core"
)

// EventPublisher publishes handshake state transitions
type EventPublisher interface {
	PublishTransition(ctx context.Context, transition core.Transition) error
}

// ErrorReporter ships handshake failures to a log collector. Implementations
// must not return or panic; reporting is best effort.
type ErrorReporter interface {
	Report(ctx context.Context, report ErrorReport)
}

// ErrorReport is a sanitized failure description
type ErrorReport struct {
	Endpoint string
	Message  string
	Error    string
	UserID   string
	Level    string
	Metadata map[string]any
}
