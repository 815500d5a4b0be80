package ports

import (
	"context"

	"github.com/dmoraes/galebot/internal/domain"
)

// SignalSink receives parsed trading signals. Implemented by the
// engine; duplicate or out-of-horizon signals are dropped, not errors.
type SignalSink interface {
	Submit(sig domain.Signal) error
}

// SignalSource produces trading signals from an external feed and
// pushes them into a sink until the context is cancelled.
type SignalSource interface {
	Run(ctx context.Context, sink SignalSink) error
	Close() error
}
