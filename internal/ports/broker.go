package ports

import (
	"context"

	"github.com/dmoraes/galebot/internal/domain"
)

// BrokerSession drives one exclusive trading session on the broker
// platform. Implementations are NOT safe for concurrent use: the
// session guard serializes every call.
type BrokerSession interface {
	// Buy places a binary option and returns the session-assigned
	// order ID.
	Buy(ctx context.Context, amount float64, pair string, dir domain.Direction, expiresIn int) (string, error)

	// CheckResult blocks until the order has settled and returns its
	// outcome. A nil settlement with nil error means the result could
	// not be determined (inconclusive).
	CheckResult(ctx context.Context, orderID string) (*domain.Settlement, error)

	// Balance returns the account balance in currency units.
	Balance(ctx context.Context) (float64, error)

	// Refresh reloads the session in place. Used as the recovery
	// action between retries of a failed call.
	Refresh(ctx context.Context) error

	// Snapshot returns a diagnostic description of the session state,
	// captured when a call exhausts its retries.
	Snapshot() string

	Close() error
}

// SessionFactory opens a fresh broker session. The guard calls it once
// at startup and again on every forced restart.
type SessionFactory func(ctx context.Context) (BrokerSession, error)
