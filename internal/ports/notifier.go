package ports

import (
	"context"

	"github.com/dmoraes/galebot/internal/domain"
)

// Notifier reports trading events to the user. The console
// implementation prints timestamped WIN/LOSS lines and an end-of-run
// table.
type Notifier interface {
	// OrderPlaced announces a successful buy. note carries the staking
	// context ("GALE 1", "SOROS 2", "CYCLE").
	OrderPlaced(ctx context.Context, pos domain.Position, note string)

	// OrderSettled announces a terminal settlement.
	OrderSettled(ctx context.Context, pos domain.Position)

	// TradingStopped announces a circuit-breaker halt.
	TradingStopped(ctx context.Context, reason domain.StopReason, finalBalance float64)
}
