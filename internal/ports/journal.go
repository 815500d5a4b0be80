package ports

import (
	"context"
	"time"

	"github.com/dmoraes/galebot/internal/domain"
)

// Journal persists settled positions and daily summaries.
type Journal interface {
	ApplySchema(ctx context.Context) error

	SavePosition(ctx context.Context, pos domain.Position) error
	GetPositions(ctx context.Context, from, to time.Time) ([]domain.Position, error)

	SaveDaily(ctx context.Context, d domain.DailySummary) error
	GetDailies(ctx context.Context) ([]domain.DailySummary, error)

	Close() error
}
