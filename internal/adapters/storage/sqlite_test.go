package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmoraes/galebot/internal/domain"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSQLiteJournal_PositionRoundTrip(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	opened := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	pos := domain.Position{
		ID:        "pos-1",
		BrokerID:  "broker-1",
		Pair:      "EURUSD",
		Direction: domain.DirectionCall,
		Gales:     1,
		Amount:    44,
		OpenedAt:  opened,
		ExpiresIn: 5,
		Outcome:   domain.OutcomeLoss,
	}
	require.NoError(t, j.SavePosition(ctx, pos))

	got, err := j.GetPositions(ctx, opened.Add(-time.Hour), opened.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pos-1", got[0].ID)
	assert.Equal(t, "EURUSD", got[0].Pair)
	assert.Equal(t, domain.DirectionCall, got[0].Direction)
	assert.Equal(t, 1, got[0].Gales)
	assert.Equal(t, 44.0, got[0].Amount)
	assert.Equal(t, domain.OutcomeLoss, got[0].Outcome)
	assert.True(t, got[0].Closed)
	assert.True(t, got[0].OpenedAt.Equal(opened))
}

func TestSQLiteJournal_PositionUpsert(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	opened := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	pos := domain.Position{
		ID: "pos-1", BrokerID: "b1", Pair: "EURUSD",
		Direction: domain.DirectionPut, Amount: 20, OpenedAt: opened,
		ExpiresIn: 5, Outcome: domain.OutcomeUnknown,
	}
	require.NoError(t, j.SavePosition(ctx, pos))

	pos.Gales = 2
	pos.Amount = 96.8
	pos.Outcome = domain.OutcomeWin
	require.NoError(t, j.SavePosition(ctx, pos))

	got, err := j.GetPositions(ctx, opened.Add(-time.Hour), opened.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1, "same ID must not duplicate")
	assert.Equal(t, 2, got[0].Gales)
	assert.Equal(t, 96.8, got[0].Amount)
	assert.Equal(t, domain.OutcomeWin, got[0].Outcome)
}

func TestSQLiteJournal_PositionRangeFilter(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "in-range", "new"} {
		require.NoError(t, j.SavePosition(ctx, domain.Position{
			ID: id, BrokerID: id, Pair: "EURUSD", Direction: domain.DirectionCall,
			Amount: 20, OpenedAt: day.AddDate(0, 0, i), ExpiresIn: 5,
			Outcome: domain.OutcomeWin,
		}))
	}

	got, err := j.GetPositions(ctx, day.AddDate(0, 0, 1), day.AddDate(0, 0, 1).Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "in-range", got[0].ID)
}

func TestSQLiteJournal_DailyUpsert(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

	require.NoError(t, j.SaveDaily(ctx, domain.DailySummary{
		Date: day, StartBalance: 1000, EndBalance: 1050, Wins: 3, Losses: 1,
	}))
	require.NoError(t, j.SaveDaily(ctx, domain.DailySummary{
		Date: day, StartBalance: 1000, EndBalance: 1100, Wins: 5, Losses: 1,
		Gales: 2, SorosRuns: 1, Stopped: "win",
	}))
	require.NoError(t, j.SaveDaily(ctx, domain.DailySummary{
		Date: day.AddDate(0, 0, 1), StartBalance: 1100, EndBalance: 1080, Losses: 2,
	}))

	got, err := j.GetDailies(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2, "same day upserts, new day appends")
	assert.Equal(t, "2026-03-14", got[0].Date.Format("2006-01-02"))
	assert.Equal(t, 1100.0, got[0].EndBalance)
	assert.Equal(t, 5, got[0].Wins)
	assert.Equal(t, "win", got[0].Stopped)
	assert.Equal(t, "2026-03-15", got[1].Date.Format("2006-01-02"))
}
