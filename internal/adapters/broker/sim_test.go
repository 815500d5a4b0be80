package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmoraes/galebot/internal/domain"
)

func scripted(outcome domain.Outcome) func(string, domain.Direction) domain.Outcome {
	return func(string, domain.Direction) domain.Outcome { return outcome }
}

func TestSim_WinCreditsGrossReturn(t *testing.T) {
	s := NewSim(SimConfig{Balance: 1000, Payout: 0.8, Outcome: scripted(domain.OutcomeWin)})
	ctx := context.Background()

	id, err := s.Buy(ctx, 20, "EURUSD", domain.DirectionCall, 0)
	require.NoError(t, err)

	bal, _ := s.Balance(ctx)
	assert.Equal(t, 980.0, bal, "stake debited at placement")

	st, err := s.CheckResult(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, domain.OutcomeWin, st.Result)
	assert.Equal(t, 36.0, st.Profit) // 20 × (1 + 0.8)

	bal, _ = s.Balance(ctx)
	assert.Equal(t, 1016.0, bal)
}

func TestSim_LossKeepsStake(t *testing.T) {
	s := NewSim(SimConfig{Balance: 1000, Payout: 0.8, Outcome: scripted(domain.OutcomeLoss)})
	ctx := context.Background()

	id, err := s.Buy(ctx, 20, "EURUSD", domain.DirectionPut, 0)
	require.NoError(t, err)

	st, err := s.CheckResult(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, domain.OutcomeLoss, st.Result)
	assert.Equal(t, 0.0, st.Profit)

	bal, _ := s.Balance(ctx)
	assert.Equal(t, 980.0, bal)
}

func TestSim_UnknownOutcomeIsInconclusive(t *testing.T) {
	s := NewSim(SimConfig{Balance: 1000, Outcome: scripted(domain.OutcomeUnknown)})
	ctx := context.Background()

	id, err := s.Buy(ctx, 20, "EURUSD", domain.DirectionCall, 0)
	require.NoError(t, err)

	st, err := s.CheckResult(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestSim_RejectsBadOrders(t *testing.T) {
	s := NewSim(SimConfig{Balance: 100})
	ctx := context.Background()

	_, err := s.Buy(ctx, 0, "EURUSD", domain.DirectionCall, 5)
	assert.Error(t, err)
	_, err = s.Buy(ctx, 500, "EURUSD", domain.DirectionCall, 5)
	assert.Error(t, err, "stake above balance")
	_, err = s.CheckResult(ctx, "no-such-order")
	assert.Error(t, err)
}

func TestSim_CheckResultWaitsForExpiry(t *testing.T) {
	s := NewSim(SimConfig{Balance: 1000, Outcome: scripted(domain.OutcomeWin)})
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	id, err := s.Buy(ctx, 20, "EURUSD", domain.DirectionCall, 5)
	require.NoError(t, err)

	// Before expiry the check blocks; cancel to get control back.
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.CheckResult(cctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Past expiry it settles immediately.
	s.SetClock(func() time.Time { return base.Add(6 * time.Minute) })
	st, err := s.CheckResult(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, domain.OutcomeWin, st.Result)
}

func TestSim_SeededRandomIsDeterministic(t *testing.T) {
	run := func() []domain.Outcome {
		s := NewSim(SimConfig{Balance: 10000, WinRate: 0.5, Seed: 42})
		ctx := context.Background()
		var out []domain.Outcome
		for i := 0; i < 10; i++ {
			id, err := s.Buy(ctx, 10, "EURUSD", domain.DirectionCall, 0)
			require.NoError(t, err)
			st, err := s.CheckResult(ctx, id)
			require.NoError(t, err)
			out = append(out, st.Result)
		}
		return out
	}

	assert.Equal(t, run(), run())
}
