package engine

import (
	"math"

	"github.com/dmoraes/galebot/internal/domain"
)

// Funding says where the stake for an order came from.
type Funding int

const (
	FundFresh Funding = iota // balance × base fraction
	FundSoros                // rolled-over profit from a prior win
	FundCycle                // cycle-loss carry after an exhausted ladder
	FundGale                 // previous stake × gale rate
)

// StakingBook owns the gale/soros/cycle-loss staking state. It is not
// safe for concurrent use: the engine mutates it only under its own
// serialization lock, one settlement cascade at a time.
type StakingBook struct {
	BaseFraction float64
	GaleRate     float64
	MaxGales     int
	SorosHolding float64
	MaxSoros     int
	CycleLossOn  bool
	MinStake     float64
	MaxStake     float64

	// NextSoros is the pre-computed stake for the next fresh order,
	// funded by a prior direct win. StartBalance is the balance right
	// before that win, kept to size a cycle-loss carry if the rollover
	// eventually fails.
	NextSoros    *float64
	StartBalance *float64
	SorosCount   int

	// PendingSoros is armed by a direct win and cleared when the
	// soros-funded order (tracked by SorosPosition once placed)
	// reaches a terminal outcome.
	PendingSoros  bool
	SorosPosition string

	// CycleCarry is the carry-forward stake that recovers an exhausted
	// ladder's net loss on the very next fresh order.
	CycleCarry *float64
}

// NeedsBalance reports whether resolving the next stake requires the
// current account balance.
func (b *StakingBook) NeedsBalance(gale bool) bool {
	if gale {
		return false
	}
	return b.NextSoros == nil && b.CycleCarry == nil
}

// Resolve computes the stake for the next order. Precedence: an armed
// soros amount, then an armed cycle-loss carry, then the explicit gale
// amount, then balance × base fraction split across the orders sharing
// the same scheduled minute. The result is always normalized.
func (b *StakingBook) Resolve(gale bool, explicit, balance float64, slotOrders int) (float64, Funding) {
	switch {
	case !gale && b.NextSoros != nil:
		amount := *b.NextSoros
		b.NextSoros = nil
		return b.Normalize(amount), FundSoros
	case !gale && b.CycleCarry != nil:
		amount := *b.CycleCarry
		b.CycleCarry = nil
		return b.Normalize(amount), FundCycle
	case gale:
		return b.Normalize(explicit), FundGale
	default:
		if slotOrders < 1 {
			slotOrders = 1
		}
		return b.Normalize(balance * b.BaseFraction / float64(slotOrders)), FundFresh
	}
}

// OnWin applies a terminal win to the staking state. A direct win
// (zero gales, not cycle-funded) below the soros cap arms the next
// soros stake; past the cap, soros state resets. balance fetches the
// account balance after the win settled, nil when unavailable: arming
// is then skipped for this cycle rather than guessed.
func (b *StakingBook) OnWin(pos *domain.Position, profit float64, balance func() *float64) {
	if b.PendingSoros {
		// Another position settling mid-cycle must not disturb the
		// soros bookkeeping; only the soros order's own resolution
		// re-enters the win rules.
		if b.SorosPosition != pos.ID {
			return
		}
		b.clearPendingFor(pos)
	}

	if pos.Gales == 0 && !pos.CycleFunded && b.SorosCount < b.MaxSoros {
		after := balance()
		if after == nil {
			return
		}
		amount := b.Normalize(profit * (1 - b.SorosHolding))
		start := *after - (profit - pos.Amount)
		b.NextSoros = &amount
		b.SorosCount++
		b.PendingSoros = true
		b.StartBalance = &start
	} else if b.SorosCount >= b.MaxSoros {
		b.ResetSoros()
	}
}

// OnLoss applies a loss. When the ladder has room and no soros run is
// in the way (no run at all, or the losing order is itself the pending
// soros order), the position re-enters with stake × gale rate: Gales
// is incremented and true is returned, the caller re-submits. Otherwise
// the position closes permanently and a cycle-loss carry is armed.
func (b *StakingBook) OnLoss(pos *domain.Position, balance func() *float64) bool {
	if pos.Gales < b.MaxGales && b.MaxGales >= 1 && (b.SorosCount == 0 || b.PendingSoros) {
		pos.Gales++
		if !b.PendingSoros {
			b.ResetSoros()
		}
		return true
	}

	b.clearPendingFor(pos)
	b.armCycleLoss(pos, balance)
	if !b.PendingSoros {
		b.ResetSoros()
	}
	return false
}

// OnUnknown applies an inconclusive settlement: the cascade must not
// continue on a guessed outcome, so all soros state resets.
func (b *StakingBook) OnUnknown() {
	b.ResetSoros()
}

// ResetSoros clears the whole soros cycle.
func (b *StakingBook) ResetSoros() {
	b.NextSoros = nil
	b.StartBalance = nil
	b.SorosCount = 0
	b.PendingSoros = false
	b.SorosPosition = ""
}

// Normalize clamps a raw stake into [MinStake, MaxStake] and rounds it
// to two decimal places. Platform limits apply regardless of which
// formula produced the amount.
func (b *StakingBook) Normalize(amount float64) float64 {
	amount = math.Round(amount*100) / 100
	if b.MinStake > 0 && amount < b.MinStake {
		amount = b.MinStake
	}
	if b.MaxStake > 0 && amount > b.MaxStake {
		amount = b.MaxStake
	}
	return amount
}

// armCycleLoss arms the carry that lets the next fresh order recover
// the ladder's net loss in one step. With a recorded soros start
// balance the carry is the net deficit since the cycle armed;
// otherwise it is rebuilt from the final stake back down the ladder:
// sum of stake / rate^(MaxGales-i) for i in 0..MaxGales.
func (b *StakingBook) armCycleLoss(pos *domain.Position, balance func() *float64) {
	if b.CycleCarry != nil || !b.CycleLossOn {
		return
	}

	var carry float64
	if b.StartBalance != nil {
		bal := balance()
		if bal == nil {
			return
		}
		carry = *b.StartBalance - *bal
	} else {
		for i := 0; i <= b.MaxGales; i++ {
			carry += pos.Amount / math.Pow(b.GaleRate, float64(b.MaxGales-i))
		}
	}
	carry = b.Normalize(carry)
	b.CycleCarry = &carry
}

// clearPendingFor clears the pending-soros flag when pos is the
// soros-funded order reaching a terminal outcome.
func (b *StakingBook) clearPendingFor(pos *domain.Position) {
	if b.PendingSoros && b.SorosPosition == pos.ID {
		b.PendingSoros = false
		b.SorosPosition = ""
	}
}
