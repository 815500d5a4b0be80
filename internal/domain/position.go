package domain

import "time"

// Outcome is the settlement result of a position.
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeUnknown Outcome = "unknown"
)

// nearSettlementPct is how far through its expiry window a position has
// to be before fresh submissions are deferred behind it (e.g. 4m39s
// into a 5m expiry). A soros-eligible win on the almost-settled
// position should determine the next stake before new capital commits.
const nearSettlementPct = 0.93

// Position is one placed trade, from buy to settlement. A gale
// re-stake reuses the same Position (Gales and Amount are updated in
// place); positions are never removed, Closed flips exactly once.
type Position struct {
	ID          string // local tracking UUID
	BrokerID    string // session-assigned order ID
	Pair        string
	Direction   Direction
	Gales       int
	Amount      float64 // current stake, mutated only by gale re-stakes
	OpenedAt    time.Time
	ExpiresIn   int // minutes
	Closed      bool
	CycleFunded bool // stake came from a cycle-loss carry
	Outcome     Outcome
}

// ExpiresAt is the instant the option settles.
func (p *Position) ExpiresAt() time.Time {
	return p.OpenedAt.Add(time.Duration(p.ExpiresIn) * time.Minute)
}

// NearSettlement reports whether the position is open and past 93% of
// its expiry window.
func (p *Position) NearSettlement(now time.Time) bool {
	if p.Closed {
		return false
	}
	window := float64(p.ExpiresIn) * 60 * nearSettlementPct
	return now.Sub(p.OpenedAt).Seconds() >= window
}

// Settlement is the outcome of a placed order as reported by the
// broker session. Profit is the gross return credited on a win (stake
// plus payout); zero on a loss.
type Settlement struct {
	Result Outcome
	Profit float64
}

// DailySummary is the journal record for one trading day.
type DailySummary struct {
	Date         time.Time
	StartBalance float64
	EndBalance   float64
	Wins         int
	Losses       int
	Unknown      int
	Gales        int
	SorosRuns    int
	Stopped      string // "", "win" or "loss"
}
