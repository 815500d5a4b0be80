package domain

import "time"

// StopReason says which daily threshold was crossed.
type StopReason string

const (
	StopNone StopReason = ""
	StopWin  StopReason = "win"
	StopLoss StopReason = "loss"
)

// DayBreaker enforces the daily stop-win/stop-loss circuit. Thresholds
// are fractions of the balance snapshot taken at day start; a zero
// fraction disables that side.
//
// A trip while positions are still open only records the halt day:
// submissions are blocked from then on, but the halt actions run on
// the settlement that leaves zero open positions.
type DayBreaker struct {
	InitialBalance   float64
	StopWinFraction  float64
	StopLossFraction float64

	HaltDay string // civil date "2006-01-02", empty = not halted
}

// Exceeded reports which threshold the current balance crosses, if any.
func (b *DayBreaker) Exceeded(balance float64) StopReason {
	if b.StopWinFraction > 0 && balance-b.InitialBalance >= b.InitialBalance*b.StopWinFraction {
		return StopWin
	}
	if b.StopLossFraction > 0 && b.InitialBalance-balance >= b.InitialBalance*b.StopLossFraction {
		return StopLoss
	}
	return StopNone
}

// Trip records today as the halt day. Submissions are refused until the
// next calendar day (or an explicit Reset).
func (b *DayBreaker) Trip(now time.Time) {
	b.HaltDay = civilDay(now)
}

// Halted reports whether trading is halted for the day containing now.
func (b *DayBreaker) Halted(now time.Time) bool {
	return b.HaltDay != "" && b.HaltDay == civilDay(now)
}

// Stale reports whether a recorded halt belongs to a previous day and
// the breaker should be reset.
func (b *DayBreaker) Stale(now time.Time) bool {
	return b.HaltDay != "" && b.HaltDay != civilDay(now)
}

// Reset clears the halt and re-snapshots the day-start balance.
func (b *DayBreaker) Reset(balance float64) {
	b.HaltDay = ""
	b.InitialBalance = balance
}

func civilDay(t time.Time) string {
	return t.Format("2006-01-02")
}
