package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 30, 0, time.UTC)
}

func TestClockTime_NextOccurrence_Later(t *testing.T) {
	c := ClockTime{Hour: 14, Minute: 30}
	got := c.NextOccurrence(at(10, 0))
	assert.Equal(t, time.Date(2026, 3, 14, 14, 30, 0, 0, time.UTC), got)
}

func TestClockTime_NextOccurrence_PastWrapsToTomorrow(t *testing.T) {
	c := ClockTime{Hour: 9, Minute: 15}
	got := c.NextOccurrence(at(10, 0))
	assert.Equal(t, time.Date(2026, 3, 15, 9, 15, 0, 0, time.UTC), got)
}

func TestClockTime_NextOccurrence_SameMinute(t *testing.T) {
	// 10:00:30 against a 10:00 signal: still today, the minute has not
	// fully passed.
	c := ClockTime{Hour: 10, Minute: 0}
	got := c.NextOccurrence(at(10, 0))
	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), got)
}

func TestSignal_Fingerprint(t *testing.T) {
	sig := Signal{
		Pair:      "EURUSD",
		Direction: DirectionCall,
		StartAt:   &ClockTime{Hour: 14, Minute: 5},
		ExpiresIn: 5,
	}
	assert.Equal(t, "EURUSD;call;14:05;5", sig.Fingerprint(at(10, 0)))
}

func TestSignal_Fingerprint_ImmediateUsesCurrentMinute(t *testing.T) {
	sig := Signal{Pair: "GBPJPY", Direction: DirectionPut, ExpiresIn: 1}
	assert.Equal(t, "GBPJPY;put;10:07;1", sig.Fingerprint(at(10, 7)))
}

func TestSignal_SlotKey(t *testing.T) {
	scheduled := Signal{Pair: "EURUSD", StartAt: &ClockTime{Hour: 14, Minute: 30}}
	assert.Equal(t, "14:30", scheduled.SlotKey(at(10, 0)))

	immediate := Signal{Pair: "EURUSD"}
	assert.Equal(t, "10:00", immediate.SlotKey(at(10, 0)))
}
