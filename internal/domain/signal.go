package domain

import (
	"fmt"
	"time"
)

// Direction is the side of a binary option.
type Direction string

const (
	DirectionCall Direction = "call"
	DirectionPut  Direction = "put"
)

// ClockTime is a wall-clock HH:MM within a day, as published by signal
// channels. The date is implied: the next occurrence of that time.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// NextOccurrence returns the first instant at or after now whose wall
// clock reads c, truncated to the minute.
func (c ClockTime) NextOccurrence(now time.Time) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if at.Before(now.Truncate(time.Minute)) {
		at = at.Add(24 * time.Hour)
	}
	return at
}

// Signal is an external instruction to enter a position. StartAt nil
// means execute immediately.
type Signal struct {
	Pair      string
	Direction Direction
	StartAt   *ClockTime
	ExpiresIn int // minutes
}

// Fingerprint identifies a signal for deduplication: two signals with
// the same pair, direction, execution minute and expiry are the same
// order. Immediate signals use the current minute.
func (s Signal) Fingerprint(now time.Time) string {
	at := s.StartAt
	if at == nil {
		at = &ClockTime{Hour: now.Hour(), Minute: now.Minute()}
	}
	return fmt.Sprintf("%s;%s;%s;%d", s.Pair, s.Direction, at, s.ExpiresIn)
}

// SlotKey is the clock minute the signal executes in. Fresh signals
// sharing a slot split the base stake between them.
func (s Signal) SlotKey(now time.Time) string {
	if s.StartAt != nil {
		return s.StartAt.String()
	}
	return fmt.Sprintf("%02d:%02d", now.Hour(), now.Minute())
}
