package engine

import (
	"time"

	"github.com/dmoraes/galebot/internal/domain"
)

// PositionLog is the append-only record of every position placed this
// session. Gale re-stakes address their position by index; nothing is
// ever removed, closure is a one-way flag flip. Not safe for
// concurrent use: the engine accesses it under its serialization lock.
type PositionLog struct {
	list []*domain.Position
}

// Append records a new position and returns its index.
func (l *PositionLog) Append(pos *domain.Position) int {
	l.list = append(l.list, pos)
	return len(l.list) - 1
}

// At returns the position at index i.
func (l *PositionLog) At(i int) *domain.Position {
	return l.list[i]
}

// Len returns the total number of positions ever placed.
func (l *PositionLog) Len() int {
	return len(l.list)
}

// Open returns all positions not yet closed.
func (l *PositionLog) Open() []*domain.Position {
	var open []*domain.Position
	for _, p := range l.list {
		if !p.Closed {
			open = append(open, p)
		}
	}
	return open
}

// OpenCount returns how many positions are still open.
func (l *PositionLog) OpenCount() int {
	n := 0
	for _, p := range l.list {
		if !p.Closed {
			n++
		}
	}
	return n
}

// NearSettlement returns the open positions past 93% of their expiry
// window.
func (l *PositionLog) NearSettlement(now time.Time) []*domain.Position {
	var near []*domain.Position
	for _, p := range l.list {
		if p.NearSettlement(now) {
			near = append(near, p)
		}
	}
	return near
}

// All returns every position, open and closed, in placement order.
func (l *PositionLog) All() []*domain.Position {
	return l.list
}
