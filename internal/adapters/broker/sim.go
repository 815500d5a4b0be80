// Package broker provides the simulated broker session used for demo
// mode and tests. It implements ports.BrokerSession against an
// in-memory account instead of driving the real trading platform.
package broker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmoraes/galebot/internal/domain"
)

// SimConfig tunes the simulated account.
type SimConfig struct {
	Balance float64 // starting balance
	Payout  float64 // payout rate on a win, e.g. 0.8
	WinRate float64 // probability a random order wins

	// Outcome overrides the random coin flip when set; used by tests
	// to script results.
	Outcome func(pair string, dir domain.Direction) domain.Outcome

	// Seed controls the random source; 0 seeds from the clock.
	Seed int64
}

type simOrder struct {
	pair      string
	dir       domain.Direction
	amount    float64
	openedAt  time.Time
	expiresIn int
	outcome   domain.Outcome
}

// Sim is an in-memory broker session. Like the real platform session
// it assumes serialized access; the guard provides that.
type Sim struct {
	mu      sync.Mutex
	cfg     SimConfig
	balance float64
	orders  map[string]*simOrder
	rng     *rand.Rand
	clock   func() time.Time
}

// NewSim opens a simulated session.
func NewSim(cfg SimConfig) *Sim {
	if cfg.Payout <= 0 {
		cfg.Payout = 0.8
	}
	if cfg.WinRate <= 0 {
		cfg.WinRate = 0.5
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sim{
		cfg:     cfg,
		balance: cfg.Balance,
		orders:  make(map[string]*simOrder),
		rng:     rand.New(rand.NewSource(seed)),
		clock:   time.Now,
	}
}

// Buy debits the stake and opens a simulated order. The outcome is
// decided at placement but only revealed once the order expires.
func (s *Sim) Buy(_ context.Context, amount float64, pair string, dir domain.Direction, expiresIn int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount <= 0 {
		return "", fmt.Errorf("sim: invalid amount %.2f", amount)
	}
	if amount > s.balance {
		return "", fmt.Errorf("sim: insufficient balance %.2f for stake %.2f", s.balance, amount)
	}

	outcome := domain.OutcomeLoss
	if s.cfg.Outcome != nil {
		outcome = s.cfg.Outcome(pair, dir)
	} else if s.rng.Float64() < s.cfg.WinRate {
		outcome = domain.OutcomeWin
	}

	s.balance -= amount
	id := uuid.New().String()
	s.orders[id] = &simOrder{
		pair:      pair,
		dir:       dir,
		amount:    amount,
		openedAt:  s.clock(),
		expiresIn: expiresIn,
		outcome:   outcome,
	}
	return id, nil
}

// CheckResult blocks until the order's expiry has passed, then settles
// it: a win credits stake plus payout and reports the gross return as
// profit.
func (s *Sim) CheckResult(ctx context.Context, orderID string) (*domain.Settlement, error) {
	s.mu.Lock()
	ord, ok := s.orders[orderID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("sim: unknown order %s", orderID)
	}

	expiry := ord.openedAt.Add(time.Duration(ord.expiresIn) * time.Minute)
	if wait := expiry.Sub(s.clock()); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ord.outcome == domain.OutcomeUnknown {
		return nil, nil
	}

	st := &domain.Settlement{Result: ord.outcome}
	if ord.outcome == domain.OutcomeWin {
		st.Profit = ord.amount * (1 + s.cfg.Payout)
		s.balance += st.Profit
	}
	return st, nil
}

// Balance returns the simulated account balance.
func (s *Sim) Balance(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

// Refresh is a no-op for the simulator.
func (s *Sim) Refresh(_ context.Context) error { return nil }

// Snapshot describes the account state for diagnostics.
func (s *Sim) Snapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("sim session: balance=%.2f open_orders=%d", s.balance, len(s.orders))
}

// Close discards the session.
func (s *Sim) Close() error { return nil }

// SetClock replaces the time source; used by tests.
func (s *Sim) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}
