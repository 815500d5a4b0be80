package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/dmoraes/galebot/internal/domain"
	"github.com/dmoraes/galebot/internal/ports"
)

var (
	// ErrFault marks a call that failed after exhausting its retries.
	// The session itself survived; the caller decides what the failed
	// operation means.
	ErrFault = errors.New("session fault")

	// ErrDown marks a session that could not be restarted. No further
	// trading can proceed safely.
	ErrDown = errors.New("session down")
)

// Config tunes the guard's retry and restart policy.
type Config struct {
	// Retries is the number of extra attempts per call, each preceded
	// by a session refresh.
	Retries int

	// RestartThreshold is the number of consecutive failed calls that
	// forces a full session restart.
	RestartThreshold int

	// CallsPerSecond paces calls into the session. The driven platform
	// throttles rapid automation.
	CallsPerSecond float64
}

func (c *Config) setDefaults() {
	if c.Retries <= 0 {
		c.Retries = 1
	}
	if c.RestartThreshold <= 0 {
		c.RestartThreshold = 2
	}
	if c.CallsPerSecond <= 0 {
		c.CallsPerSecond = 1
	}
}

// Guard serializes access to the exclusive broker session. Only one
// logical operation touches the session at a time; concurrent callers
// block until it is free. Every call gets bounded retries with a
// session refresh between attempts, and repeated failures across calls
// force a full session restart through the factory.
type Guard struct {
	mu       sync.Mutex
	cfg      Config
	factory  ports.SessionFactory
	sess     ports.BrokerSession
	limiter  *rate.Limiter
	failures int // consecutive failed calls, reset on any success
}

// New opens the initial session through the factory.
func New(ctx context.Context, cfg Config, factory ports.SessionFactory) (*Guard, error) {
	cfg.setDefaults()
	sess, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}
	return &Guard{
		cfg:     cfg,
		factory: factory,
		sess:    sess,
		limiter: rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), 1),
	}, nil
}

// Buy places an order through the session.
func (g *Guard) Buy(ctx context.Context, amount float64, pair string, dir domain.Direction, expiresIn int) (string, error) {
	var id string
	err := g.call(ctx, "buy", func(s ports.BrokerSession) error {
		var err error
		id, err = s.Buy(ctx, amount, pair, dir, expiresIn)
		return err
	})
	return id, err
}

// CheckResult fetches the settlement of an order. This blocks inside
// the session until the order has settled. A nil settlement with nil
// error means the result is inconclusive.
func (g *Guard) CheckResult(ctx context.Context, orderID string) (*domain.Settlement, error) {
	var st *domain.Settlement
	err := g.call(ctx, "check_result", func(s ports.BrokerSession) error {
		var err error
		st, err = s.CheckResult(ctx, orderID)
		return err
	})
	return st, err
}

// Balance returns the current account balance.
func (g *Guard) Balance(ctx context.Context) (float64, error) {
	var bal float64
	err := g.call(ctx, "balance", func(s ports.BrokerSession) error {
		var err error
		bal, err = s.Balance(ctx)
		return err
	})
	return bal, err
}

// Restart discards the current session and opens a fresh one.
func (g *Guard) Restart(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.restartLocked(ctx)
}

// Close shuts the session down.
func (g *Guard) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sess == nil {
		return nil
	}
	err := g.sess.Close()
	g.sess = nil
	return err
}

// call runs one logical operation under the session lock: rate-limit,
// attempt, refresh-and-retry up to cfg.Retries times, then fail the
// call with a diagnostic snapshot. Consecutive failed calls trip a
// full restart.
func (g *Guard) call(ctx context.Context, name string, fn func(ports.BrokerSession) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sess == nil {
		return fmt.Errorf("%s: %w", name, ErrDown)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	var last error
	for attempt := 0; attempt <= g.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := g.sess.Refresh(ctx); err != nil {
				slog.Warn("session: refresh failed", "call", name, "err", err)
			}
		}
		if err := fn(g.sess); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", name, ctx.Err())
			}
			last = err
			slog.Debug("session: call failed", "call", name, "attempt", attempt+1, "err", err)
			continue
		}
		g.failures = 0
		return nil
	}

	slog.Error("session: call exhausted retries",
		"call", name,
		"attempts", g.cfg.Retries+1,
		"snapshot", g.sess.Snapshot(),
		"err", last,
	)

	g.failures++
	if g.failures >= g.cfg.RestartThreshold {
		if err := g.restartLocked(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", name, ErrFault, last)
}

func (g *Guard) restartLocked(ctx context.Context) error {
	slog.Info("session: restarting")
	if g.sess != nil {
		if err := g.sess.Close(); err != nil {
			slog.Warn("session: close before restart failed", "err", err)
		}
	}
	sess, err := g.factory(ctx)
	if err != nil {
		g.sess = nil
		return fmt.Errorf("%w: %w", ErrDown, err)
	}
	g.sess = sess
	g.failures = 0
	return nil
}
