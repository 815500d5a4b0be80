package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmoraes/galebot/internal/application/session"
	"github.com/dmoraes/galebot/internal/domain"
	"github.com/dmoraes/galebot/internal/ports"
)

const (
	defaultHorizon      = 9 * time.Hour
	defaultSettleMargin = time.Second
)

var (
	// ErrDuplicate marks a signal whose fingerprint is already pending.
	ErrDuplicate = errors.New("duplicate signal")

	// ErrHorizon marks a scheduled time too far away to be a real
	// signal (usually a misparsed clock time).
	ErrHorizon = errors.New("signal outside horizon")

	// ErrHalted marks a submission refused by the daily circuit breaker.
	ErrHalted = errors.New("trading halted for the day")
)

// Config holds the staking and risk parameters of the engine.
type Config struct {
	BaseFraction float64 // fraction of balance staked on a fresh order
	GaleRate     float64 // stake multiplier per gale
	MaxGales     int
	SorosHolding float64 // fraction of profit kept out of the rollover
	MaxSoros     int
	CycleLoss    bool
	MinStake     float64
	MaxStake     float64

	StopWinFraction  float64 // 0 disables
	StopLossFraction float64 // 0 disables
	SoftStop         bool    // halt today only instead of shutting down

	SettleMargin time.Duration // extra wait past expiry before checking
	Horizon      time.Duration // max distance for a scheduled signal
}

func (c *Config) setDefaults() {
	if c.Horizon <= 0 {
		c.Horizon = defaultHorizon
	}
	if c.SettleMargin <= 0 {
		c.SettleMargin = defaultSettleMargin
	}
}

// Engine is the trading orchestrator: it dedups and schedules incoming
// signals, resolves stakes through the staking book, places orders via
// the session guard, and spawns one settlement watcher per in-flight
// position. All shared state (positions, staking book, day breaker,
// order queue) is mutated only under mu; every settlement cascade is
// one atomic step.
type Engine struct {
	cfg      Config
	guard    *session.Guard
	journal  ports.Journal  // may be nil
	notifier ports.Notifier // may be nil
	stopCb   func(finalBalance float64)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	book         *StakingBook
	positions    *PositionLog
	breaker      *domain.DayBreaker
	queue        []domain.Signal // deferred fresh requests, FIFO
	// pending maps a signal fingerprint to its slot key while the
	// signal awaits execution, then to "" once it has run. Executed
	// entries are kept for the rest of the day so a reposted signal
	// cannot re-buy; awaiting entries survive the day reset.
	pending map[string]string
	slots        map[string]int  // clock minute -> fresh orders scheduled
	lastOrderDay string
	timers       *timerGroup
	fatal        error

	now func() time.Time // injected in tests
}

// New connects to the session (snapshotting the day-start balance) and
// returns a ready engine. stopCb is invoked with the final balance on
// a hard circuit-breaker stop or a fatal session failure.
func New(ctx context.Context, cfg Config, guard *session.Guard, journal ports.Journal, notifier ports.Notifier, stopCb func(float64)) (*Engine, error) {
	cfg.setDefaults()

	balance, err := guard.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: initial balance: %w", err)
	}
	slog.Info("engine: connected", "balance", fmt.Sprintf("%.2f", balance))

	ectx, cancel := context.WithCancel(ctx)
	e := &Engine{
		cfg:      cfg,
		guard:    guard,
		journal:  journal,
		notifier: notifier,
		stopCb:   stopCb,
		ctx:      ectx,
		cancel:   cancel,
		book: &StakingBook{
			BaseFraction: cfg.BaseFraction,
			GaleRate:     cfg.GaleRate,
			MaxGales:     cfg.MaxGales,
			SorosHolding: cfg.SorosHolding,
			MaxSoros:     cfg.MaxSoros,
			CycleLossOn:  cfg.CycleLoss,
			MinStake:     cfg.MinStake,
			MaxStake:     cfg.MaxStake,
		},
		positions: &PositionLog{},
		breaker: &domain.DayBreaker{
			InitialBalance:   balance,
			StopWinFraction:  cfg.StopWinFraction,
			StopLossFraction: cfg.StopLossFraction,
		},
		pending: make(map[string]string),
		slots:   make(map[string]int),
		timers:  newTimerGroup(),
		now:     time.Now,
	}
	return e, nil
}

// Submit routes one signal: dedup by fingerprint, defer to its start
// time if scheduled, then execute. Implements ports.SignalSink.
// Duplicate, out-of-horizon and halted-day drops are reported as
// ErrDuplicate/ErrHorizon/ErrHalted; none of them is a failure.
func (e *Engine) Submit(sig domain.Signal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fatal != nil {
		return e.fatal
	}

	now := e.now()
	fp := sig.Fingerprint(now)
	if _, dup := e.pending[fp]; dup {
		slog.Info("engine: duplicate signal dropped", "order", fp)
		return ErrDuplicate
	}
	slot := sig.SlotKey(now)
	e.pending[fp] = slot

	if sig.StartAt != nil {
		delay := sig.StartAt.NextOccurrence(now).Sub(now)
		if delay > e.cfg.Horizon {
			delete(e.pending, fp)
			slog.Info("engine: signal outside horizon dropped", "order", fp, "delay", delay)
			return ErrHorizon
		}
		if delay > 0 {
			e.slots[slot]++
			if !e.timers.After(delay, func() {
				e.mu.Lock()
				defer e.mu.Unlock()
				if err := e.executeLocked(sig, fp, false, 0, 0); err != nil {
					slog.Info("engine: scheduled signal dropped", "order", fp, "err", err)
				}
			}) {
				delete(e.pending, fp)
				e.releaseSlotLocked(slot)
				return ErrHalted
			}
			slog.Debug("engine: signal scheduled", "order", fp, "in", delay)
			return nil
		}
	}

	e.slots[slot]++
	return e.executeLocked(sig, fp, false, 0, 0)
}

// releaseSlotLocked returns a dropped signal's claim on its execution
// minute, so the remaining sharers stake the correct split.
func (e *Engine) releaseSlotLocked(slot string) {
	if n := e.slots[slot]; n > 1 {
		e.slots[slot] = n - 1
	} else {
		delete(e.slots, slot)
	}
}

// Err returns the fatal engine error, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatal
}

// Positions returns a snapshot of every position placed this run.
func (e *Engine) Positions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Position, 0, e.positions.Len())
	for _, p := range e.positions.All() {
		out = append(out, *p)
	}
	return out
}

// Close cancels pending timers, waits for in-flight watchers and shuts
// the session down.
func (e *Engine) Close() error {
	e.timers.CancelAll()
	e.cancel()
	e.wg.Wait()
	return e.guard.Close()
}

// executeLocked runs a signal that is due now: day rollover, halt and
// near-settlement checks, then the buy. Gale re-entries skip the queue
// deferral; they are part of an in-flight cascade.
func (e *Engine) executeLocked(sig domain.Signal, fp string, gale bool, posIndex int, explicit float64) error {
	now := e.now()
	if e.breaker.Halted(now) {
		slog.Info("engine: signal ignored, trading halted", "order", fp)
		if slot, ok := e.pending[fp]; ok && !gale {
			delete(e.pending, fp)
			e.releaseSlotLocked(slot)
		}
		return ErrHalted
	}
	today := now.Format("2006-01-02")
	if e.breaker.Stale(now) || (e.lastOrderDay != "" && e.lastOrderDay != today) {
		e.resetDayLocked()
	}
	e.lastOrderDay = today

	// The fingerprint stays in pending for the rest of the day: a late
	// duplicate of an already-executed order must not re-buy.
	if _, ok := e.pending[fp]; ok {
		e.pending[fp] = ""
	}

	if !gale && len(e.positions.NearSettlement(now)) > 0 {
		// A soros-eligible win on the almost-settled position should
		// set the next stake before new capital commits.
		e.queue = append(e.queue, sig)
		slog.Info("engine: order queued behind settling position", "pair", sig.Pair, "direction", sig.Direction)
		return nil
	}

	return e.buyLocked(sig, gale, posIndex, explicit)
}

// buyLocked resolves the stake and places the order. On success the
// position is recorded (or re-staked, for a gale) and a settlement
// watcher is spawned.
func (e *Engine) buyLocked(sig domain.Signal, gale bool, posIndex int, explicit float64) error {
	now := e.now()

	var balance float64
	if e.book.NeedsBalance(gale) {
		bal, err := e.guard.Balance(e.ctx)
		if err != nil {
			slog.Warn("engine: failed to enter position, balance unavailable", "pair", sig.Pair, "err", err)
			e.checkFatalLocked(err)
			return err
		}
		balance = bal
	}

	slot := e.slots[sig.SlotKey(now)]
	amount, funding := e.book.Resolve(gale, explicit, balance, slot)

	brokerID, err := e.guard.Buy(e.ctx, amount, sig.Pair, sig.Direction, sig.ExpiresIn)
	if err != nil {
		slog.Warn("engine: failed to enter position", "pair", sig.Pair, "err", err)
		e.checkFatalLocked(err)
		return err
	}

	var pos *domain.Position
	idx := posIndex
	if gale {
		pos = e.positions.At(posIndex)
		pos.BrokerID = brokerID
		pos.Amount = amount
		pos.OpenedAt = now
	} else {
		pos = &domain.Position{
			ID:          uuid.New().String(),
			BrokerID:    brokerID,
			Pair:        sig.Pair,
			Direction:   sig.Direction,
			Amount:      amount,
			OpenedAt:    now,
			ExpiresIn:   sig.ExpiresIn,
			CycleFunded: funding == FundCycle,
		}
		idx = e.positions.Append(pos)
	}

	var note string
	switch funding {
	case FundGale:
		note = fmt.Sprintf("GALE %d", pos.Gales)
	case FundSoros:
		note = fmt.Sprintf("SOROS %d", e.book.SorosCount)
		e.book.SorosPosition = pos.ID
	case FundCycle:
		note = "CYCLE"
	}

	slog.Info("engine: order placed",
		"pair", pos.Pair,
		"direction", pos.Direction,
		"amount", fmt.Sprintf("%.2f", amount),
		"expires_in", pos.ExpiresIn,
		"note", note,
	)
	if e.notifier != nil {
		e.notifier.OrderPlaced(e.ctx, *pos, note)
	}

	e.wg.Add(1)
	go e.watch(pos, idx)
	return nil
}

// watch is the settlement watcher: one per placed order. It sleeps
// until the option expires (plus the settlement margin), fetches the
// result through the guard, then drives the staking cascade as one
// atomic step.
func (e *Engine) watch(pos *domain.Position, idx int) {
	defer e.wg.Done()

	wait := pos.ExpiresAt().Add(e.cfg.SettleMargin).Sub(e.now())
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-e.ctx.Done():
			return
		}
	}

	st, err := e.guard.CheckResult(e.ctx, pos.BrokerID)
	if e.ctx.Err() != nil {
		return
	}
	e.settle(pos, idx, st, err)
}

// settle applies one settlement outcome and finishes the cycle:
// re-evaluate the day breaker, then drain the deferred-order queue.
// The gale re-entry issued here goes straight through buyLocked, so a
// drain can never run it twice.
func (e *Engine) settle(pos *domain.Position, idx int, st *domain.Settlement, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	balance := func() *float64 {
		bal, berr := e.guard.Balance(e.ctx)
		if berr != nil {
			slog.Warn("engine: balance unavailable during settlement", "err", berr)
			return nil
		}
		return &bal
	}

	switch {
	case err != nil || st == nil:
		slog.Warn("engine: failed to verify result, closing as unknown",
			"pair", pos.Pair, "order", pos.BrokerID, "err", err)
		pos.Closed = true
		pos.Outcome = domain.OutcomeUnknown
		e.book.OnUnknown()
		e.checkFatalLocked(err)

	case st.Result == domain.OutcomeLoss:
		if e.book.OnLoss(pos, balance) {
			slog.Info("engine: gale re-entry", "pair", pos.Pair, "gale", pos.Gales)
			sig := domain.Signal{Pair: pos.Pair, Direction: pos.Direction, ExpiresIn: pos.ExpiresIn}
			fp := sig.Fingerprint(e.now())
			if rerr := e.executeLocked(sig, fp, true, idx, pos.Amount*e.cfg.GaleRate); rerr != nil {
				slog.Warn("engine: gale re-entry failed, closing position", "pair", pos.Pair, "err", rerr)
				pos.Closed = true
				pos.Outcome = domain.OutcomeLoss
			}
		} else {
			pos.Closed = true
			pos.Outcome = domain.OutcomeLoss
			slog.Info("engine: LOSS", "pair", pos.Pair, "amount", fmt.Sprintf("%.2f", pos.Amount), "gales", pos.Gales)
		}

	default:
		pos.Closed = true
		pos.Outcome = domain.OutcomeWin
		slog.Info("engine: WIN", "pair", pos.Pair, "profit", fmt.Sprintf("%.2f", st.Profit), "gales", pos.Gales)
		e.book.OnWin(pos, st.Profit, balance)
	}

	if pos.Closed {
		if e.notifier != nil {
			e.notifier.OrderSettled(e.ctx, *pos)
		}
		if e.journal != nil {
			if jerr := e.journal.SavePosition(e.ctx, *pos); jerr != nil {
				slog.Warn("engine: journal write failed", "err", jerr)
			}
		}
	}

	if !e.checkStopLocked() {
		queue := e.queue
		e.queue = nil
		for _, sig := range queue {
			slog.Info("engine: running queued order", "pair", sig.Pair, "direction", sig.Direction)
			if qerr := e.buyLocked(sig, false, 0, 0); qerr != nil {
				slog.Warn("engine: queued order failed", "pair", sig.Pair, "err", qerr)
			}
		}
	}
}

// checkStopLocked re-evaluates the daily circuit breaker. A crossed
// threshold halts immediately when no positions remain open; otherwise
// the halt day is recorded and the stop actions run on the settlement
// that closes the last position. An unavailable balance defers the
// decision rather than stopping spuriously.
func (e *Engine) checkStopLocked() bool {
	balance, err := e.guard.Balance(e.ctx)
	if err != nil {
		slog.Warn("engine: cannot confirm stop, balance unavailable", "err", err)
		e.checkFatalLocked(err)
		return false
	}

	reason := e.breaker.Exceeded(balance)
	if reason == domain.StopNone {
		return false
	}

	now := e.now()
	e.breaker.Trip(now)
	if e.positions.OpenCount() > 0 {
		slog.Info("engine: stop threshold crossed, waiting for open positions", "reason", reason)
		return true
	}

	e.haltLocked(reason, balance)
	return true
}

// haltLocked performs the halt actions once no positions remain open:
// cancel scheduled timers, write the daily summary, and on a hard stop
// notify the shutdown callback and close the session.
func (e *Engine) haltLocked(reason domain.StopReason, balance float64) {
	slog.Info("engine: STOP reached", "reason", reason, "final_balance", fmt.Sprintf("%.2f", balance))

	e.timers.CancelAll()
	e.queue = nil

	if e.notifier != nil {
		e.notifier.TradingStopped(e.ctx, reason, balance)
	}
	if e.journal != nil {
		if err := e.journal.SaveDaily(e.ctx, e.dailySummaryLocked(balance, reason)); err != nil {
			slog.Warn("engine: daily summary write failed", "err", err)
		}
	}

	if !e.cfg.SoftStop && e.stopCb != nil {
		e.stopCb(balance)
	}
	if err := e.guard.Close(); err != nil {
		slog.Warn("engine: session close failed", "err", err)
	}
}

// resetDayLocked starts a fresh trading day: clear the halt and soros
// state, drop deferred orders, restart the session and re-snapshot the
// day-start balance.
func (e *Engine) resetDayLocked() {
	slog.Info("engine: new trading day, resetting")

	e.book.ResetSoros()
	e.queue = nil

	// Executed fingerprints expire with the day. Signals still waiting
	// on a scheduling timer carry over: their dedup entries and slot
	// claims survive, and the timers keep running.
	e.slots = make(map[string]int)
	for fp, slot := range e.pending {
		if slot == "" {
			delete(e.pending, fp)
			continue
		}
		e.slots[slot]++
	}
	if e.timers.Stopped() {
		e.timers = newTimerGroup()
	}

	if err := e.guard.Restart(e.ctx); err != nil {
		slog.Error("engine: session restart failed on day reset", "err", err)
		e.checkFatalLocked(err)
		return
	}
	balance, err := e.guard.Balance(e.ctx)
	if err != nil {
		slog.Warn("engine: balance unavailable on day reset, keeping previous snapshot", "err", err)
		e.breaker.HaltDay = ""
		return
	}
	e.breaker.Reset(balance)
	slog.Info("engine: day-start balance", "balance", fmt.Sprintf("%.2f", balance))
}

// checkFatalLocked escalates an unrecoverable session failure: no
// further trading can proceed safely, so surface it and stop.
func (e *Engine) checkFatalLocked(err error) {
	if err == nil || !errors.Is(err, session.ErrDown) || e.fatal != nil {
		return
	}
	slog.Error("engine: session unrecoverable, stopping", "err", err)
	e.fatal = err
	e.timers.CancelAll()
	if e.stopCb != nil {
		e.stopCb(0)
	}
}

// dailySummaryLocked aggregates today's closed positions.
func (e *Engine) dailySummaryLocked(balance float64, reason domain.StopReason) domain.DailySummary {
	d := domain.DailySummary{
		Date:         e.now(),
		StartBalance: e.breaker.InitialBalance,
		EndBalance:   balance,
		Stopped:      string(reason),
		SorosRuns:    e.book.SorosCount,
	}
	for _, p := range e.positions.All() {
		if !p.Closed {
			continue
		}
		switch p.Outcome {
		case domain.OutcomeWin:
			d.Wins++
		case domain.OutcomeLoss:
			d.Losses++
		case domain.OutcomeUnknown:
			d.Unknown++
		}
		d.Gales += p.Gales
	}
	return d
}
