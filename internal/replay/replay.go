// Package replay runs a recorded signal history through the staking
// rules and reports the balance a live session would have ended with.
// History lines are whitespace-separated:
//
//	EURUSD 14:30 COMPRA WIN
//	GBPJPY 14:30 VENDA LOSS G
//
// The trailing G-run is how deep into the gale ladder the recorded
// outcome happened.
package replay

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/dmoraes/galebot/internal/application/engine"
	"github.com/dmoraes/galebot/internal/domain"
)

// Config tunes the simulation.
type Config struct {
	Balance float64 // starting balance
	Payout  float64 // payout rate on a win

	Staking engine.StakingBook // staking parameters; state fields start zero
}

// Trade is the simulated result of one history line.
type Trade struct {
	Pair      string
	Time      string
	Direction domain.Direction
	Result    domain.Outcome
	Gales     int
	Delta     float64 // balance change including the gale ladder
}

// Report is the outcome of a full replay.
type Report struct {
	InitialBalance float64
	FinalBalance   float64
	Wins           int
	Losses         int
	Trades         []Trade
}

type record struct {
	pair   string
	clock  string
	dir    domain.Direction
	result domain.Outcome
	gales  int
}

// Run replays the history from r.
func Run(cfg Config, r io.Reader) (*Report, error) {
	records, err := parse(r)
	if err != nil {
		return nil, err
	}

	book := cfg.Staking
	balance := cfg.Balance
	report := &Report{InitialBalance: balance}

	// Count fresh orders per clock minute first: simultaneous signals
	// split the base stake.
	slots := make(map[string]int)
	for _, rec := range records {
		slots[rec.clock]++
	}

	for _, rec := range records {
		before := balance
		outcome := simulate(&book, rec, &balance, cfg.Payout, slots[rec.clock])
		if outcome == domain.OutcomeWin {
			report.Wins++
		} else {
			report.Losses++
		}
		report.Trades = append(report.Trades, Trade{
			Pair:      rec.pair,
			Time:      rec.clock,
			Direction: rec.dir,
			Result:    outcome,
			Gales:     min(rec.gales, book.MaxGales),
			Delta:     balance - before,
		})
	}

	report.FinalBalance = balance
	return report, nil
}

// simulate plays one recorded signal through the staking book: stake,
// walk the gale ladder to the recorded depth, settle.
func simulate(book *engine.StakingBook, rec record, balance *float64, payout float64, slot int) domain.Outcome {
	amount, funding := book.Resolve(false, 0, *balance, slot)
	pos := &domain.Position{
		ID:          uuid.New().String(),
		Pair:        rec.pair,
		Direction:   rec.dir,
		Amount:      amount,
		CycleFunded: funding == engine.FundCycle,
	}
	if funding == engine.FundSoros {
		book.SorosPosition = pos.ID
	}
	*balance -= amount

	// A win recorded deeper in the ladder than this config allows is a
	// loss: the bot would have stopped re-entering before it happened.
	winnable := rec.result == domain.OutcomeWin && rec.gales <= book.MaxGales

	bal := func() *float64 { b := *balance; return &b }
	for {
		if winnable && pos.Gales == rec.gales {
			profit := pos.Amount * (1 + payout)
			*balance += profit
			book.OnWin(pos, profit, bal)
			return domain.OutcomeWin
		}
		if !book.OnLoss(pos, bal) {
			return domain.OutcomeLoss
		}
		pos.Amount = book.Normalize(pos.Amount * book.GaleRate)
		*balance -= pos.Amount
	}
}

func parse(r io.Reader) ([]record, error) {
	var records []record
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 4 {
			return nil, fmt.Errorf("replay: line %d: expected PAIR HH:MM DIRECTION RESULT [G...]", line)
		}

		rec := record{pair: fields[0], clock: fields[1]}
		switch strings.ToUpper(fields[2]) {
		case "COMPRA", "CALL":
			rec.dir = domain.DirectionCall
		case "VENDA", "PUT":
			rec.dir = domain.DirectionPut
		default:
			return nil, fmt.Errorf("replay: line %d: unknown direction %q", line, fields[2])
		}
		switch strings.ToUpper(fields[3]) {
		case "WIN":
			rec.result = domain.OutcomeWin
		case "LOSS":
			rec.result = domain.OutcomeLoss
		default:
			return nil, fmt.Errorf("replay: line %d: unknown result %q", line, fields[3])
		}
		if len(fields) > 4 {
			rec.gales = strings.Count(strings.ToUpper(fields[4]), "G")
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("replay: read history: %w", err)
	}
	return records, nil
}
