// Package notify implements ports.Notifier for the terminal:
// timestamped event lines while trading, a tablewriter report at the
// end of the run.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/dmoraes/galebot/internal/domain"
)

// Console writes trading events to a terminal.
type Console struct {
	out io.Writer
	now func() time.Time
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, now: time.Now}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, now: time.Now}
}

// OrderPlaced prints one line per buy, prefixed with the staking
// context when the stake didn't come from the base formula.
func (c *Console) OrderPlaced(_ context.Context, pos domain.Position, note string) {
	prefix := ""
	if note != "" {
		prefix = note + ": "
	}
	fmt.Fprintf(c.out, "[%s] %s%s of $%.2f %s (expires %dm)\n",
		c.now().Format("15:04:05"), prefix, strings.ToUpper(string(pos.Direction)), pos.Amount, pos.Pair, pos.ExpiresIn)
}

// OrderSettled prints the terminal outcome of a position.
func (c *Console) OrderSettled(_ context.Context, pos domain.Position) {
	label := strings.ToUpper(string(pos.Outcome))
	gales := ""
	if pos.Gales > 0 {
		gales = " " + strings.Repeat("G", pos.Gales)
	}
	fmt.Fprintf(c.out, "[%s] %s for %s $%.2f%s\n",
		c.now().Format("15:04:05"), label, pos.Pair, pos.Amount, gales)
}

// TradingStopped announces the daily halt.
func (c *Console) TradingStopped(_ context.Context, reason domain.StopReason, finalBalance float64) {
	fmt.Fprintf(c.out, "[%s] STOP %s reached — final balance: $%.2f\n",
		c.now().Format("15:04:05"), strings.ToUpper(string(reason)), finalBalance)
}

// PrintReport renders the end-of-run position table and totals.
func (c *Console) PrintReport(positions []domain.Position) {
	if len(positions) == 0 {
		fmt.Fprintln(c.out, "no positions this run")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Pair", "Dir", "Stake", "Gales", "Result")

	wins, losses, unknown := 0, 0, 0
	for _, p := range positions {
		switch p.Outcome {
		case domain.OutcomeWin:
			wins++
		case domain.OutcomeLoss:
			losses++
		default:
			unknown++
		}
		table.Append(
			p.OpenedAt.Format("15:04"),
			p.Pair,
			strings.ToUpper(string(p.Direction)),
			fmt.Sprintf("$%.2f", p.Amount),
			fmt.Sprintf("%d", p.Gales),
			strings.ToUpper(string(p.Outcome)),
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "\nWINS: %d  LOSSES: %d", wins, losses)
	if unknown > 0 {
		fmt.Fprintf(c.out, "  UNKNOWN: %d", unknown)
	}
	fmt.Fprintln(c.out)
}

// PrintDailies renders the per-day summary table from the journal.
func (c *Console) PrintDailies(dailies []domain.DailySummary) {
	if len(dailies) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Day", "Start", "End", "W", "L", "?", "Gales", "Soros", "Stop")

	for _, d := range dailies {
		table.Append(
			d.Date.Format("2006-01-02"),
			fmt.Sprintf("$%.2f", d.StartBalance),
			fmt.Sprintf("$%.2f", d.EndBalance),
			fmt.Sprintf("%d", d.Wins),
			fmt.Sprintf("%d", d.Losses),
			fmt.Sprintf("%d", d.Unknown),
			fmt.Sprintf("%d", d.Gales),
			fmt.Sprintf("%d", d.SorosRuns),
			d.Stopped,
		)
	}
	table.Render()
}
