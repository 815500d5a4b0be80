package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmoraes/galebot/internal/domain"
)

func testConsole() (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)
	c.now = func() time.Time {
		return time.Date(2026, 3, 14, 14, 35, 10, 0, time.UTC)
	}
	return c, &buf
}

func TestConsole_OrderPlaced(t *testing.T) {
	c, buf := testConsole()
	ctx := context.Background()

	c.OrderPlaced(ctx, domain.Position{
		Pair: "EURUSD", Direction: domain.DirectionCall, Amount: 20, ExpiresIn: 5,
	}, "")
	assert.Equal(t, "[14:35:10] CALL of $20.00 EURUSD (expires 5m)\n", buf.String())

	buf.Reset()
	c.OrderPlaced(ctx, domain.Position{
		Pair: "GBPJPY", Direction: domain.DirectionPut, Amount: 32.4, ExpiresIn: 5,
	}, "SOROS 1")
	assert.Equal(t, "[14:35:10] SOROS 1: PUT of $32.40 GBPJPY (expires 5m)\n", buf.String())
}

func TestConsole_OrderSettled(t *testing.T) {
	c, buf := testConsole()

	c.OrderSettled(context.Background(), domain.Position{
		Pair: "EURUSD", Amount: 96.8, Gales: 2, Outcome: domain.OutcomeLoss,
	})
	assert.Equal(t, "[14:35:10] LOSS for EURUSD $96.80 GG\n", buf.String())
}

func TestConsole_TradingStopped(t *testing.T) {
	c, buf := testConsole()

	c.TradingStopped(context.Background(), domain.StopWin, 1105.50)
	assert.Contains(t, buf.String(), "STOP WIN reached")
	assert.Contains(t, buf.String(), "$1105.50")
}

func TestConsole_PrintReport(t *testing.T) {
	c, buf := testConsole()

	c.PrintReport([]domain.Position{
		{Pair: "EURUSD", Direction: domain.DirectionCall, Amount: 20,
			OpenedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
			Closed:   true, Outcome: domain.OutcomeWin},
		{Pair: "GBPJPY", Direction: domain.DirectionPut, Amount: 44, Gales: 1,
			OpenedAt: time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC),
			Closed:   true, Outcome: domain.OutcomeLoss},
	})

	out := buf.String()
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "GBPJPY")
	assert.Contains(t, out, "WIN")
	assert.Contains(t, out, "LOSS")
	assert.Contains(t, out, "WINS: 1  LOSSES: 1")
}
