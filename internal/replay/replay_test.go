package replay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmoraes/galebot/internal/application/engine"
	"github.com/dmoraes/galebot/internal/domain"
)

func testConfig() Config {
	return Config{
		Balance: 1000,
		Payout:  0.8,
		Staking: engine.StakingBook{
			BaseFraction: 0.02,
			GaleRate:     2.2,
			MaxGales:     2,
			SorosHolding: 0.1,
			MaxSoros:     3,
			CycleLossOn:  true,
			MinStake:     1,
		},
	}
}

func TestRun_DirectWinThenSorosWin(t *testing.T) {
	history := `
# tarde de 14/03
EURUSD 10:00 CALL WIN
GBPJPY 10:05 PUT WIN
`
	report, err := Run(testConfig(), strings.NewReader(history))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Wins)
	assert.Equal(t, 0, report.Losses)
	require.Len(t, report.Trades, 2)

	// Fresh 20 wins +16; the rollover stakes 32.4 and wins +25.92.
	assert.InDelta(t, 16.0, report.Trades[0].Delta, 0.001)
	assert.InDelta(t, 25.92, report.Trades[1].Delta, 0.001)
	assert.InDelta(t, 1041.92, report.FinalBalance, 0.001)
}

func TestRun_LossLadderThenCycleRecovery(t *testing.T) {
	cfg := testConfig()
	cfg.Staking.MaxGales = 1
	cfg.Staking.MaxSoros = 0 // pure martingale

	history := `
EURUSD 10:00 CALL LOSS
GBPJPY 10:05 PUT WIN
`
	report, err := Run(cfg, strings.NewReader(history))
	require.NoError(t, err)

	require.Len(t, report.Trades, 2)
	assert.Equal(t, domain.OutcomeLoss, report.Trades[0].Result)

	// The ladder burns 20 + 44; the cycle carry of 64 rides the next
	// win and recovers it with interest.
	assert.InDelta(t, -64.0, report.Trades[0].Delta, 0.001)
	assert.InDelta(t, 51.2, report.Trades[1].Delta, 0.001) // 64 × 0.8
	assert.InDelta(t, 987.2, report.FinalBalance, 0.001)
}

func TestRun_WinAtGaleDepth(t *testing.T) {
	history := "EURUSD 10:00 CALL WIN G\n"
	report, err := Run(testConfig(), strings.NewReader(history))
	require.NoError(t, err)

	require.Len(t, report.Trades, 1)
	assert.Equal(t, domain.OutcomeWin, report.Trades[0].Result)
	assert.Equal(t, 1, report.Trades[0].Gales)

	// −20 −44, then 44 × 1.8 back.
	assert.InDelta(t, 15.2, report.Trades[0].Delta, 0.001)
	assert.InDelta(t, 1015.2, report.FinalBalance, 0.001)
}

func TestRun_WinDeeperThanLadderBecomesLoss(t *testing.T) {
	cfg := testConfig()
	cfg.Staking.MaxGales = 0
	cfg.Staking.CycleLossOn = false

	// The recorded win needed one gale; this config never re-enters,
	// so the session books a plain loss.
	report, err := Run(cfg, strings.NewReader("EURUSD 10:00 CALL WIN G\n"))
	require.NoError(t, err)

	require.Len(t, report.Trades, 1)
	assert.Equal(t, domain.OutcomeLoss, report.Trades[0].Result)
	assert.InDelta(t, 980.0, report.FinalBalance, 0.001)
}

func TestRun_SameMinuteSplitsBaseStake(t *testing.T) {
	cfg := testConfig()
	cfg.Staking.MaxSoros = 0

	history := `
EURUSD 10:00 CALL WIN
GBPJPY 10:00 PUT WIN
`
	report, err := Run(cfg, strings.NewReader(history))
	require.NoError(t, err)

	// Two fresh orders in the 10:00 slot split the base stake: 10 on
	// the first, 10.08 on the second (the first win already landed).
	assert.InDelta(t, 8.0, report.Trades[0].Delta, 0.001)
	assert.InDelta(t, 8.064, report.Trades[1].Delta, 0.001)
	assert.InDelta(t, 1016.064, report.FinalBalance, 0.001)
}

func TestParse_Errors(t *testing.T) {
	_, err := Run(testConfig(), strings.NewReader("EURUSD 10:00 CALL\n"))
	assert.Error(t, err, "missing result column")

	_, err = Run(testConfig(), strings.NewReader("EURUSD 10:00 SIDEWAYS WIN\n"))
	assert.Error(t, err, "unknown direction")

	_, err = Run(testConfig(), strings.NewReader("EURUSD 10:00 CALL DRAW\n"))
	assert.Error(t, err, "unknown result")
}
