package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/dmoraes/galebot/config"
	"github.com/dmoraes/galebot/internal/application/engine"
	"github.com/dmoraes/galebot/internal/replay"
)

// runReplay plays a recorded signal history through the configured
// staking rules and prints the resulting trade ledger.
func runReplay(cfg *config.Config, path string) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("failed to open history file", "err", err, "path", path)
		os.Exit(1)
	}
	defer f.Close()

	report, err := replay.Run(replay.Config{
		Balance: 1000,
		Payout:  0.8,
		Staking: engine.StakingBook{
			BaseFraction: cfg.Strategy.BaseStakeFraction,
			GaleRate:     cfg.Strategy.GaleRate,
			MaxGales:     cfg.Strategy.MaxGales,
			SorosHolding: cfg.Strategy.SorosHolding,
			MaxSoros:     cfg.Strategy.MaxSoros,
			CycleLossOn:  cfg.Strategy.CycleLossEnabled,
			MinStake:     cfg.Strategy.MinStake,
			MaxStake:     cfg.Strategy.MaxStake,
		},
	}, f)
	if err != nil {
		slog.Error("replay failed", "err", err, "path", path)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Pair", "Time", "Dir", "Result", "Gales", "Delta")
	for _, t := range report.Trades {
		table.Append(
			t.Pair,
			t.Time,
			string(t.Direction),
			string(t.Result),
			fmt.Sprintf("%d", t.Gales),
			fmt.Sprintf("%+.2f", t.Delta),
		)
	}
	table.Render()

	fmt.Printf("\ntrades: %d  wins: %d  losses: %d\n",
		len(report.Trades), report.Wins, report.Losses)
	fmt.Printf("balance: %.2f -> %.2f (%+.2f)\n",
		report.InitialBalance, report.FinalBalance,
		report.FinalBalance-report.InitialBalance)
}
