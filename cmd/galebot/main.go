package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmoraes/galebot/config"
	"github.com/dmoraes/galebot/internal/adapters/broker"
	"github.com/dmoraes/galebot/internal/adapters/notify"
	"github.com/dmoraes/galebot/internal/adapters/storage"
	"github.com/dmoraes/galebot/internal/adapters/telegram"
	"github.com/dmoraes/galebot/internal/application/engine"
	"github.com/dmoraes/galebot/internal/application/session"
	"github.com/dmoraes/galebot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	replayFile := flag.String("replay", "", "replay a signal history file and exit")
	demo := flag.Bool("demo", false, "force demo mode (simulated broker)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *demo {
		cfg.DemoMode = true
	}
	setupLogger(cfg.Log)

	if *replayFile != "" {
		runReplay(cfg, *replayFile)
		return
	}

	slog.Info("galebot starting",
		"config", *configPath,
		"demo", cfg.DemoMode,
		"max_gales", cfg.Strategy.MaxGales,
		"max_soros", cfg.Strategy.MaxSoros,
		"soft_stop", cfg.Strategy.SoftStop,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	factory, err := sessionFactory(cfg)
	if err != nil {
		slog.Error("no broker session available", "err", err)
		os.Exit(1)
	}

	guard, err := session.New(ctx, session.Config{
		Retries:          cfg.Session.Retries,
		RestartThreshold: cfg.Session.RestartThreshold,
		CallsPerSecond:   cfg.Session.CallsPerSecond,
	}, factory)
	if err != nil {
		slog.Error("failed to open broker session", "err", err)
		os.Exit(1)
	}

	journal, err := storage.NewSQLiteJournal(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open journal", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer journal.Close()

	console := notify.NewConsole()

	eng, err := engine.New(ctx, engine.Config{
		BaseFraction:     cfg.Strategy.BaseStakeFraction,
		GaleRate:         cfg.Strategy.GaleRate,
		MaxGales:         cfg.Strategy.MaxGales,
		SorosHolding:     cfg.Strategy.SorosHolding,
		MaxSoros:         cfg.Strategy.MaxSoros,
		CycleLoss:        cfg.Strategy.CycleLossEnabled,
		MinStake:         cfg.Strategy.MinStake,
		MaxStake:         cfg.Strategy.MaxStake,
		StopWinFraction:  cfg.Strategy.StopWinFraction,
		StopLossFraction: cfg.Strategy.StopLossFraction,
		SoftStop:         cfg.Strategy.SoftStop,
		SettleMargin:     cfg.SettleMargin(),
	}, guard, journal, console, func(finalBalance float64) {
		slog.Info("hard stop, shutting down", "final_balance", fmt.Sprintf("%.2f", finalBalance))
		cancel()
	})
	if err != nil {
		slog.Error("failed to start engine", "err", err)
		os.Exit(1)
	}

	source, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		Channels:    channelRules(cfg),
		IdleTimeout: cfg.IdleTimeout(),
		TestMode:    cfg.Telegram.TestMode,
	})
	if err != nil {
		slog.Error("failed to connect signal source", "err", err)
		os.Exit(1)
	}
	defer source.Close()

	if err := source.Run(ctx, eng); err != nil {
		slog.Error("signal source exited with error", "err", err)
	}

	if err := eng.Close(); err != nil {
		slog.Warn("engine close", "err", err)
	}
	console.PrintReport(eng.Positions())

	if dailies, err := journal.GetDailies(ctx); err == nil {
		console.PrintDailies(dailies)
	}

	slog.Info("galebot stopped cleanly")
}

// sessionFactory picks the broker session implementation. Only the
// simulated session ships with the bot; a live platform driver plugs
// in here.
func sessionFactory(cfg *config.Config) (ports.SessionFactory, error) {
	if !cfg.DemoMode {
		return nil, fmt.Errorf("live trading requires a broker session adapter; run with -demo")
	}
	return func(ctx context.Context) (ports.BrokerSession, error) {
		return broker.NewSim(broker.SimConfig{Balance: 1000, Payout: 0.8}), nil
	}, nil
}

func channelRules(cfg *config.Config) []telegram.ChannelRule {
	rules := make([]telegram.ChannelRule, 0, len(cfg.Telegram.Channels))
	for _, ch := range cfg.Telegram.Channels {
		rules = append(rules, telegram.ChannelRule{ChatID: ch.ChatID, Pattern: ch.Pattern})
	}
	return rules
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
