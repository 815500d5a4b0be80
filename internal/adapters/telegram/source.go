// Package telegram implements ports.SignalSource on top of the
// Telegram Bot API: it watches configured channels, filters posts by
// per-channel patterns and parses them into trading signals.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmoraes/galebot/internal/ports"
)

// ChannelRule subscribes one channel. Pattern filters which posts are
// treated as signals; empty matches everything.
type ChannelRule struct {
	ChatID  int64
	Pattern string
}

// Config for the Telegram source.
type Config struct {
	Token    string
	Channels []ChannelRule

	// IdleTimeout closes the source when no signal arrives for this
	// long; zero disables.
	IdleTimeout time.Duration

	// TestMode accepts posts from any chat regardless of rules.
	TestMode bool
}

// reOTCHeader marks the multi-signal OTC list messages.
var reOTCHeader = regexp.MustCompile(`OTC - \d{2}/(\w{3}|\d{2})/\d{4}`)

type rule struct {
	chatID  int64
	pattern *regexp.Regexp
}

// Source streams signals from Telegram channel posts.
type Source struct {
	bot   *tgbotapi.BotAPI
	cfg   Config
	rules []rule
}

// New authenticates the bot and compiles the channel rules.
func New(cfg Config) (*Source, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}

	rules := make([]rule, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		r := rule{chatID: ch.ChatID}
		if ch.Pattern != "" {
			re, err := regexp.Compile(ch.Pattern)
			if err != nil {
				return nil, fmt.Errorf("telegram: channel %d pattern: %w", ch.ChatID, err)
			}
			r.pattern = re
		}
		rules = append(rules, r)
	}

	slog.Info("telegram: connected", "account", bot.Self.UserName, "channels", len(rules))
	return &Source{bot: bot, cfg: cfg, rules: rules}, nil
}

// Run consumes updates until the context is cancelled or the idle
// timeout fires. Parse failures drop the message and keep going.
func (s *Source) Run(ctx context.Context, sink ports.SignalSink) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := s.bot.GetUpdatesChan(u)

	var idle *time.Timer
	var idleC <-chan time.Time
	if s.cfg.IdleTimeout > 0 {
		idle = time.NewTimer(s.cfg.IdleTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-idleC:
			slog.Info("telegram: idle timeout, disconnecting", "after", s.cfg.IdleTimeout)
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.ChannelPost
			if msg == nil {
				msg = update.Message
			}
			if msg == nil || msg.Text == "" {
				continue
			}
			if !s.accepts(msg.Chat.ID, msg.Text) {
				continue
			}
			if s.dispatch(msg.Text, sink) && idle != nil {
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(s.cfg.IdleTimeout)
			}
		}
	}
}

// Close stops the update stream.
func (s *Source) Close() error {
	s.bot.StopReceivingUpdates()
	return nil
}

func (s *Source) accepts(chatID int64, text string) bool {
	if s.cfg.TestMode {
		return true
	}
	for _, r := range s.rules {
		if r.chatID != chatID {
			continue
		}
		if r.pattern == nil || r.pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// dispatch parses the message and submits its signals. Returns whether
// at least one signal was submitted.
func (s *Source) dispatch(text string, sink ports.SignalSink) bool {
	if reOTCHeader.MatchString(text) {
		signals := ParseSignalList(text)
		for _, sig := range signals {
			if err := sink.Submit(sig); err != nil {
				slog.Debug("telegram: list signal dropped", "pair", sig.Pair, "err", err)
			}
		}
		return len(signals) > 0
	}

	sig, err := ParseSignal(text)
	if err != nil {
		slog.Debug("telegram: unparseable message dropped", "err", err)
		return false
	}
	if err := sink.Submit(sig); err != nil {
		slog.Debug("telegram: signal dropped", "pair", sig.Pair, "err", err)
		return false
	}
	return true
}
