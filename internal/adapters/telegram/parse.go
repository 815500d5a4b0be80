package telegram

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmoraes/galebot/internal/domain"
)

// Signal channels publish several message dialects; the parser tries
// them in order of specificity. Examples seen in the wild:
//
//	Moeda: EURUSD
//	Sinal - [COMPRA]
//	Timeframe M5
//	⏰ 14:30h 🇧🇷
//
//	EURUSD;COMPRA;14:30
//
//	GBP/JPY 15:00 PUT
const defaultExpiry = 5 // minutes

var (
	rePairField = regexp.MustCompile(`Moeda: (\w{6}|\w{3}/\w{3})`)
	rePairSemi  = regexp.MustCompile(`(\w{6});`)
	rePairSlash = regexp.MustCompile(`(\w{3}/\w{3})`)

	reActionSemi  = regexp.MustCompile(`;(COMPRA|VENDA)`)
	reActionSinal = regexp.MustCompile(`Sinal - .(COMPRA|VENDA).`)
	reActionEn    = regexp.MustCompile(`(?i)(PUT|CALL)`)

	reClock = regexp.MustCompile(`(\d{2}):(\d{2})`)

	reTimeframe = regexp.MustCompile(`Timeframe M(\d)`)
	reExpiry    = regexp.MustCompile(`Expiração M(\d)`)
)

var actionMap = map[string]domain.Direction{
	"COMPRA": domain.DirectionCall,
	"VENDA":  domain.DirectionPut,
	"CALL":   domain.DirectionCall,
	"PUT":    domain.DirectionPut,
}

// ParseSignal extracts one trading signal from a channel message.
func ParseSignal(text string) (domain.Signal, error) {
	pair, err := parsePair(text)
	if err != nil {
		return domain.Signal{}, err
	}

	dir, err := parseDirection(text)
	if err != nil {
		return domain.Signal{}, err
	}

	sig := domain.Signal{
		Pair:      pair,
		Direction: dir,
		StartAt:   parseClock(text),
		ExpiresIn: parseExpiry(text),
	}
	return sig, nil
}

// ParseSignalList extracts the signals of a multi-line OTC list
// message, one per line. Lines that don't parse are skipped.
func ParseSignalList(text string) []domain.Signal {
	var signals []domain.Signal
	for _, line := range strings.Split(text, "\n") {
		sig, err := ParseSignal(line)
		if err != nil || sig.StartAt == nil {
			continue
		}
		signals = append(signals, sig)
	}
	return signals
}

func parsePair(text string) (string, error) {
	for _, re := range []*regexp.Regexp{rePairField, rePairSemi, rePairSlash} {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ReplaceAll(m[1], "/", ""), nil
		}
	}
	return "", fmt.Errorf("telegram: no pair in message")
}

func parseDirection(text string) (domain.Direction, error) {
	for _, re := range []*regexp.Regexp{reActionSemi, reActionSinal, reActionEn} {
		if m := re.FindStringSubmatch(text); m != nil {
			return actionMap[strings.ToUpper(m[1])], nil
		}
	}
	return "", fmt.Errorf("telegram: no direction in message")
}

func parseClock(text string) *domain.ClockTime {
	m := reClock.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return nil
	}
	return &domain.ClockTime{Hour: hour, Minute: minute}
}

func parseExpiry(text string) int {
	for _, re := range []*regexp.Regexp{reTimeframe, reExpiry} {
		if m := re.FindStringSubmatch(text); m != nil {
			tf, _ := strconv.Atoi(m[1])
			return tf
		}
	}
	return defaultExpiry
}
