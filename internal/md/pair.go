package md

import (
	"fmt"
	"strings"
)

// Pair identifies a traded instrument as base/quote currencies.
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// ParsePair accepts "BTC-USDT", "BTC/USDT" or "BTC_USDT".
func ParsePair(value string) (Pair, error) {
	raw := strings.ToUpper(strings.TrimSpace(value))
	for _, sep := range []string{"-", "/", "_"} {
		parts := strings.Split(raw, sep)
		if len(parts) != 2 {
			continue
		}
		if parts[0] == "" || parts[1] == "" {
			break
		}
		return Pair{Base: parts[0], Quote: parts[1]}, nil
	}
	return Pair{}, fmt.Errorf("invalid trading pair %q", value)
}

// MustParsePair is ParsePair for literals known to be valid.
func MustParsePair(value string) Pair {
	p, err := ParsePair(value)
	if err != nil {
		panic(err)
	}
	return p
}

// String is the canonical instrument id used as registry and storage key.
func (p Pair) String() string {
	return p.Base + "-" + p.Quote
}

// Symbol joins the currencies the way an exchange expects them.
func (p Pair) Symbol(sep string) string {
	return p.Base + sep + p.Quote
}

func (p Pair) IsZero() bool {
	return p.Base == "" && p.Quote == ""
}
