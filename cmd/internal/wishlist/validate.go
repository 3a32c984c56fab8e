package wishlist

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const (
	MaxDisplayNameLen   = 100
	MaxWishlistTitleLen = 255
	MaxDescriptionLen   = 2000
	MaxItemTitleLen     = 500
	MaxURLLen           = 2048

	// MaxAmountCents bounds both contribution amounts and item prices.
	MaxAmountCents int64 = 100_000_000

	DefaultCurrency = "USD"
)

// NormalizeDisplayName trims s and checks it is 1..MaxDisplayNameLen runes.
func NormalizeDisplayName(s string) (string, bool) {
	return boundedText(s, MaxDisplayNameLen)
}

// NormalizeWishlistTitle trims s and checks it is 1..MaxWishlistTitleLen runes.
func NormalizeWishlistTitle(s string) (string, bool) {
	return boundedText(s, MaxWishlistTitleLen)
}

// NormalizeItemTitle trims s and checks it is 1..MaxItemTitleLen runes.
func NormalizeItemTitle(s string) (string, bool) {
	return boundedText(s, MaxItemTitleLen)
}

// NormalizeDescription trims s; empty is allowed.
func NormalizeDescription(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxDescriptionLen {
		return "", false
	}
	return s, true
}

// NormalizeCurrency upper-cases a 1..3 letter code; empty yields DefaultCurrency.
func NormalizeCurrency(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultCurrency, true
	}
	if len(s) > 3 {
		return "", false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return s, true
}

// NormalizeURL trims an optional url; blank becomes nil.
func NormalizeURL(p *string) (*string, bool) {
	if p == nil {
		return nil, true
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil, true
	}
	if len(s) > MaxURLLen {
		return nil, false
	}
	return &s, true
}

// ValidPrice reports whether an optional price is within 0..MaxAmountCents.
func ValidPrice(p *int64) bool {
	return p == nil || (*p >= 0 && *p <= MaxAmountCents)
}

// ValidAmount reports whether a contribution amount is within (0, MaxAmountCents].
func ValidAmount(amount int64) bool {
	return amount > 0 && amount <= MaxAmountCents
}

// ParseAmount decodes a raw JSON amount. Anything that is not a whole number
// (strings, fractions, overflow) is ErrInvalidAmount, as is an out-of-range value.
func ParseAmount(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, opErr("contribute", ErrInvalidAmount, "amount required")
	}
	// json.Number would also accept "100" as a quoted literal.
	if raw[0] == '"' {
		return 0, opErr("contribute", ErrInvalidAmount, "amount must be an integer")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, opErr("contribute", ErrInvalidAmount, "amount must be an integer")
	}
	v, err := n.Int64()
	if err != nil {
		return 0, opErr("contribute", ErrInvalidAmount, "amount must be an integer")
	}
	if !ValidAmount(v) {
		return 0, opErr("contribute", ErrInvalidAmount, "amount out of range")
	}
	return v, nil
}

func boundedText(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 || n > max {
		return "", false
	}
	return s, true
}
