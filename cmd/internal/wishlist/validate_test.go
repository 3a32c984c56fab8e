package wishlist

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	ok := map[string]int64{
		"1":         1,
		" 2500 ":    2500,
		"100000000": MaxAmountCents,
	}
	for raw, want := range ok {
		got, err := ParseAmount(json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "0", "-1", "100000001", `"100"`, "1.5", "1e3", "null", "true", "99999999999999999999"} {
		_, err := ParseAmount(json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrInvalidAmount, raw)
	}
}

func TestNormalizeDisplayName(t *testing.T) {
	got, ok := NormalizeDisplayName("  Bob  ")
	assert.True(t, ok)
	assert.Equal(t, "Bob", got)

	_, ok = NormalizeDisplayName("   ")
	assert.False(t, ok)

	_, ok = NormalizeDisplayName(strings.Repeat("é", MaxDisplayNameLen))
	assert.True(t, ok, "length counts runes")
	_, ok = NormalizeDisplayName(strings.Repeat("x", MaxDisplayNameLen+1))
	assert.False(t, ok)
}

func TestNormalizeCurrency(t *testing.T) {
	for in, want := range map[string]string{"": "USD", "eur": "EUR", " gbp ": "GBP", "X": "X"} {
		got, ok := NormalizeCurrency(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"EURO", "U$D", "12"} {
		_, ok := NormalizeCurrency(bad)
		assert.False(t, ok, bad)
	}
}

func TestNormalizeURL(t *testing.T) {
	got, ok := NormalizeURL(ptr("   "))
	assert.True(t, ok)
	assert.Nil(t, got)

	got, ok = NormalizeURL(ptr(" https://example.com/x "))
	require.True(t, ok)
	assert.Equal(t, "https://example.com/x", *got)

	_, ok = NormalizeURL(ptr(strings.Repeat("a", MaxURLLen+1)))
	assert.False(t, ok)
}

func TestValidPrice(t *testing.T) {
	assert.True(t, ValidPrice(nil))
	assert.True(t, ValidPrice(ptr(int64(0))))
	assert.True(t, ValidPrice(ptr(MaxAmountCents)))
	assert.False(t, ValidPrice(ptr(int64(-1))))
	assert.False(t, ValidPrice(ptr(MaxAmountCents+1)))
}
