package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		amount string
		fee    string
		net    string
	}{
		{"1000", "50", "950"},
		{"500", "25", "475"},
		{"99.99", "5", "94.99"},
		{"0.10", "0.01", "0.09"}, // 0.005 rounds up
		{"1", "0.05", "0.95"},
	}
	for _, c := range cases {
		amount := decimal.RequireFromString(c.amount)
		fee, net := Split(amount)
		require.True(t, fee.Equal(decimal.RequireFromString(c.fee)),
			"fee of %s: got %s, want %s", c.amount, fee, c.fee)
		require.True(t, net.Equal(decimal.RequireFromString(c.net)),
			"net of %s: got %s, want %s", c.amount, net, c.net)
		require.True(t, fee.Add(net).Equal(amount), "fee + net must equal amount")
	}
}

func TestSplitZero(t *testing.T) {
	fee, net := Split(decimal.Zero)
	require.True(t, fee.IsZero())
	require.True(t, net.IsZero())
}
