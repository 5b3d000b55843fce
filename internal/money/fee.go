package money

import "github.com/shopspring/decimal"

// ServiceFeeRate is the platform's cut of every milestone payout (5%).
var ServiceFeeRate = decimal.NewFromFloat(0.05)

// Split computes the platform fee and the developer's net payout for a
// milestone amount. The fee is rounded half-up to 2 decimal places; the net
// is the exact remainder so fee + net always equals amount.
func Split(amount decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(ServiceFeeRate).Round(2)
	net = amount.Sub(fee)
	return fee, net
}
