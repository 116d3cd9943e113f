package shared

import "github.com/shopspring/decimal"

// Column scales used by the ledger schema. Inputs finer than these are
// rejected instead of being rounded silently by the database.
const (
	MoneyScale    int32 = 2
	QuantityScale int32 = 4
	RateScale     int32 = 4
)

// FitsScale reports whether d has no more than places fraction digits.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// RoundMoney rounds half to even at MoneyScale.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(MoneyScale)
}
