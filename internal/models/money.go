package models

import "github.com/shopspring/decimal"

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// RoundMoney rounds to two decimal places, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinorUnits converts an amount into the smallest currency unit (kobo, cents).
func MinorUnits(d decimal.Decimal) int64 {
	return RoundMoney(d).Shift(2).IntPart()
}
