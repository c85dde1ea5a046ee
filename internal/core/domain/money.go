package domain

import "github.com/shopspring/decimal"

const moneyScale = 2

// RoundMoney rounds half-to-even to 2 decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(moneyScale)
}

func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// SumMoney adds already rounded amounts and rounds the result once.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return RoundMoney(total)
}

// FormatMoney renders an amount with exactly 2 fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixedBank(moneyScale)
}
