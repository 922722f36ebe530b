package utils

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when no currency code is configured.
const DefaultCurrency = money.INR

// FormatMoney renders an amount with the currency's symbol and grouping, e.g. ₹1,250.50.
func FormatMoney(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	c := money.GetCurrency(currency)
	if c == nil {
		currency = DefaultCurrency
		c = money.GetCurrency(currency)
	}
	minor := amount.Shift(int32(c.Fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}
