// Package market looks up prices and daily bars and knows when the local
// exchange is trading.
package market

import (
	"context"
	"errors"
	"strings"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
)

// ErrPriceNotFound means the ticker is unknown to the source or has no quote.
// Callers skip the item rather than fail.
var ErrPriceNotFound = errors.New("price not found")

type PriceSource interface {
	CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	Name() string
}

// BarSource returns daily bars in chronological order.
type BarSource interface {
	DailyBars(ctx context.Context, ticker string, days int) ([]models.Bar, error)
}

// LocalTicker appends the exchange suffix (".NS") unless the symbol already has one.
func LocalTicker(symbol, suffix string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || suffix == "" || strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + suffix
}
