package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is an open position in the portfolio.
type Holding struct {
	Symbol       string          `json:"symbol" db:"symbol"`
	Quantity     int64           `json:"quantity" db:"quantity"`
	AvgPrice     decimal.Decimal `json:"avg_price" db:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	OpenedAt     time.Time       `json:"opened_at" db:"opened_at"`
}

// MarketValue uses the current price when known and the average cost otherwise.
func (h Holding) MarketValue() decimal.Decimal {
	price := h.CurrentPrice
	if !price.IsPositive() {
		price = h.AvgPrice
	}
	return price.Mul(decimal.NewFromInt(h.Quantity))
}

// Trade is an executed transaction.
type Trade struct {
	ID         int64           `json:"id" db:"id"`
	Symbol     string          `json:"symbol" db:"symbol"`
	Side       TradeAction     `json:"side" db:"side"`
	Quantity   int64           `json:"quantity" db:"quantity"`
	Price      decimal.Decimal `json:"price" db:"price"`
	ExecutedAt time.Time       `json:"executed_at" db:"executed_at"`
}

// PortfolioSnapshot is the read-only view of the book the gate evaluates against.
type PortfolioSnapshot struct {
	Holdings     []Holding       `json:"holdings"`
	Cash         decimal.Decimal `json:"cash"`
	RecentTrades []Trade         `json:"recent_trades"`
	AsOf         time.Time       `json:"as_of"`
}

// HoldingsValue is the market value of all open positions.
func (p PortfolioSnapshot) HoldingsValue() decimal.Decimal {
	total := decimal.Zero
	for _, h := range p.Holdings {
		if h.Quantity > 0 {
			total = total.Add(h.MarketValue())
		}
	}
	return total
}

// BookCapital is holdings market value plus cash.
func (p PortfolioSnapshot) BookCapital() decimal.Decimal {
	return p.HoldingsValue().Add(p.Cash)
}

// Holding returns the open position for symbol, if any.
func (p PortfolioSnapshot) Holding(symbol string) (Holding, bool) {
	for _, h := range p.Holdings {
		if h.Quantity > 0 && strings.EqualFold(h.Symbol, symbol) {
			return h, true
		}
	}
	return Holding{}, false
}

// OpenPositions counts holdings with a positive quantity.
func (p PortfolioSnapshot) OpenPositions() int {
	n := 0
	for _, h := range p.Holdings {
		if h.Quantity > 0 {
			n++
		}
	}
	return n
}

// LastExit returns the most recent SELL of symbol.
func (p PortfolioSnapshot) LastExit(symbol string) (Trade, bool) {
	var last Trade
	found := false
	for _, t := range p.RecentTrades {
		if t.Side != ActionSell || !strings.EqualFold(t.Symbol, symbol) {
			continue
		}
		if !found || t.ExecutedAt.After(last.ExecutedAt) {
			last = t
			found = true
		}
	}
	return last, found
}

// Bar is one daily OHLCV candle.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Instrument carries the market facts the gate needs about a symbol.
type Instrument struct {
	Symbol         string          `json:"symbol"`
	LastPrice      decimal.Decimal `json:"last_price"`
	AvgDailyVolume decimal.Decimal `json:"avg_daily_volume"`
	ATR            decimal.Decimal `json:"atr"`
}
