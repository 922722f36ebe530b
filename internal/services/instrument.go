package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/irfndi/catalyst-ai-go/internal/gate"
	"github.com/irfndi/catalyst-ai-go/internal/market"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
)

// InstrumentLoader gathers the market facts the gate sizes against.
type InstrumentLoader struct {
	prices  market.PriceSource
	bars    market.BarSource
	policy  gate.Policy
	suffix  string
	barDays int
}

func NewInstrumentLoader(prices market.PriceSource, bars market.BarSource, policy gate.Policy, localSuffix string, barDays int) *InstrumentLoader {
	if barDays <= 0 {
		barDays = 60
	}
	return &InstrumentLoader{prices: prices, bars: bars, policy: policy, suffix: localSuffix, barDays: barDays}
}

// Ticker is the local exchange ticker for symbol.
func (l *InstrumentLoader) Ticker(symbol string) string {
	return market.LocalTicker(symbol, l.suffix)
}

// Price returns zero and no error when the source has no quote for ticker.
func (l *InstrumentLoader) Price(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if ticker == "" || l.prices == nil {
		return decimal.Zero, nil
	}
	price, err := l.prices.CurrentPrice(ctx, ticker)
	if errors.Is(err, market.ErrPriceNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("price for %s unavailable: %w", ticker, err)
	}
	return price, nil
}

// Load never fails outright. Without bars the instrument has no average
// volume and the gate refuses to size a BUY, so problems come back as warnings.
func (l *InstrumentLoader) Load(ctx context.Context, symbol, ticker string) (models.Instrument, []string) {
	if ticker == "" {
		ticker = l.Ticker(symbol)
	}
	inst := models.Instrument{Symbol: symbol}
	var warnings []string

	price, err := l.Price(ctx, ticker)
	if err != nil {
		warnings = append(warnings, err.Error())
	}
	inst.LastPrice = price

	if l.bars == nil {
		return inst, warnings
	}
	bars, err := l.bars.DailyBars(ctx, ticker, l.barDays)
	if err != nil {
		return inst, append(warnings, fmt.Sprintf("daily bars for %s unavailable: %v", ticker, err))
	}

	ind := l.policy.ComputeIndicators(bars)
	inst.ATR = ind.ATR
	inst.AvgDailyVolume = ind.ADV
	if !inst.LastPrice.IsPositive() {
		inst.LastPrice = ind.Last
	}
	return inst, warnings
}
