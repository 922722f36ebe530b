package services

import (
	"context"
	"testing"

	"github.com/irfndi/catalyst-ai-go/internal/gate"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentLoader_Load(t *testing.T) {
	prices := &fakePrices{quotes: map[string]decimal.Decimal{"ONGC.NS": dec("101.25")}}
	bars := &fakeBars{bars: map[string][]models.Bar{
		"ONGC.NS": flatBars(30, 100, 50000),
		"INFY.NS": flatBars(30, 1500, 20000),
	}}
	l := NewInstrumentLoader(prices, bars, gate.DefaultPolicy(), ".NS", 0)

	inst, warnings := l.Load(context.Background(), "ONGC", "")
	assert.Empty(t, warnings)
	assert.Equal(t, "ONGC", inst.Symbol)
	assert.True(t, inst.LastPrice.Equal(dec("101.25")))
	assert.True(t, inst.AvgDailyVolume.Equal(decimal.NewFromInt(50000)), inst.AvgDailyVolume.String())
	assert.True(t, inst.ATR.IsPositive())

	inst, warnings = l.Load(context.Background(), "INFY", "")
	assert.Empty(t, warnings)
	assert.True(t, inst.LastPrice.Equal(decimal.NewFromInt(1500)), "falls back to last close")
}

func TestInstrumentLoader_BarFailureIsAWarning(t *testing.T) {
	l := NewInstrumentLoader(&fakePrices{errs: map[string]error{"TCS.NS": errBoom}}, &fakeBars{err: errBoom}, gate.DefaultPolicy(), ".NS", 30)

	inst, warnings := l.Load(context.Background(), "TCS", "")
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "price for TCS.NS")
	assert.Contains(t, warnings[1], "daily bars for TCS.NS")
	assert.True(t, inst.AvgDailyVolume.IsZero())
	assert.Equal(t, "TCS.NS", l.Ticker("tcs"))
}
