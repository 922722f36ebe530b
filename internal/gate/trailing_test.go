package gate

import (
	"testing"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialExit(t *testing.T) {
	p := DefaultPolicy()

	ec := p.InitialExit(d(100), d(90), d(2), now)
	assert.Equal(t, models.PhaseWide, ec.Phase)
	assert.True(t, ec.StopPrice.Equal(d(94)), ec.StopPrice.String())
	assert.True(t, ec.HardStop.Equal(d(90)))
	assert.True(t, ec.HighWater.Equal(d(100)))

	wide := p.InitialExit(d(100), d(95), d(5), now)
	assert.True(t, wide.StopPrice.Equal(d(95)), "stop never below the hard stop")
}

func TestAdvanceExit_PhasesMoveForward(t *testing.T) {
	p := DefaultPolicy()
	entry := d(100)
	ec := *p.InitialExit(entry, d(90), d(2), now)

	ec = p.AdvanceExit(ec, entry, MarketView{Price: d(102), ATR: d(2), SMA: d(99), RSI: 55})
	assert.Equal(t, models.PhaseWide, ec.Phase)
	assert.True(t, ec.StopPrice.Equal(d(96)), ec.StopPrice.String())

	ec = p.AdvanceExit(ec, entry, MarketView{Price: d(103), ATR: d(2), SMA: d(99.5), RSI: 60})
	assert.Equal(t, models.PhaseMovingAverage, ec.Phase)
	assert.True(t, ec.StopPrice.Equal(d(99.5)), ec.StopPrice.String())

	ec = p.AdvanceExit(ec, entry, MarketView{Price: d(101), ATR: d(2), SMA: d(100.5), RSI: 50})
	assert.Equal(t, models.PhaseMovingAverage, ec.Phase, "gain fell below threshold but phase stays")
	assert.True(t, ec.StopPrice.Equal(d(100.5)))

	ec = p.AdvanceExit(ec, entry, MarketView{Price: d(108), ATR: d(2), SMA: d(101), RSI: 80})
	assert.Equal(t, models.PhaseTight, ec.Phase)
	assert.True(t, ec.HighWater.Equal(d(108)))
	assert.True(t, ec.StopPrice.Equal(d(105)), ec.StopPrice.String())

	ec = p.AdvanceExit(ec, entry, MarketView{Price: d(104), ATR: d(6), SMA: d(101), RSI: 40})
	assert.Equal(t, models.PhaseTight, ec.Phase)
	assert.True(t, ec.StopPrice.Equal(d(105)), "stop never decreases")
}

func TestAdvanceExit_RSIJumpsStraightToTight(t *testing.T) {
	p := DefaultPolicy()
	ec := *p.InitialExit(d(100), d(90), d(2), now)

	ec = p.AdvanceExit(ec, d(100), MarketView{Price: d(101), ATR: d(2), RSI: 78})

	assert.Equal(t, models.PhaseTight, ec.Phase)
	assert.True(t, ec.StopPrice.Equal(d(98)), ec.StopPrice.String())
}

func TestShouldExit(t *testing.T) {
	p := DefaultPolicy()
	ec := models.ExitCondition{Phase: models.PhaseMovingAverage, StopPrice: d(99), HardStop: d(95)}
	opened := now.Add(-24 * time.Hour)

	advice := p.ShouldExit(ec, d(94), opened, now, 240)
	require.True(t, advice.Exit)
	assert.Contains(t, advice.Reason, "hard stop")

	advice = p.ShouldExit(ec, d(98), opened, now, 240)
	assert.False(t, advice.Exit, "trailing stop is suppressed inside the minimum hold")
	assert.Contains(t, advice.Reason, "minimum hold")

	opened = now.Add(-72 * time.Hour)
	advice = p.ShouldExit(ec, d(98), opened, now, 240)
	assert.True(t, advice.Exit)
	assert.Contains(t, advice.Reason, "phase 2")

	advice = p.ShouldExit(ec, d(103), opened, now, 240)
	assert.False(t, advice.Exit)

	advice = p.ShouldExit(ec, d(103), now.Add(-300*time.Hour), now, 240)
	assert.True(t, advice.Exit)
	assert.Contains(t, advice.Reason, "max hold")
}
