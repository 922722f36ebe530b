package gate

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
)

// ADVDays is the lookback for average daily volume.
const ADVDays = 10

// Indicators are the latest values derived from daily bars. A value that
// cannot be computed from the available history is zero.
type Indicators struct {
	Last decimal.Decimal
	ATR  decimal.Decimal
	SMA  decimal.Decimal
	RSI  float64
	ADV  decimal.Decimal
}

// ComputeIndicators derives ATR, SMA, RSI and average daily volume from bars in
// chronological order.
func (p Policy) ComputeIndicators(bars []models.Bar) Indicators {
	var ind Indicators
	if len(bars) == 0 {
		return ind
	}

	n := len(bars)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		highs[i], lows[i], closes[i], volumes[i] = b.High, b.Low, b.Close, b.Volume
	}
	ind.Last = decimal.NewFromFloat(closes[n-1])

	atr := volatility.NewAtr[float64]()
	if v, ok := lastValue(atr.Compute(helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes))); ok {
		ind.ATR = decimal.NewFromFloat(v).Round(4)
	}

	if p.Phase2MAPeriod > 0 && n >= p.Phase2MAPeriod {
		sma := trend.NewSmaWithPeriod[float64](p.Phase2MAPeriod)
		if v, ok := lastValue(sma.Compute(helper.SliceToChan(closes))); ok {
			ind.SMA = decimal.NewFromFloat(v).Round(4)
		}
	}

	if p.RSIPeriod > 0 && n > p.RSIPeriod {
		rsi := momentum.NewRsiWithPeriod[float64](p.RSIPeriod)
		if v, ok := lastValue(rsi.Compute(helper.SliceToChan(closes))); ok {
			ind.RSI = v
		}
	}

	if n >= ADVDays {
		adv := trend.NewSmaWithPeriod[float64](ADVDays)
		if v, ok := lastValue(adv.Compute(helper.SliceToChan(volumes))); ok {
			ind.ADV = decimal.NewFromFloat(v).Floor()
		}
	}

	return ind
}

// View converts indicators into the input of AdvanceExit.
func (ind Indicators) View(price decimal.Decimal) MarketView {
	if !price.IsPositive() {
		price = ind.Last
	}
	return MarketView{Price: price, ATR: ind.ATR, SMA: ind.SMA, RSI: ind.RSI}
}

func lastValue(ch <-chan float64) (float64, bool) {
	values := helper.ChanToSlice(ch)
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}
