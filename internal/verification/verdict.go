package verification

import (
	"math"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultNeutralBandPct is the absolute move below which a call is NEUTRAL.
const DefaultNeutralBandPct = 0.5

// PercentChange is (current-base)/base*100 rounded to 4 places. A non-positive base yields 0.
func PercentChange(base, current decimal.Decimal) float64 {
	if !base.IsPositive() {
		return 0
	}
	pct, _ := current.Sub(base).Div(base).Mul(decimal.NewFromInt(100)).Round(4).Float64()
	return pct
}

// Judge maps a percent move and the predicted sentiment to a verdict.
func Judge(changePct float64, predicted models.Sentiment, bandPct float64) models.Verdict {
	if math.Abs(changePct) < bandPct {
		return models.VerdictNeutral
	}
	moveUp := changePct > 0
	if moveUp == (predicted.Direction() > 0) {
		return models.VerdictGoodCall
	}
	return models.VerdictBadCall
}
