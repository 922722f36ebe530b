package gate

import (
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/config"
	"github.com/irfndi/catalyst-ai-go/internal/utils"
	"github.com/shopspring/decimal"
)

// Policy is the typed rule set the gate enforces. Prompt text may describe it
// but only this struct decides.
type Policy struct {
	MaxPositionPct    decimal.Decimal
	MaxOpenPositions  int
	MaxADVPct         decimal.Decimal
	MinRewardRisk     decimal.Decimal
	RoundTripCost     decimal.Decimal
	FrictionMultiple  decimal.Decimal
	Washout           time.Duration
	MinHold           time.Duration
	MaxHoldHours      int
	Phase1ATRMultiple decimal.Decimal
	Phase2GainPct     decimal.Decimal
	Phase2MAPeriod    int
	Phase3RSI         float64
	Phase3ATRMultiple decimal.Decimal
	RSIPeriod         int
	Currency          string
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxPositionPct:    decimal.NewFromInt(20),
		MaxOpenPositions:  5,
		MaxADVPct:         decimal.NewFromInt(1),
		MinRewardRisk:     decimal.NewFromInt(2),
		RoundTripCost:     decimal.NewFromInt(40),
		FrictionMultiple:  decimal.NewFromInt(10),
		Washout:           3 * 24 * time.Hour,
		MinHold:           48 * time.Hour,
		MaxHoldHours:      240,
		Phase1ATRMultiple: decimal.NewFromInt(3),
		Phase2GainPct:     decimal.NewFromInt(3),
		Phase2MAPeriod:    20,
		Phase3RSI:         75,
		Phase3ATRMultiple: decimal.NewFromFloat(1.5),
		RSIPeriod:         14,
		Currency:          utils.DefaultCurrency,
	}
}

// PolicyFromConfig converts the gate and market config sections into a Policy.
func PolicyFromConfig(gc config.GateConfig, mc config.MarketConfig) Policy {
	return Policy{
		MaxPositionPct:    decimal.NewFromFloat(gc.MaxPositionPct),
		MaxOpenPositions:  gc.MaxOpenPositions,
		MaxADVPct:         decimal.NewFromFloat(gc.MaxADVPct),
		MinRewardRisk:     decimal.NewFromFloat(gc.MinRewardRisk),
		RoundTripCost:     decimal.NewFromFloat(gc.RoundTripCost),
		FrictionMultiple:  decimal.NewFromFloat(gc.FrictionMultiple),
		Washout:           time.Duration(gc.WashoutDays) * 24 * time.Hour,
		MinHold:           time.Duration(gc.MinHoldHours) * time.Hour,
		MaxHoldHours:      gc.MaxHoldHours,
		Phase1ATRMultiple: decimal.NewFromFloat(gc.Phase1ATRMultiple),
		Phase2GainPct:     decimal.NewFromFloat(gc.Phase2GainPct),
		Phase2MAPeriod:    gc.Phase2MAPeriod,
		Phase3RSI:         gc.Phase3RSI,
		Phase3ATRMultiple: decimal.NewFromFloat(gc.Phase3ATRMultiple),
		RSIPeriod:         gc.RSIPeriod,
		Currency:          mc.Currency,
	}
}

// MinHoldHours is the minimum hold rounded to whole hours.
func (p Policy) MinHoldHours() int {
	return int(p.MinHold / time.Hour)
}

// MinProfit is the smallest projected profit that clears friction.
func (p Policy) MinProfit() decimal.Decimal {
	return p.RoundTripCost.Mul(p.FrictionMultiple)
}
