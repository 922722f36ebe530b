package gate

import (
	"fmt"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
)

// MarketView is what a price refresh knows about a held symbol.
type MarketView struct {
	Price decimal.Decimal
	ATR   decimal.Decimal
	SMA   decimal.Decimal
	RSI   float64
	AsOf  time.Time
}

// InitialExit starts a phase-1 trailing stop at entry. The stop never sits
// below the hard stop.
func (p Policy) InitialExit(entry, hardStop, atr decimal.Decimal, now time.Time) *models.ExitCondition {
	stop := hardStop
	if atr.IsPositive() {
		if trail := entry.Sub(atr.Mul(p.Phase1ATRMultiple)); trail.GreaterThan(stop) {
			stop = trail
		}
	}
	return &models.ExitCondition{
		Phase:     models.PhaseWide,
		StopPrice: stop.Round(2),
		HardStop:  hardStop,
		HighWater: entry,
		UpdatedAt: now,
		Note:      fmt.Sprintf("phase 1: %sx ATR below high", p.Phase1ATRMultiple.String()),
	}
}

// AdvanceExit applies one price refresh. Phases only move forward and the
// stop only moves up.
func (p Policy) AdvanceExit(ec models.ExitCondition, entry decimal.Decimal, view MarketView) models.ExitCondition {
	next := ec
	if view.Price.GreaterThan(next.HighWater) {
		next.HighWater = view.Price
	}
	if !view.AsOf.IsZero() {
		next.UpdatedAt = view.AsOf
	}

	if entry.IsPositive() && next.Phase < models.PhaseMovingAverage {
		gain := view.Price.Sub(entry).Div(entry).Mul(hundred)
		if gain.GreaterThanOrEqual(p.Phase2GainPct) {
			next.Phase = models.PhaseMovingAverage
		}
	}
	if next.Phase < models.PhaseTight && view.RSI > p.Phase3RSI {
		next.Phase = models.PhaseTight
	}

	candidate := decimal.Zero
	switch next.Phase {
	case models.PhaseWide:
		if view.ATR.IsPositive() {
			candidate = next.HighWater.Sub(view.ATR.Mul(p.Phase1ATRMultiple))
		}
		next.Note = fmt.Sprintf("phase 1: %sx ATR below high", p.Phase1ATRMultiple.String())
	case models.PhaseMovingAverage:
		candidate = view.SMA
		if !candidate.IsPositive() && view.ATR.IsPositive() {
			candidate = next.HighWater.Sub(view.ATR.Mul(p.Phase1ATRMultiple))
		}
		next.Note = fmt.Sprintf("phase 2: trailing the %d-day average", p.Phase2MAPeriod)
	case models.PhaseTight:
		if view.ATR.IsPositive() {
			candidate = next.HighWater.Sub(view.ATR.Mul(p.Phase3ATRMultiple))
		}
		next.Note = fmt.Sprintf("phase 3: RSI %.0f, %sx ATR below high", view.RSI, p.Phase3ATRMultiple.String())
	}

	if candidate = candidate.Round(2); candidate.GreaterThan(next.StopPrice) {
		next.StopPrice = candidate
	}
	return next
}

// ExitAdvice is the outcome of checking an open position against its exit condition.
type ExitAdvice struct {
	Exit   bool   `json:"exit"`
	Reason string `json:"reason"`
}

// ShouldExit applies the exit rules. The hard stop always fires; the trailing
// stop and max hold wait for the minimum hold to pass.
func (p Policy) ShouldExit(ec models.ExitCondition, price decimal.Decimal, openedAt, now time.Time, maxHoldHours int) ExitAdvice {
	if ec.HardStop.IsPositive() && price.LessThanOrEqual(ec.HardStop) {
		return ExitAdvice{Exit: true, Reason: fmt.Sprintf("price %s at or below hard stop %s", price.StringFixed(2), ec.HardStop.StringFixed(2))}
	}

	held := now.Sub(openedAt)
	if held < p.MinHold {
		return ExitAdvice{Reason: fmt.Sprintf("inside minimum hold (%.0fh of %dh)", held.Hours(), p.MinHoldHours())}
	}
	if price.LessThanOrEqual(ec.StopPrice) {
		return ExitAdvice{Exit: true, Reason: fmt.Sprintf("price %s at or below phase %d stop %s", price.StringFixed(2), ec.Phase, ec.StopPrice.StringFixed(2))}
	}
	if maxHoldHours > 0 && held >= time.Duration(maxHoldHours)*time.Hour {
		return ExitAdvice{Exit: true, Reason: fmt.Sprintf("max hold of %dh reached", maxHoldHours)}
	}
	return ExitAdvice{Reason: fmt.Sprintf("holding above phase %d stop %s", ec.Phase, ec.StopPrice.StringFixed(2))}
}
