// Package gate is the single place where portfolio rules are enforced. The
// language model proposes; the gate decides.
package gate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/telemetry"
	"github.com/irfndi/catalyst-ai-go/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Guard names recorded on PASS/HOLD/WATCH decisions.
const (
	GuardMarketMode    = "market_mode"
	GuardProposal      = "proposal"
	GuardSignal        = "signal"
	GuardStopLoss      = "stop_loss"
	GuardWashout       = "washout"
	GuardMaxPositions  = "max_positions"
	GuardRewardRisk    = "reward_risk"
	GuardConcentration = "concentration"
	GuardCash          = "cash"
	GuardLiquidity     = "liquidity"
	GuardFriction      = "friction"
	GuardPosition      = "position"
	GuardMinHold       = "min_hold"
)

var hundred = decimal.NewFromInt(100)

// Request is a proposed trade together with the signal and market facts behind it.
type Request struct {
	Symbol          string
	Action          models.TradeAction
	SignalID        *int64
	IsCatalyst      bool
	ImpactType      models.ImpactType
	Confidence      int
	Entry           decimal.Decimal
	Target          decimal.Decimal
	Stop            decimal.Decimal
	Quantity        int64
	MinHoldHours    int
	MaxHoldHours    int
	ProposalFailure string
	Instrument      models.Instrument
	MarketMode      models.MarketMode
}

// Gate evaluates requests against a Policy. Evaluate has no side effects.
type Gate struct {
	policy Policy
	clock  clock.Clock
	logger *logrus.Logger
}

func New(policy Policy, clk clock.Clock, logger *logrus.Logger) *Gate {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Gate{policy: policy, clock: clk, logger: logger}
}

func (g *Gate) Policy() Policy { return g.policy }

type evaluation struct {
	d      models.Decision
	policy Policy
}

func (e *evaluation) note(format string, args ...interface{}) {
	e.d.Rationale = append(e.d.Rationale, fmt.Sprintf(format, args...))
}

func (e *evaluation) stop(action models.GateAction, guard, format string, args ...interface{}) models.Decision {
	e.d.Action = action
	e.d.Guard = guard
	e.note(format, args...)
	return e.d
}

func (e *evaluation) money(d decimal.Decimal) string {
	return utils.FormatMoney(d, e.policy.Currency)
}

// Evaluate runs every guard in a fixed order and returns the first blocking
// outcome, or an approved decision with sizing and risk parameters.
func (g *Gate) Evaluate(ctx context.Context, req Request, snapshot models.PortfolioSnapshot) models.Decision {
	_, span := telemetry.StartSpan(ctx, "gate.Evaluate",
		attribute.String("symbol", req.Symbol),
		attribute.String("requested", string(req.Action)),
	)
	defer span.End()

	now := g.clock.Now()
	e := &evaluation{
		policy: g.policy,
		d: models.Decision{
			ID:          uuid.NewString(),
			Symbol:      strings.ToUpper(req.Symbol),
			SignalID:    req.SignalID,
			Requested:   req.Action,
			MarketMode:  req.MarketMode,
			EvaluatedAt: now,
			Rationale:   []string{},
		},
	}

	decision := g.evaluate(e, req, snapshot, now)

	span.SetAttributes(
		attribute.String("action", string(decision.Action)),
		attribute.String("guard", decision.Guard),
	)
	g.logger.WithFields(logrus.Fields{
		"component": "gate",
		"symbol":    decision.Symbol,
		"requested": decision.Requested,
		"action":    decision.Action,
		"guard":     decision.Guard,
		"quantity":  decision.Sizing.Quantity,
	}).Info("Gate decision")

	return decision
}

func (g *Gate) evaluate(e *evaluation, req Request, snapshot models.PortfolioSnapshot, now time.Time) models.Decision {
	p := g.policy

	if req.MarketMode != models.MarketOpen {
		mode := req.MarketMode
		if mode == "" {
			mode = models.MarketClosed
		}
		e.d.MarketMode = mode
		if req.Action == models.ActionHold {
			return e.stop(models.GateHold, GuardMarketMode, "market %s: holding", mode)
		}
		return e.stop(models.GateWatch, GuardMarketMode, "market %s: no orders outside the regular session", mode)
	}

	if req.ProposalFailure != "" {
		return e.stop(models.GatePass, GuardProposal, "no usable trade proposal: %s", req.ProposalFailure)
	}

	switch req.Action {
	case models.ActionBuy:
	case models.ActionSell:
		return g.evaluateSell(e, req, snapshot, now)
	case models.ActionWatch:
		return e.stop(models.GateWatch, "", "proposal is to watch %s", e.d.Symbol)
	default:
		return e.stop(models.GateHold, "", "proposal is to hold")
	}

	if !req.IsCatalyst || req.ImpactType == models.ImpactNoise {
		return e.stop(models.GatePass, GuardSignal, "signal is not a material catalyst (impact %s)", req.ImpactType)
	}

	entry := req.Entry
	if !entry.IsPositive() {
		entry = req.Instrument.LastPrice
	}
	if !entry.IsPositive() {
		return e.stop(models.GatePass, GuardStopLoss, "no entry price available")
	}
	if !req.Stop.IsPositive() || req.Stop.GreaterThanOrEqual(entry) {
		return e.stop(models.GatePass, GuardStopLoss, "BUY needs a stop loss below entry %s", e.money(entry))
	}
	if req.Target.LessThanOrEqual(entry) {
		return e.stop(models.GatePass, GuardStopLoss, "target %s is not above entry %s", e.money(req.Target), e.money(entry))
	}

	if exit, ok := snapshot.LastExit(req.Symbol); ok && now.Sub(exit.ExecutedAt) < p.Washout {
		days := now.Sub(exit.ExecutedAt).Hours() / 24
		return e.stop(models.GatePass, GuardWashout, "exited %s %.1f days ago, washout is %d days",
			e.d.Symbol, days, int(p.Washout.Hours()/24))
	}

	existing, alreadyHeld := snapshot.Holding(req.Symbol)
	if !alreadyHeld && snapshot.OpenPositions() >= p.MaxOpenPositions {
		return e.stop(models.GatePass, GuardMaxPositions, "%d open positions, limit is %d",
			snapshot.OpenPositions(), p.MaxOpenPositions)
	}

	rr := models.RiskRewardRatio(entry, req.Target, req.Stop)
	if rr.LessThan(p.MinRewardRisk) {
		return e.stop(models.GatePass, GuardRewardRisk, "reward/risk %s below %s",
			rr.StringFixed(2), p.MinRewardRisk.StringFixed(1))
	}
	e.note("reward/risk %s", rr.StringFixed(2))

	book := snapshot.BookCapital()
	allowed := book.Mul(p.MaxPositionPct).Div(hundred)
	if alreadyHeld {
		allowed = allowed.Sub(existing.MarketValue())
	}
	capQty := floorQty(allowed, entry)

	var qty int64
	if req.Quantity > 0 {
		qty = req.Quantity
		if qty > capQty {
			return e.stop(models.GatePass, GuardConcentration, "%d shares would exceed %s%% of book capital %s",
				qty, p.MaxPositionPct.String(), e.money(book))
		}
	} else {
		cashQty := floorQty(snapshot.Cash, entry)
		qty = capQty
		if cashQty < qty {
			qty = cashQty
		}
		if qty < 1 {
			if capQty < 1 {
				return e.stop(models.GatePass, GuardConcentration, "no room under %s%% of book capital %s",
					p.MaxPositionPct.String(), e.money(book))
			}
			return e.stop(models.GatePass, GuardCash, "cash %s buys no shares at %s",
				e.money(snapshot.Cash), e.money(entry))
		}
	}

	adv := req.Instrument.AvgDailyVolume
	if !adv.IsPositive() {
		return e.stop(models.GatePass, GuardLiquidity, "average daily volume unavailable for %s", e.d.Symbol)
	}
	liqCap := adv.Mul(p.MaxADVPct).Div(hundred).Floor().IntPart()
	e.d.Sizing.LiquidityCap = liqCap
	if liqCap < 1 {
		return e.stop(models.GatePass, GuardLiquidity, "%s%% of average daily volume %s is under one share",
			p.MaxADVPct.String(), adv.StringFixed(0))
	}
	if qty > liqCap {
		e.note("size capped from %d to %d shares at %s%% of average daily volume", qty, liqCap, p.MaxADVPct.String())
		qty = liqCap
		e.d.Sizing.CappedByLiquidity = true
	}

	// Funding is sized against the final quantity, after every cap.
	if cost := entry.Mul(decimal.NewFromInt(qty)); cost.GreaterThan(snapshot.Cash) {
		leg, ok := g.fundingLeg(snapshot, req.Symbol, cost.Sub(snapshot.Cash), now)
		if !ok {
			return e.stop(models.GatePass, GuardCash, "cost %s exceeds cash %s and no holding can fund it",
				e.money(cost), e.money(snapshot.Cash))
		}
		e.d.Funding = leg
		e.note("fund by selling %d %s for %s", leg.Quantity, leg.Symbol, e.money(leg.Proceeds))
	}

	profit := req.Target.Sub(entry).Mul(decimal.NewFromInt(qty))
	if profit.LessThan(p.MinProfit()) {
		return e.stop(models.GatePass, GuardFriction, "projected profit %s is under %sx round-trip cost %s",
			e.money(profit), p.FrictionMultiple.String(), e.money(p.RoundTripCost))
	}

	notional := entry.Mul(decimal.NewFromInt(qty))
	e.d.Sizing.Quantity = qty
	e.d.Sizing.Notional = notional
	if book.IsPositive() {
		e.d.Sizing.PositionPct = notional.Div(book).Mul(hundred).Round(2).InexactFloat64()
	}

	minHold := p.MinHoldHours()
	if req.MinHoldHours > minHold {
		minHold = req.MinHoldHours
	}
	maxHold := p.MaxHoldHours
	if req.MaxHoldHours > 0 && req.MaxHoldHours < maxHold {
		maxHold = req.MaxHoldHours
	}
	if maxHold < minHold {
		maxHold = minHold
	}

	e.d.Risk = models.RiskParams{
		Entry:           entry,
		Target:          req.Target,
		Stop:            req.Stop,
		RewardRisk:      rr,
		ProjectedProfit: profit,
		RoundTripCost:   p.RoundTripCost,
		MinHoldHours:    minHold,
		MaxHoldHours:    maxHold,
		TrailingStop:    true,
		Exit:            p.InitialExit(entry, req.Stop, req.Instrument.ATR, now),
	}

	e.d.Action = models.GateBuy
	e.note("buy %d %s at %s (%s, %.2f%% of book), stop %s, target %s, hold at least %dh",
		qty, e.d.Symbol, e.money(entry), e.money(notional), e.d.Sizing.PositionPct,
		e.money(req.Stop), e.money(req.Target), minHold)
	return e.d
}

func (g *Gate) evaluateSell(e *evaluation, req Request, snapshot models.PortfolioSnapshot, now time.Time) models.Decision {
	h, ok := snapshot.Holding(req.Symbol)
	if !ok {
		return e.stop(models.GatePass, GuardPosition, "no open position in %s to sell", e.d.Symbol)
	}

	price := h.CurrentPrice
	if !price.IsPositive() {
		price = req.Instrument.LastPrice
	}
	hitStop := req.Stop.IsPositive() && price.IsPositive() && price.LessThanOrEqual(req.Stop)
	if !h.OpenedAt.IsZero() && now.Sub(h.OpenedAt) < g.policy.MinHold && !hitStop {
		return e.stop(models.GateHold, GuardMinHold, "held %.0fh, minimum hold is %dh",
			now.Sub(h.OpenedAt).Hours(), g.policy.MinHoldHours())
	}

	qty := h.Quantity
	if req.Quantity > 0 && req.Quantity < qty {
		qty = req.Quantity
	}
	e.d.Action = models.GateSell
	e.d.Sizing.Quantity = qty
	e.d.Sizing.Notional = price.Mul(decimal.NewFromInt(qty))
	if hitStop {
		e.note("price %s at or below stop %s", e.money(price), e.money(req.Stop))
	}
	e.note("sell %d of %d %s", qty, h.Quantity, e.d.Symbol)
	return e.d
}

// fundingLeg picks the holding whose sale covers shortfall with the least
// excess. Holdings still inside the minimum hold cannot fund a buy.
func (g *Gate) fundingLeg(snapshot models.PortfolioSnapshot, buySymbol string, shortfall decimal.Decimal, now time.Time) (*models.FundingLeg, bool) {
	var candidates []models.FundingLeg
	for _, h := range snapshot.Holdings {
		if h.Quantity <= 0 || strings.EqualFold(h.Symbol, buySymbol) {
			continue
		}
		if h.OpenedAt.IsZero() || now.Sub(h.OpenedAt) < g.policy.MinHold {
			continue
		}
		price := h.CurrentPrice
		if !price.IsPositive() {
			price = h.AvgPrice
		}
		if !price.IsPositive() {
			continue
		}
		qty := shortfall.Div(price).Ceil().IntPart()
		if qty < 1 || qty > h.Quantity {
			continue
		}
		candidates = append(candidates, models.FundingLeg{
			Symbol:   h.Symbol,
			Quantity: qty,
			Price:    price,
			Proceeds: price.Mul(decimal.NewFromInt(qty)),
		})
	}
	if len(candidates) == 0 {
		return nil, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Proceeds.Equal(candidates[j].Proceeds) {
			return candidates[i].Proceeds.LessThan(candidates[j].Proceeds)
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})
	leg := candidates[0]
	return &leg, true
}

func floorQty(amount, price decimal.Decimal) int64 {
	if !amount.IsPositive() || !price.IsPositive() {
		return 0
	}
	return amount.Div(price).Floor().IntPart()
}
