package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MarketMode is the state of the local exchange session.
type MarketMode string

const (
	MarketOpen    MarketMode = "OPEN"
	MarketPreOpen MarketMode = "PRE_OPEN"
	MarketClosed  MarketMode = "CLOSED"
)

// GateAction is the outcome of a portfolio gate evaluation.
type GateAction string

const (
	GateBuy   GateAction = "BUY"
	GateSell  GateAction = "SELL"
	GateHold  GateAction = "HOLD"
	GateWatch GateAction = "WATCH"
	GatePass  GateAction = "PASS"
)

// Sizing describes how much the gate allows.
type Sizing struct {
	Quantity          int64           `json:"quantity"`
	Notional          decimal.Decimal `json:"notional"`
	PositionPct       float64         `json:"position_pct"`
	LiquidityCap      int64           `json:"liquidity_cap"`
	CappedByLiquidity bool            `json:"capped_by_liquidity"`
}

// RiskParams are the exit parameters attached to an approved trade.
type RiskParams struct {
	Entry           decimal.Decimal `json:"entry"`
	Target          decimal.Decimal `json:"target"`
	Stop            decimal.Decimal `json:"stop"`
	RewardRisk      decimal.Decimal `json:"reward_risk"`
	ProjectedProfit decimal.Decimal `json:"projected_profit"`
	RoundTripCost   decimal.Decimal `json:"round_trip_cost"`
	MinHoldHours    int             `json:"min_hold_hours"`
	MaxHoldHours    int             `json:"max_hold_hours"`
	TrailingStop    bool            `json:"trailing_stop"`
	Exit            *ExitCondition  `json:"exit,omitempty"`
}

// FundingLeg is a paired SELL proposed to raise cash for a BUY.
type FundingLeg struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Proceeds decimal.Decimal `json:"proceeds"`
}

// Decision is the auditable record of one gate evaluation.
type Decision struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	SignalID    *int64      `json:"signal_id,omitempty"`
	Requested   TradeAction `json:"requested"`
	Action      GateAction  `json:"action"`
	Guard       string      `json:"guard,omitempty"`
	Rationale   []string    `json:"rationale"`
	Sizing      Sizing      `json:"sizing"`
	Risk        RiskParams  `json:"risk"`
	Funding     *FundingLeg `json:"funding,omitempty"`
	MarketMode  MarketMode  `json:"market_mode"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// Reason joins the rationale lines into one string.
func (d Decision) Reason() string {
	return strings.Join(d.Rationale, "; ")
}

// Approved reports whether the decision lets a trade through.
func (d Decision) Approved() bool {
	return d.Action == GateBuy || d.Action == GateSell
}
