package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is what a suggestion asks the owner to do.
type TradeAction string

const (
	ActionBuy   TradeAction = "BUY"
	ActionSell  TradeAction = "SELL"
	ActionHold  TradeAction = "HOLD"
	ActionWatch TradeAction = "WATCH"
)

type SuggestionStatus string

const (
	SuggestionPending    SuggestionStatus = "pending"
	SuggestionApproved   SuggestionStatus = "approved"
	SuggestionRejected   SuggestionStatus = "rejected"
	SuggestionExpired    SuggestionStatus = "expired"
	SuggestionSuperseded SuggestionStatus = "superseded"
)

var ErrMissingStopLoss = errors.New("stop loss is required for BUY suggestions")

// ExitPhase is the stage of the phased trailing exit.
type ExitPhase int

const (
	// PhaseWide trails by a wide ATR multiple while the position settles.
	PhaseWide ExitPhase = 1
	// PhaseMovingAverage trails the moving average once the position is in profit.
	PhaseMovingAverage ExitPhase = 2
	// PhaseTight trails closely once momentum looks overextended.
	PhaseTight ExitPhase = 3
)

// ExitCondition is the persisted state of a phased trailing stop.
// The stop only ever moves up and the phase only ever moves forward.
type ExitCondition struct {
	Phase     ExitPhase       `json:"phase"`
	StopPrice decimal.Decimal `json:"stop_price"`
	HardStop  decimal.Decimal `json:"hard_stop"`
	HighWater decimal.Decimal `json:"high_water"`
	UpdatedAt time.Time       `json:"updated_at"`
	Note      string          `json:"note,omitempty"`
}

// CatalystSuggestion is a reviewable trade recommendation.
type CatalystSuggestion struct {
	ID                  int64            `json:"id" db:"id"`
	Symbol              string           `json:"symbol" db:"symbol" validate:"required,max=32"`
	Action              TradeAction      `json:"action" db:"action" validate:"required,oneof=BUY SELL HOLD WATCH"`
	Confidence          int              `json:"confidence" db:"confidence" validate:"min=0,max=10"`
	Quantity            int64            `json:"quantity" db:"quantity" validate:"min=0"`
	EntryPrice          decimal.Decimal  `json:"entry_price" db:"entry_price"`
	TargetPrice         decimal.Decimal  `json:"target_price" db:"target_price"`
	StopLoss            decimal.Decimal  `json:"stop_loss" db:"stop_loss"`
	MinHoldHours        int              `json:"min_hold_hours" db:"min_hold_hours" validate:"min=0"`
	MaxHoldHours        int              `json:"max_hold_hours" db:"max_hold_hours" validate:"min=0"`
	TrailingStop        bool             `json:"trailing_stop" db:"trailing_stop"`
	EntryTrigger        string           `json:"entry_trigger,omitempty" db:"entry_trigger"`
	ExitCondition       *ExitCondition   `json:"exit_condition,omitempty" db:"exit_condition"`
	RiskReward          decimal.Decimal  `json:"risk_reward" db:"risk_reward"`
	Rationale           string           `json:"rationale" db:"rationale"`
	CatalystSignalID    *int64           `json:"catalyst_signal_id,omitempty" db:"catalyst_signal_id"`
	PotentialCatalystID *int64           `json:"potential_catalyst_id,omitempty" db:"potential_catalyst_id"`
	Status              SuggestionStatus `json:"status" db:"status"`
	SupersededBy        *int64           `json:"superseded_by,omitempty" db:"superseded_by"`
	SupersedeReason     string           `json:"supersede_reason,omitempty" db:"supersede_reason"`
	ReviewedAt          *time.Time       `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
}

// CheckStopLoss enforces that every BUY carries a positive stop below entry.
func (s *CatalystSuggestion) CheckStopLoss() error {
	if s.Action != ActionBuy {
		return nil
	}
	if !s.StopLoss.IsPositive() {
		return ErrMissingStopLoss
	}
	if s.EntryPrice.IsPositive() && s.StopLoss.GreaterThanOrEqual(s.EntryPrice) {
		return errors.New("stop loss must be below entry price for BUY suggestions")
	}
	return nil
}

// RiskRewardRatio returns (target-entry)/(entry-stop). A non-positive risk yields zero.
func RiskRewardRatio(entry, target, stop decimal.Decimal) decimal.Decimal {
	risk := entry.Sub(stop)
	if !risk.IsPositive() {
		return decimal.Zero
	}
	return target.Sub(entry).DivRound(risk, 4)
}
