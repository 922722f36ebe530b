package catalyst

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/irfndi/catalyst-ai-go/internal/llm"
	"github.com/irfndi/catalyst-ai-go/internal/logging"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TradeProposal is the model's suggested trade plan. Every number in it is
// re-checked by the portfolio gate.
type TradeProposal struct {
	Action        models.TradeAction `json:"action"`
	EntryPrice    decimal.Decimal    `json:"entry_price"`
	TargetPrice   decimal.Decimal    `json:"target_price"`
	StopLoss      decimal.Decimal    `json:"stop_loss"`
	Quantity      int64              `json:"quantity"`
	MinHoldHours  int                `json:"min_hold_hours"`
	MaxHoldHours  int                `json:"max_hold_hours"`
	TrailingStop  bool               `json:"trailing_stop"`
	EntryTrigger  string             `json:"entry_trigger,omitempty"`
	Confidence    int                `json:"confidence"`
	Reasoning     string             `json:"reasoning"`
	FailureReason string             `json:"failure_reason,omitempty"`
}

// Failed reports whether the proposal is a fallback.
func (p TradeProposal) Failed() bool {
	return p.FailureReason != ""
}

// Proposer turns a classified catalyst into a trade proposal.
type Proposer struct {
	client llm.LanguageModelClient
	policy PolicySummary
	logger *logrus.Logger
}

func NewProposer(client llm.LanguageModelClient, policy PolicySummary, logger *logrus.Logger) *Proposer {
	return &Proposer{client: client, policy: policy, logger: logger}
}

// Propose never returns an error; failures come back as a HOLD proposal with FailureReason set.
func (p *Proposer) Propose(ctx context.Context, signal models.CatalystSignal, snapshot models.PortfolioSnapshot, instrument models.Instrument) TradeProposal {
	log := p.logger.WithFields(logrus.Fields{
		"component": "proposer",
		"symbol":    signal.Symbol,
	})

	raw, err := p.client.Generate(ctx, BuildProposalPrompt(signal, snapshot, instrument, p.policy))
	if err != nil {
		log.WithError(err).Warn("Proposal call failed")
		return failedProposal(fmt.Sprintf("llm call failed: %v", err))
	}

	proposal, err := ParseTradeProposal(raw)
	if err != nil {
		log.WithFields(logrus.Fields{
			"error":      err.Error(),
			"raw_output": logging.Truncate(raw, maxLoggedOutput),
		}).Warn("Unparseable proposal output")
		return failedProposal(fmt.Sprintf("unparseable model output: %v", err))
	}

	return proposal
}

// ParseTradeProposal decodes model output defensively. Unknown actions become HOLD.
func ParseTradeProposal(raw string) (TradeProposal, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return TradeProposal{}, err
	}

	proposal := TradeProposal{
		Action:       parseAction(pickString(fields, "action")),
		EntryPrice:   pickDecimal(fields, "entry_price", "entryPrice", "entry"),
		TargetPrice:  pickDecimal(fields, "target_price", "targetPrice", "target"),
		StopLoss:     pickDecimal(fields, "stop_loss", "stopLoss", "stop"),
		TrailingStop: pickBool(fields, "trailing_stop", "trailingStop"),
		EntryTrigger: pickString(fields, "entry_trigger", "entryTrigger"),
		Reasoning:    pickString(fields, "reasoning"),
		Confidence:   1,
	}

	if n, ok := pickNumber(fields, "quantity"); ok && n > 0 {
		proposal.Quantity = int64(math.Floor(n))
	}
	if n, ok := pickNumber(fields, "min_hold_hours", "minHoldHours"); ok && n > 0 {
		proposal.MinHoldHours = int(n)
	}
	if n, ok := pickNumber(fields, "max_hold_hours", "maxHoldHours"); ok && n > 0 {
		proposal.MaxHoldHours = int(n)
	}
	if n, ok := pickNumber(fields, "confidence"); ok {
		proposal.Confidence = clampRounded(n)
	}

	return proposal, nil
}

func parseAction(s string) models.TradeAction {
	switch models.TradeAction(strings.ToUpper(s)) {
	case models.ActionBuy:
		return models.ActionBuy
	case models.ActionSell:
		return models.ActionSell
	case models.ActionWatch:
		return models.ActionWatch
	default:
		return models.ActionHold
	}
}

func failedProposal(reason string) TradeProposal {
	return TradeProposal{
		Action:        models.ActionHold,
		Confidence:    0,
		FailureReason: reason,
	}
}
