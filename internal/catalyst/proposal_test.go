package catalyst

import (
	"context"
	"testing"

	"github.com/irfndi/catalyst-ai-go/internal/llm"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradeProposal(t *testing.T) {
	raw := `Sure! {"action": "buy", "entry_price": 100, "target_price": "₹110.50", "stop_loss": 95,
		"quantity": 12.7, "min_hold_hours": 48, "max_hold_hours": 240, "trailing_stop": true,
		"entry_trigger": "holds above 99", "confidence": 12, "reasoning": "cut is bullish"}`

	p, err := ParseTradeProposal(raw)
	require.NoError(t, err)

	assert.Equal(t, models.ActionBuy, p.Action)
	assert.True(t, p.EntryPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, p.TargetPrice.Equal(decimal.RequireFromString("110.5")))
	assert.True(t, p.StopLoss.Equal(decimal.NewFromInt(95)))
	assert.Equal(t, int64(12), p.Quantity)
	assert.Equal(t, 48, p.MinHoldHours)
	assert.Equal(t, 240, p.MaxHoldHours)
	assert.True(t, p.TrailingStop)
	assert.Equal(t, "holds above 99", p.EntryTrigger)
	assert.Equal(t, 10, p.Confidence)
	assert.False(t, p.Failed())
}

func TestParseTradeProposal_UnknownActionIsHold(t *testing.T) {
	p, err := ParseTradeProposal(`{"action": "YOLO"}`)
	require.NoError(t, err)
	assert.Equal(t, models.ActionHold, p.Action)
	assert.True(t, p.StopLoss.IsZero())
}

func TestProposer_MalformedOutput(t *testing.T) {
	client := llm.NewScriptedClient(llm.Reply("no json here"))
	p := NewProposer(client, PolicySummary{MinRewardRisk: 2, MaxPositionPct: 20, MaxOpenPositions: 5, MinHoldHours: 48, WashoutDays: 3}, quietLogger())

	proposal := p.Propose(context.Background(), models.CatalystSignal{Symbol: "ONGC"}, models.PortfolioSnapshot{}, models.Instrument{})

	assert.True(t, proposal.Failed())
	assert.Equal(t, models.ActionHold, proposal.Action)
	assert.Equal(t, 0, proposal.Confidence)
	require.Equal(t, 1, client.Calls())
	assert.Contains(t, client.Prompts[0], "reward/risk at least 2.0:1")
	assert.Contains(t, client.Prompts[0], "no position above 20% of capital")
}
