package catalyst

import (
	"fmt"
	"strings"

	"github.com/irfndi/catalyst-ai-go/internal/models"
)

// BuildClassificationPrompt renders all headlines for one asset into a single prompt.
// Headlines keep their input order so results are reproducible.
func BuildClassificationPrompt(asset models.Asset, items []models.NewsItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are screening news for a material catalyst affecting %q", asset.Keyword)
	if asset.Symbol != "" {
		fmt.Fprintf(&b, " (portfolio symbol %s)", asset.Symbol)
	}
	b.WriteString(".\n\n")
	b.WriteString("A catalyst is a genuine supply shock, demand shock or regulatory change. ")
	b.WriteString("Earnings commentary, analyst ratings, price targets, opinion pieces and listicles are NOISE.\n\n")
	b.WriteString("Headlines:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s", i+1, strings.TrimSpace(item.Title))
		if item.Source != "" {
			fmt.Fprintf(&b, " [%s]", item.Source)
		}
		if !item.PublishedAt.IsZero() {
			fmt.Fprintf(&b, " (%s)", item.PublishedAt.UTC().Format("2006-01-02 15:04 MST"))
		}
		b.WriteString("\n")
	}

	b.WriteString(`
Respond with one JSON object only:
{
  "is_catalyst": true|false,
  "sentiment": "BULLISH"|"BEARISH"|"NEUTRAL",
  "impact_type": "SUPPLY_SHOCK"|"DEMAND_SHOCK"|"REGULATORY"|"NOISE",
  "confidence": 1-10,
  "key_headline": "the single most important headline, verbatim",
  "summary": "one sentence",
  "reasoning": "two sentences at most"
}`)

	return b.String()
}

// BuildProposalPrompt asks for a concrete trade plan for a classified catalyst.
// The numbers it names are advisory; the gate enforces its own thresholds.
func BuildProposalPrompt(signal models.CatalystSignal, snapshot models.PortfolioSnapshot, instrument models.Instrument, policy PolicySummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Catalyst for %s (%s): %s\n", signal.Symbol, signal.Keyword, signal.Headline)
	fmt.Fprintf(&b, "Sentiment %s, impact %s, confidence %d/10.\n", signal.Sentiment, signal.ImpactType, signal.Confidence)
	if signal.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", signal.Summary)
	}
	fmt.Fprintf(&b, "\nLast price %s, ATR %s, 10-day average volume %s.\n",
		instrument.LastPrice.StringFixed(2), instrument.ATR.StringFixed(2), instrument.AvgDailyVolume.StringFixed(0))
	fmt.Fprintf(&b, "Cash %s, %d open positions, book capital %s.\n",
		snapshot.Cash.StringFixed(2), snapshot.OpenPositions(), snapshot.BookCapital().StringFixed(2))
	if h, ok := snapshot.Holding(signal.Symbol); ok {
		fmt.Fprintf(&b, "Already holding %d shares at %s.\n", h.Quantity, h.AvgPrice.StringFixed(2))
	}

	fmt.Fprintf(&b, `
House rules: reward/risk at least %.1f:1, a stop loss on every BUY, no position above %.0f%% of capital,
at most %d positions, minimum hold %d hours, no re-entry within %d days of an exit.

Respond with one JSON object only:
{
  "action": "BUY"|"SELL"|"HOLD"|"WATCH",
  "entry_price": number,
  "target_price": number,
  "stop_loss": number,
  "quantity": integer or 0 to let the desk size it,
  "min_hold_hours": integer,
  "max_hold_hours": integer,
  "trailing_stop": true|false,
  "entry_trigger": "condition that must hold before entering",
  "confidence": 1-10,
  "reasoning": "two sentences at most"
}`, policy.MinRewardRisk, policy.MaxPositionPct, policy.MaxOpenPositions, policy.MinHoldHours, policy.WashoutDays)

	return b.String()
}

// PolicySummary is the subset of gate thresholds quoted to the model.
type PolicySummary struct {
	MinRewardRisk    float64
	MaxPositionPct   float64
	MaxOpenPositions int
	MinHoldHours     int
	WashoutDays      int
}
