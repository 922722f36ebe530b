package suggestion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/irfndi/catalyst-ai-go/internal/config"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
)

var hundredPct = decimal.NewFromInt(100)

const (
	dateWeight  = 0.4
	priceWeight = 0.6
)

type MatchPolicy struct {
	AcceptScore       float64
	WindowDays        int
	PriceTolerancePct float64
}

func DefaultMatchPolicy() MatchPolicy {
	return MatchPolicy{AcceptScore: 0.7, WindowDays: 3, PriceTolerancePct: 2}
}

func MatchPolicyFromConfig(cfg config.VerificationConfig) MatchPolicy {
	p := DefaultMatchPolicy()
	if cfg.MatchAcceptScore > 0 {
		p.AcceptScore = cfg.MatchAcceptScore
	}
	if cfg.MatchWindowDays > 0 {
		p.WindowDays = cfg.MatchWindowDays
	}
	if cfg.MatchPriceTolPct > 0 {
		p.PriceTolerancePct = cfg.MatchPriceTolPct
	}
	return p
}

// Candidate is one scored suggestion/trade pairing.
type Candidate struct {
	SuggestionID int64   `json:"suggestion_id"`
	TradeID      int64   `json:"trade_id"`
	Symbol       string  `json:"symbol"`
	Score        float64 `json:"score"`
	DateScore    float64 `json:"date_score"`
	PriceScore   float64 `json:"price_score"`
	Accepted     bool    `json:"accepted"`
	Reason       string  `json:"reason"`
}

// Matcher links executed trades to the suggestions that probably caused them.
// Symbol and side must agree and the trade must fall inside the window; the
// score then blends date and price proximity.
type Matcher struct {
	policy MatchPolicy
}

func NewMatcher(policy MatchPolicy) *Matcher {
	return &Matcher{policy: policy}
}

// Score rates one pairing. ok is false when the pair is not eligible at all.
func (m *Matcher) Score(s models.CatalystSuggestion, t models.Trade) (Candidate, bool) {
	if !strings.EqualFold(s.Symbol, t.Symbol) || !sameSide(s.Action, t.Side) {
		return Candidate{}, false
	}

	window := float64(m.policy.WindowDays)
	days := math.Abs(t.ExecutedAt.Sub(s.CreatedAt).Hours()) / 24
	if window <= 0 || days > window {
		return Candidate{}, false
	}

	c := Candidate{
		SuggestionID: s.ID,
		TradeID:      t.ID,
		Symbol:       strings.ToUpper(s.Symbol),
		DateScore:    1 - days/window,
	}

	var diffPct float64
	if s.EntryPrice.IsPositive() {
		diffPct, _ = t.Price.Sub(s.EntryPrice).Abs().Div(s.EntryPrice).Mul(hundredPct).Float64()
		c.PriceScore = math.Max(0, 1-diffPct/m.policy.PriceTolerancePct)
	}

	c.Score = math.Round((dateWeight*c.DateScore+priceWeight*c.PriceScore)*1000) / 1000
	c.Accepted = c.Score >= m.policy.AcceptScore
	c.Reason = fmt.Sprintf("%.1f days apart, price %.2f%% from entry", days, diffPct)
	return c, true
}

// Rank scores every eligible suggestion for trade, best first.
func (m *Matcher) Rank(t models.Trade, suggestions []models.CatalystSuggestion) []Candidate {
	var out []Candidate
	for _, s := range suggestions {
		if c, ok := m.Score(s, t); ok {
			out = append(out, c)
		}
	}
	sortCandidates(out)
	return out
}

// Match pairs trades with suggestions greedily by score. Each trade and each
// suggestion is used at most once and only accepted pairings are returned.
func (m *Matcher) Match(trades []models.Trade, suggestions []models.CatalystSuggestion) []Candidate {
	var all []Candidate
	for _, t := range trades {
		for _, c := range m.Rank(t, suggestions) {
			if c.Accepted {
				all = append(all, c)
			}
		}
	}
	sortCandidates(all)

	usedTrades := make(map[int64]bool)
	usedSuggestions := make(map[int64]bool)
	var out []Candidate
	for _, c := range all {
		if usedTrades[c.TradeID] || usedSuggestions[c.SuggestionID] {
			continue
		}
		usedTrades[c.TradeID] = true
		usedSuggestions[c.SuggestionID] = true
		out = append(out, c)
	}
	return out
}

func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		if cs[i].TradeID != cs[j].TradeID {
			return cs[i].TradeID < cs[j].TradeID
		}
		return cs[i].SuggestionID < cs[j].SuggestionID
	})
}

func sameSide(action, side models.TradeAction) bool {
	return (action == models.ActionBuy || action == models.ActionSell) && action == side
}
