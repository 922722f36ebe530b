package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/catalyst"
	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/gate"
	"github.com/irfndi/catalyst-ai-go/internal/llm"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/verification"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bullishCut = `{"is_catalyst": true, "sentiment": "BULLISH", "impact_type": "SUPPLY_SHOCK",
	"confidence": 8, "key_headline": "OPEC+ agrees surprise output cut", "summary": "Supply cut", "reasoning": "Less supply"}`

const buyPlan = `{"action": "BUY", "entry_price": 100, "target_price": 110, "stop_loss": 95,
	"min_hold_hours": 48, "max_hold_hours": 240, "trailing_stop": true, "confidence": 7, "reasoning": "cut"}`

var ongc = models.Asset{Keyword: "crude oil", Symbol: "ongc", GlobalTicker: "CL=F"}

type pipelineFixture struct {
	pipeline    *CatalystPipeline
	classifier  *llm.ScriptedClient
	proposer    *llm.ScriptedClient
	signals     *fakeSignals
	decisions   *fakeDecisions
	suggestions *fakeSuggestions
	notifier    *recordingNotifier
	oplog       *verification.OpportunityLog
}

func newPipelineFixture(t *testing.T, mode models.MarketMode, classification, plan string) *pipelineFixture {
	t.Helper()
	logger := quietLogger()
	clk := clock.NewFixed(t0)
	policy := gate.DefaultPolicy()

	f := &pipelineFixture{
		classifier:  llm.NewScriptedClient(llm.Reply(classification)),
		proposer:    llm.NewScriptedClient(llm.Reply(plan)),
		signals:     &fakeSignals{},
		decisions:   &fakeDecisions{},
		suggestions: &fakeSuggestions{},
		notifier:    &recordingNotifier{},
		oplog:       verification.NewOpportunityLog(filepath.Join(t.TempDir(), "opportunities.jsonl")),
	}
	f.pipeline = NewCatalystPipeline(PipelineDeps{
		Classifier:  catalyst.NewClassifier(f.classifier, logger),
		Proposer:    catalyst.NewProposer(f.proposer, PolicySummary(policy), logger),
		Gate:        gate.New(policy, clk, logger),
		Signals:     f.signals,
		Portfolio:   &fakePortfolio{snapshot: models.PortfolioSnapshot{Cash: decimal.NewFromInt(100000)}},
		Decisions:   f.decisions,
		Suggestions: f.suggestions,
		Opportunity: f.oplog,
		Prices: &fakePrices{quotes: map[string]decimal.Decimal{
			"ONGC.NS": decimal.NewFromInt(100),
			"CL=F":    dec("78.40"),
		}},
		Bars:     &fakeBars{bars: map[string][]models.Bar{"ONGC.NS": flatBars(30, 100, 100000)}},
		Session:  fixedSession(mode),
		Notifier: f.notifier,
		Clock:    clk,
		Logger:   logger,
	}, PipelineConfig{LocalSuffix: ".NS"})
	return f
}

func opecHeadlines() []models.NewsItem {
	return []models.NewsItem{
		{Title: "OPEC+ agrees surprise output cut", Source: "wire", PublishedAt: t0.Add(-30 * time.Minute)},
		{Title: "Top 5 stocks to buy this week", Source: "blog", PublishedAt: t0.Add(-10 * time.Minute)},
	}
}

func TestProcess_ApprovedBuyBecomesPendingSuggestion(t *testing.T) {
	f := newPipelineFixture(t, models.MarketOpen, bullishCut, buyPlan)

	res, err := f.pipeline.Process(context.Background(), ongc, opecHeadlines())
	require.NoError(t, err)

	assert.Equal(t, "suggested", res.Stage)
	assert.Equal(t, 1, res.NoiseDropped)
	require.Equal(t, 1, f.classifier.Calls())
	assert.NotContains(t, f.classifier.Prompts[0], "Top 5 stocks")

	require.Len(t, f.signals.created, 1)
	sig := f.signals.created[0]
	assert.Equal(t, "ONGC", sig.Symbol)
	assert.Equal(t, models.SignalActive, sig.Status)
	assert.True(t, sig.IsCatalyst)

	require.Len(t, f.decisions.recorded, 1)
	d := f.decisions.recorded[0]
	assert.Equal(t, models.GateBuy, d.Action)
	assert.Equal(t, int64(200), d.Sizing.Quantity)
	require.NotNil(t, d.SignalID)
	assert.Equal(t, sig.ID, *d.SignalID)

	require.Len(t, f.suggestions.proposed, 1)
	s := f.suggestions.proposed[0]
	assert.Equal(t, models.ActionBuy, s.Action)
	assert.Equal(t, int64(200), s.Quantity)
	assert.True(t, s.StopLoss.Equal(decimal.NewFromInt(95)))
	assert.True(t, s.RiskReward.Equal(decimal.NewFromInt(2)))
	assert.NotNil(t, s.ExitCondition)
	assert.Equal(t, 7, s.Confidence)
	require.NotNil(t, s.PotentialCatalystID)

	assert.Len(t, f.notifier.decisions, 1)

	entries, err := f.oplog.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.OpportunityID, entries[0].ID)
	assert.Equal(t, "CL=F", entries[0].Market.GlobalTicker)
	assert.True(t, entries[0].Market.GlobalBasePrice.Equal(dec("78.40")))
	assert.Equal(t, "ONGC.NS", entries[0].Market.LocalTicker)
	assert.Equal(t, models.SentimentBullish, entries[0].Sentiment)
}

func TestProcess_ClosedMarketQueuesSignalAndWatches(t *testing.T) {
	f := newPipelineFixture(t, models.MarketClosed, bullishCut, buyPlan)

	res, err := f.pipeline.Process(context.Background(), ongc, opecHeadlines())
	require.NoError(t, err)

	require.Len(t, f.signals.created, 1)
	assert.Equal(t, models.SignalPendingMarketOpen, f.signals.created[0].Status)
	require.NotNil(t, res.Decision)
	assert.Equal(t, models.GateWatch, res.Decision.Action)
	assert.Equal(t, gate.GuardMarketMode, res.Decision.Guard)

	require.Len(t, f.suggestions.proposed, 1)
	assert.Equal(t, models.ActionWatch, f.suggestions.proposed[0].Action)
	assert.Nil(t, f.suggestions.proposed[0].ExitCondition)
}

func TestProcess_AllNoiseSkipsModel(t *testing.T) {
	f := newPipelineFixture(t, models.MarketOpen, bullishCut, buyPlan)

	res, err := f.pipeline.Process(context.Background(), ongc, []models.NewsItem{
		{Title: "Analyst upgrades ONGC to buy"},
		{Title: "ONGC Q2 results beat estimates"},
	})
	require.NoError(t, err)

	assert.Equal(t, "noise_filtered", res.Stage)
	assert.Equal(t, 2, res.NoiseDropped)
	assert.Equal(t, 0, f.classifier.Calls())
	assert.Empty(t, f.signals.potential)
	assert.Empty(t, f.signals.created)
}

func TestProcess_NonCatalystStopsAfterStoringSignal(t *testing.T) {
	f := newPipelineFixture(t, models.MarketOpen,
		`{"is_catalyst": false, "sentiment": "NEUTRAL", "impact_type": "NOISE", "confidence": 3}`, buyPlan)

	res, err := f.pipeline.Process(context.Background(), ongc, opecHeadlines())
	require.NoError(t, err)

	assert.Equal(t, "not_a_catalyst", res.Stage)
	require.Len(t, f.signals.created, 1)
	assert.False(t, f.signals.created[0].IsCatalyst)
	assert.Equal(t, 0, f.proposer.Calls())
	assert.Empty(t, f.decisions.recorded)

	entries, err := f.oplog.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcess_UnparseableClassificationStoresNothing(t *testing.T) {
	f := newPipelineFixture(t, models.MarketOpen, "oil might go up, who knows", buyPlan)

	res, err := f.pipeline.Process(context.Background(), ongc, opecHeadlines())
	require.NoError(t, err)

	assert.Equal(t, "classification_failed", res.Stage)
	require.NotNil(t, res.Batch)
	assert.True(t, res.Batch.Failed())
	assert.Empty(t, f.signals.created)
}

func TestProcess_FailedProposalIsAuditedButNotSuggested(t *testing.T) {
	f := newPipelineFixture(t, models.MarketOpen, bullishCut, "no plan today")

	res, err := f.pipeline.Process(context.Background(), ongc, opecHeadlines())
	require.NoError(t, err)

	require.Len(t, f.decisions.recorded, 1)
	assert.Equal(t, models.GatePass, f.decisions.recorded[0].Action)
	assert.Equal(t, gate.GuardProposal, f.decisions.recorded[0].Guard)
	assert.Empty(t, f.suggestions.proposed)
	assert.Equal(t, "gated", res.Stage)
}

func TestProcess_DecisionAuditFailureIsAnError(t *testing.T) {
	f := newPipelineFixture(t, models.MarketOpen, bullishCut, buyPlan)
	f.decisions.err = errBoom

	_, err := f.pipeline.Process(context.Background(), ongc, opecHeadlines())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.suggestions.proposed)
}

func TestProcessAll_IsolatesFailures(t *testing.T) {
	f := newPipelineFixture(t, models.MarketOpen, bullishCut, buyPlan)
	f.signals.createErr = errBoom

	results := f.pipeline.ProcessAll(context.Background(), []AssetBatch{
		{Asset: ongc, Items: opecHeadlines()},
		{Asset: models.Asset{Keyword: "steel", Symbol: "TATASTEEL"}, Items: []models.NewsItem{{Title: "Steel price target raised"}}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "error", results[0].Stage)
	assert.Equal(t, "noise_filtered", results[1].Stage)
}

func TestPolicySummary(t *testing.T) {
	s := PolicySummary(gate.DefaultPolicy())
	assert.Equal(t, 2.0, s.MinRewardRisk)
	assert.Equal(t, 20.0, s.MaxPositionPct)
	assert.Equal(t, 5, s.MaxOpenPositions)
	assert.Equal(t, 48, s.MinHoldHours)
	assert.Equal(t, 3, s.WashoutDays)
}
