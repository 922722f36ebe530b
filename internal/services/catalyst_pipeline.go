package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/catalyst"
	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/gate"
	"github.com/irfndi/catalyst-ai-go/internal/market"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/notification"
	"github.com/irfndi/catalyst-ai-go/internal/suggestion"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type SignalWriter interface {
	RecordPotential(ctx context.Context, symbol, keyword, headline string) (int64, error)
	Create(ctx context.Context, s *models.CatalystSignal) error
}

type PortfolioReader interface {
	Snapshot(ctx context.Context, now time.Time, lookback time.Duration) (models.PortfolioSnapshot, error)
}

type DecisionRecorder interface {
	Record(ctx context.Context, d models.Decision) error
}

type SuggestionProposer interface {
	Propose(ctx context.Context, s models.CatalystSuggestion) (suggestion.StoredSuggestion, error)
}

type OpportunityAppender interface {
	Append(entry *models.OpportunityLogEntry) error
}

// SessionClock reports the exchange session; *market.Calendar implements it.
type SessionClock interface {
	Mode(t time.Time) models.MarketMode
}

type PipelineConfig struct {
	Source              string
	LocalSuffix         string
	DefaultGlobalTicker string
	TradeLookback       time.Duration
	BarDays             int
}

// PipelineDeps groups the collaborators of CatalystPipeline.
type PipelineDeps struct {
	Classifier  *catalyst.Classifier
	Proposer    *catalyst.Proposer
	Gate        *gate.Gate
	Signals     SignalWriter
	Portfolio   PortfolioReader
	Decisions   DecisionRecorder
	Suggestions SuggestionProposer
	Opportunity OpportunityAppender
	Prices      market.PriceSource
	Bars        market.BarSource
	Session     SessionClock
	Notifier    notification.Notifier
	Clock       clock.Clock
	Logger      *logrus.Logger
}

// PipelineResult records how far one batch got through the pipeline.
type PipelineResult struct {
	Asset         models.Asset                 `json:"asset"`
	HeadlinesIn   int                          `json:"headlines_in"`
	NoiseDropped  int                          `json:"noise_dropped"`
	Batch         *models.BatchResult          `json:"batch,omitempty"`
	Signal        *models.CatalystSignal       `json:"signal,omitempty"`
	OpportunityID string                       `json:"opportunity_id,omitempty"`
	Proposal      *catalyst.TradeProposal      `json:"proposal,omitempty"`
	Decision      *models.Decision             `json:"decision,omitempty"`
	Suggestion    *suggestion.StoredSuggestion `json:"suggestion,omitempty"`
	Stage         string                       `json:"stage"`
	Warnings      []string                     `json:"warnings,omitempty"`
}

// CatalystPipeline runs headlines for one asset through noise filtering,
// classification, proposal, the gate and the suggestion store.
type CatalystPipeline struct {
	deps        PipelineDeps
	cfg         PipelineConfig
	instruments *InstrumentLoader
}

func NewCatalystPipeline(deps PipelineDeps, cfg PipelineConfig) *CatalystPipeline {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.Noop{}
	}
	if cfg.TradeLookback <= 0 {
		cfg.TradeLookback = 7 * 24 * time.Hour
	}
	if cfg.BarDays <= 0 {
		cfg.BarDays = 60
	}
	if cfg.Source == "" {
		cfg.Source = "news"
	}
	return &CatalystPipeline{
		deps:        deps,
		cfg:         cfg,
		instruments: NewInstrumentLoader(deps.Prices, deps.Bars, deps.Gate.Policy(), cfg.LocalSuffix, cfg.BarDays),
	}
}

// Process returns an error only when the batch could not be audited; guard
// failures and model failures are part of the result.
func (p *CatalystPipeline) Process(ctx context.Context, asset models.Asset, items []models.NewsItem) (*PipelineResult, error) {
	asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
	res := &PipelineResult{Asset: asset, HeadlinesIn: len(items)}
	log := p.deps.Logger.WithFields(logrus.Fields{
		"component": "catalyst_pipeline",
		"symbol":    asset.Symbol,
		"keyword":   asset.Keyword,
	})

	kept := catalyst.FilterNoise(items)
	res.NoiseDropped = len(items) - len(kept)
	if len(kept) == 0 {
		res.Stage = "noise_filtered"
		log.WithField("dropped", res.NoiseDropped).Info("All headlines filtered as noise")
		return res, nil
	}

	var potentialID *int64
	if id, err := p.deps.Signals.RecordPotential(ctx, asset.Symbol, asset.Keyword, kept[0].Title); err != nil {
		res.warn(log, "potential catalyst not recorded: %v", err)
	} else {
		potentialID = &id
	}

	batch := p.deps.Classifier.AnalyzeBatch(ctx, kept, asset)
	res.Batch = &batch
	if batch.Failed() {
		res.Stage = "classification_failed"
		return res, nil
	}

	now := p.deps.Clock.Now()
	mode := p.deps.Session.Mode(now)
	status := models.SignalActive
	if mode != models.MarketOpen {
		status = models.SignalPendingMarketOpen
	}

	sig := models.NewCatalystSignal(asset, batch, p.cfg.Source, latestPublished(kept, now), status)
	if err := p.deps.Signals.Create(ctx, &sig); err != nil {
		return res, fmt.Errorf("failed to store signal for %s: %w", asset.Symbol, err)
	}
	res.Signal = &sig

	if !sig.IsCatalyst {
		res.Stage = "not_a_catalyst"
		return res, nil
	}

	localTicker := asset.LocalTicker
	if localTicker == "" {
		localTicker = p.instruments.Ticker(asset.Symbol)
	}
	instrument, warnings := p.instruments.Load(ctx, asset.Symbol, localTicker)
	for _, w := range warnings {
		res.warn(log, "%s", w)
	}

	res.OpportunityID = p.logOpportunity(ctx, res, log, asset, sig, localTicker, instrument.LastPrice, now)

	snapshot, err := p.deps.Portfolio.Snapshot(ctx, now, p.cfg.TradeLookback)
	if err != nil {
		return res, fmt.Errorf("failed to load portfolio: %w", err)
	}

	proposal := p.deps.Proposer.Propose(ctx, sig, snapshot, instrument)
	res.Proposal = &proposal

	req := gate.Request{
		Symbol:          asset.Symbol,
		Action:          proposal.Action,
		SignalID:        &sig.ID,
		IsCatalyst:      sig.IsCatalyst,
		ImpactType:      sig.ImpactType,
		Confidence:      sig.Confidence,
		Entry:           proposal.EntryPrice,
		Target:          proposal.TargetPrice,
		Stop:            proposal.StopLoss,
		Quantity:        proposal.Quantity,
		MinHoldHours:    proposal.MinHoldHours,
		MaxHoldHours:    proposal.MaxHoldHours,
		ProposalFailure: proposal.FailureReason,
		Instrument:      instrument,
		MarketMode:      mode,
	}

	decision := p.deps.Gate.Evaluate(ctx, req, snapshot)
	res.Decision = &decision
	res.Stage = "gated"

	if err := p.deps.Decisions.Record(ctx, decision); err != nil {
		return res, fmt.Errorf("failed to record gate decision: %w", err)
	}

	if s, ok := suggestionFromDecision(decision, proposal, sig, potentialID); ok && !proposal.Failed() {
		stored, err := p.deps.Suggestions.Propose(ctx, s)
		if err != nil {
			res.warn(log, "suggestion not stored: %v", err)
		} else {
			res.Suggestion = &stored
			res.Warnings = append(res.Warnings, stored.Warnings...)
			res.Stage = "suggested"
		}
	}

	if err := p.deps.Notifier.NotifyDecision(ctx, decision); err != nil {
		res.warn(log, "notification failed: %v", err)
	}

	return res, nil
}

func (r *PipelineResult) warn(log *logrus.Entry, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	log.Warn(msg)
}

func (p *CatalystPipeline) logOpportunity(ctx context.Context, res *PipelineResult, log *logrus.Entry, asset models.Asset, sig models.CatalystSignal, localTicker string, localPrice decimal.Decimal, now time.Time) string {
	if p.deps.Opportunity == nil {
		return ""
	}

	globalTicker := asset.GlobalTicker
	if globalTicker == "" {
		globalTicker = p.cfg.DefaultGlobalTicker
	}
	state := models.MarketState{LocalTicker: localTicker, LocalBasePrice: localPrice}
	if globalTicker != "" {
		state.GlobalTicker = globalTicker
		price, err := p.instruments.Price(ctx, globalTicker)
		if err != nil {
			res.warn(log, "%v", err)
		}
		state.GlobalBasePrice = price
	} else {
		state.GlobalTicker = localTicker
		state.GlobalBasePrice = localPrice
	}

	entry := &models.OpportunityLogEntry{
		Timestamp:  now,
		Keyword:    asset.Keyword,
		Symbol:     asset.Symbol,
		Headline:   sig.Headline,
		Sentiment:  sig.Sentiment,
		ImpactType: sig.ImpactType,
		Confidence: sig.Confidence,
		Market:     state,
	}
	if err := p.deps.Opportunity.Append(entry); err != nil {
		res.warn(log, "opportunity log append failed: %v", err)
		return ""
	}
	return entry.ID
}

func latestPublished(items []models.NewsItem, fallback time.Time) time.Time {
	var latest time.Time
	for _, it := range items {
		if it.PublishedAt.After(latest) {
			latest = it.PublishedAt
		}
	}
	if latest.IsZero() {
		return fallback
	}
	return latest
}

// suggestionFromDecision keeps BUY, SELL and WATCH outcomes for review.
func suggestionFromDecision(d models.Decision, proposal catalyst.TradeProposal, sig models.CatalystSignal, potentialID *int64) (models.CatalystSuggestion, bool) {
	var action models.TradeAction
	switch d.Action {
	case models.GateBuy:
		action = models.ActionBuy
	case models.GateSell:
		action = models.ActionSell
	case models.GateWatch:
		action = models.ActionWatch
	default:
		return models.CatalystSuggestion{}, false
	}

	confidence := proposal.Confidence
	if confidence == 0 {
		confidence = sig.Confidence
	}

	s := models.CatalystSuggestion{
		Symbol:              d.Symbol,
		Action:              action,
		Confidence:          confidence,
		Quantity:            d.Sizing.Quantity,
		EntryPrice:          proposal.EntryPrice,
		TargetPrice:         proposal.TargetPrice,
		StopLoss:            proposal.StopLoss,
		MinHoldHours:        proposal.MinHoldHours,
		MaxHoldHours:        proposal.MaxHoldHours,
		TrailingStop:        proposal.TrailingStop,
		EntryTrigger:        proposal.EntryTrigger,
		RiskReward:          models.RiskRewardRatio(proposal.EntryPrice, proposal.TargetPrice, proposal.StopLoss),
		Rationale:           d.Reason(),
		CatalystSignalID:    &sig.ID,
		PotentialCatalystID: potentialID,
	}

	if action == models.ActionBuy {
		s.EntryPrice = d.Risk.Entry
		s.TargetPrice = d.Risk.Target
		s.StopLoss = d.Risk.Stop
		s.RiskReward = d.Risk.RewardRisk
		s.MinHoldHours = d.Risk.MinHoldHours
		s.MaxHoldHours = d.Risk.MaxHoldHours
		s.TrailingStop = d.Risk.TrailingStop
		s.ExitCondition = d.Risk.Exit
	}
	return s, true
}

// PolicySummary quotes the gate thresholds to the proposal prompt.
func PolicySummary(p gate.Policy) catalyst.PolicySummary {
	return catalyst.PolicySummary{
		MinRewardRisk:    p.MinRewardRisk.InexactFloat64(),
		MaxPositionPct:   p.MaxPositionPct.InexactFloat64(),
		MaxOpenPositions: p.MaxOpenPositions,
		MinHoldHours:     p.MinHoldHours(),
		WashoutDays:      int(p.Washout.Hours() / 24),
	}
}

// AssetBatch is the headlines collected for one asset in a polling pass.
type AssetBatch struct {
	Asset models.Asset      `json:"asset" validate:"required"`
	Items []models.NewsItem `json:"items" validate:"required,min=1,dive"`
}

// ProcessAll runs every batch; a failing batch is logged and does not stop the rest.
func (p *CatalystPipeline) ProcessAll(ctx context.Context, batches []AssetBatch) []*PipelineResult {
	results := make([]*PipelineResult, 0, len(batches))
	for _, b := range batches {
		if ctx.Err() != nil {
			break
		}
		res, err := p.Process(ctx, b.Asset, b.Items)
		if err != nil {
			p.deps.Logger.WithError(err).WithField("symbol", b.Asset.Symbol).Error("Catalyst pipeline failed")
			res.Stage = "error"
			res.Warnings = append(res.Warnings, err.Error())
		}
		results = append(results, res)
	}
	return results
}
