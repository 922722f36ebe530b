package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/market"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/suggestion"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var t0 = time.Date(2025, 6, 2, 5, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakePrices struct {
	mu     sync.Mutex
	quotes map[string]decimal.Decimal
	errs   map[string]error
	calls  []string
}

func (f *fakePrices) Name() string { return "fake" }

func (f *fakePrices) CurrentPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ticker)
	if err, ok := f.errs[ticker]; ok {
		return decimal.Zero, err
	}
	if p, ok := f.quotes[ticker]; ok {
		return p, nil
	}
	return decimal.Zero, market.ErrPriceNotFound
}

type fakeBars struct {
	bars map[string][]models.Bar
	err  error
}

func (f *fakeBars) DailyBars(_ context.Context, ticker string, _ int) ([]models.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[ticker], nil
}

// flatBars returns n identical daily candles around px.
func flatBars(n int, px, volume float64) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{
			Time:   t0.AddDate(0, 0, i-n),
			Open:   px,
			High:   px + 1,
			Low:    px - 1,
			Close:  px,
			Volume: volume,
		}
	}
	return bars
}

type fixedSession models.MarketMode

func (s fixedSession) Mode(time.Time) models.MarketMode { return models.MarketMode(s) }

type fakeSignals struct {
	nextID    int64
	created   []models.CatalystSignal
	potential []string
	createErr error
}

func (f *fakeSignals) RecordPotential(_ context.Context, symbol, _, _ string) (int64, error) {
	f.potential = append(f.potential, symbol)
	return int64(len(f.potential)), nil
}

func (f *fakeSignals) Create(_ context.Context, s *models.CatalystSignal) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	s.ID = f.nextID
	f.created = append(f.created, *s)
	return nil
}

type fakePortfolio struct {
	snapshot models.PortfolioSnapshot
}

func (f *fakePortfolio) Snapshot(context.Context, time.Time, time.Duration) (models.PortfolioSnapshot, error) {
	return f.snapshot, nil
}

type fakeDecisions struct {
	recorded []models.Decision
	err      error
}

func (f *fakeDecisions) Record(_ context.Context, d models.Decision) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, d)
	return nil
}

type fakeSuggestions struct {
	proposed []models.CatalystSuggestion
}

func (f *fakeSuggestions) Propose(_ context.Context, s models.CatalystSuggestion) (suggestion.StoredSuggestion, error) {
	s.ID = int64(len(f.proposed) + 1)
	s.Status = models.SuggestionPending
	f.proposed = append(f.proposed, s)
	return suggestion.StoredSuggestion{Suggestion: s}, nil
}

type recordingNotifier struct {
	decisions []models.Decision
	summaries []models.VerificationRunSummary
	err       error
}

func (n *recordingNotifier) NotifyDecision(_ context.Context, d models.Decision) error {
	n.decisions = append(n.decisions, d)
	return n.err
}

func (n *recordingNotifier) NotifyVerification(_ context.Context, s models.VerificationRunSummary, _ models.CatalystVerificationMetrics) error {
	n.summaries = append(n.summaries, s)
	return n.err
}

var errBoom = errors.New("boom")
