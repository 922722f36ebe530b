package verification

import (
	"context"
	"io"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var fired = time.Date(2025, 6, 2, 4, 0, 0, 0, time.UTC)

type fakePrices struct {
	quotes map[string]decimal.Decimal
	errs   map[string]error
	calls  int
}

func (f *fakePrices) Name() string { return "fake" }

func (f *fakePrices) CurrentPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	f.calls++
	if err, ok := f.errs[ticker]; ok {
		return decimal.Zero, err
	}
	return f.quotes[ticker], nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func crudeEntry(sentiment models.Sentiment) *models.OpportunityLogEntry {
	return &models.OpportunityLogEntry{
		ID:         "e1",
		Timestamp:  fired,
		Keyword:    "crude oil",
		Symbol:     "ONGC",
		Headline:   "OPEC+ agrees deeper output cut",
		Sentiment:  sentiment,
		ImpactType: models.ImpactSupplyShock,
		Confidence: 8,
		Market: models.MarketState{
			GlobalTicker:    "CL=F",
			GlobalBasePrice: decimal.NewFromInt(100),
		},
	}
}
