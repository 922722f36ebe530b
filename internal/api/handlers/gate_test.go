package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/gate"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockEvaluator struct{ mock.Mock }

func (m *MockEvaluator) Evaluate(ctx context.Context, req gate.Request, snapshot models.PortfolioSnapshot) models.Decision {
	return m.Called(ctx, req, snapshot).Get(0).(models.Decision)
}

type MockInstruments struct{ mock.Mock }

func (m *MockInstruments) Load(ctx context.Context, symbol, ticker string) (models.Instrument, []string) {
	args := m.Called(ctx, symbol, ticker)
	warnings, _ := args.Get(1).([]string)
	return args.Get(0).(models.Instrument), warnings
}

type MockPortfolio struct{ mock.Mock }

func (m *MockPortfolio) Snapshot(ctx context.Context, now time.Time, lookback time.Duration) (models.PortfolioSnapshot, error) {
	args := m.Called(ctx, now, lookback)
	return args.Get(0).(models.PortfolioSnapshot), args.Error(1)
}

type MockDecisions struct{ mock.Mock }

func (m *MockDecisions) Record(ctx context.Context, d models.Decision) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDecisions) List(ctx context.Context, symbol string, limit int) ([]models.Decision, error) {
	args := m.Called(ctx, symbol, limit)
	decisions, _ := args.Get(0).([]models.Decision)
	return decisions, args.Error(1)
}

type MockSession struct{ mock.Mock }

func (m *MockSession) Mode(t time.Time) models.MarketMode {
	return m.Called(t).Get(0).(models.MarketMode)
}

func TestGateHandler_Evaluate(t *testing.T) {
	instrument := models.Instrument{Symbol: "HINDALCO", LastPrice: decimal.NewFromInt(100)}
	snapshot := models.PortfolioSnapshot{Cash: decimal.NewFromInt(100000)}
	decision := models.Decision{Symbol: "HINDALCO", Requested: models.ActionBuy, Action: models.GateBuy, Rationale: []string{"approved"}}

	newHandler := func(record bool) (*GateHandler, *MockEvaluator, *MockDecisions) {
		ev := &MockEvaluator{}
		ev.On("Evaluate", mock.Anything, mock.MatchedBy(func(r gate.Request) bool {
			return r.Symbol == "HINDALCO" && r.MarketMode == models.MarketOpen &&
				r.Instrument.Symbol == "HINDALCO" && r.Entry.Equal(decimal.NewFromInt(100))
		}), snapshot).Return(decision)

		ins := &MockInstruments{}
		ins.On("Load", mock.Anything, "HINDALCO", "").Return(instrument, []string{"daily bars for HINDALCO.NS unavailable: timeout"})

		pf := &MockPortfolio{}
		pf.On("Snapshot", mock.Anything, t0, 7*24*time.Hour).Return(snapshot, nil)

		dec := &MockDecisions{}
		if record {
			dec.On("Record", mock.Anything, decision).Return(nil)
		}

		session := &MockSession{}
		session.On("Mode", t0).Return(models.MarketOpen)

		return NewGateHandler(ev, ins, pf, dec, session, clock.NewFixed(t0)), ev, dec
	}

	t.Run("evaluates without recording", func(t *testing.T) {
		h, ev, dec := newHandler(false)
		w := serve(http.MethodPost, "/evaluate", "/evaluate",
			`{"symbol":" hindalco ","action":"BUY","entry":100,"target":110,"stop":95}`, h.Evaluate)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "BUY", body["decision"].(map[string]interface{})["action"])
		assert.Len(t, body["warnings"], 1)
		ev.AssertExpectations(t)
		dec.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})

	t.Run("records when asked", func(t *testing.T) {
		h, _, dec := newHandler(true)
		w := serve(http.MethodPost, "/evaluate", "/evaluate",
			`{"symbol":"HINDALCO","action":"BUY","entry":"100","record":true}`, h.Evaluate)

		assert.Equal(t, http.StatusOK, w.Code)
		dec.AssertExpectations(t)
	})

	t.Run("unknown action", func(t *testing.T) {
		h, _, _ := newHandler(false)
		w := serve(http.MethodPost, "/evaluate", "/evaluate", `{"symbol":"HINDALCO","action":"SHORT"}`, h.Evaluate)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGateHandler_Evaluate_SnapshotError(t *testing.T) {
	pf := &MockPortfolio{}
	pf.On("Snapshot", mock.Anything, t0, mock.Anything).Return(models.PortfolioSnapshot{}, errors.New("db down"))
	ev := &MockEvaluator{}
	h := NewGateHandler(ev, &MockInstruments{}, pf, &MockDecisions{}, &MockSession{}, clock.NewFixed(t0))

	w := serve(http.MethodPost, "/evaluate", "/evaluate", `{"symbol":"HINDALCO","action":"BUY"}`, h.Evaluate)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	ev.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything, mock.Anything)
}

func TestGateHandler_ListDecisions(t *testing.T) {
	dec := &MockDecisions{}
	dec.On("List", mock.Anything, "HINDALCO", 5).Return([]models.Decision{{Symbol: "HINDALCO", Action: models.GatePass}}, nil)
	h := NewGateHandler(&MockEvaluator{}, &MockInstruments{}, &MockPortfolio{}, dec, &MockSession{}, clock.NewFixed(t0))

	w := serve(http.MethodGet, "/decisions", "/decisions?symbol=hindalco&limit=5", "", h.ListDecisions)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
	dec.AssertExpectations(t)
}
