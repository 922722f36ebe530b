package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/database"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/suggestion"
	"github.com/irfndi/catalyst-ai-go/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSuggestionStore struct{ mock.Mock }

func (m *MockSuggestionStore) Propose(ctx context.Context, s models.CatalystSuggestion) (suggestion.StoredSuggestion, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(suggestion.StoredSuggestion), args.Error(1)
}

func (m *MockSuggestionStore) Approve(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSuggestionStore) Reject(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSuggestionStore) Get(ctx context.Context, id int64) (*models.CatalystSuggestion, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.CatalystSuggestion)
	return s, args.Error(1)
}

func (m *MockSuggestionStore) List(ctx context.Context, status models.SuggestionStatus, limit int) ([]models.CatalystSuggestion, error) {
	args := m.Called(ctx, status, limit)
	list, _ := args.Get(0).([]models.CatalystSuggestion)
	return list, args.Error(1)
}

func (m *MockSuggestionStore) Since(ctx context.Context, t time.Time) ([]models.CatalystSuggestion, error) {
	args := m.Called(ctx, t)
	list, _ := args.Get(0).([]models.CatalystSuggestion)
	return list, args.Error(1)
}

type MockTrades struct{ mock.Mock }

func (m *MockTrades) Trades(ctx context.Context, since time.Time) ([]models.Trade, error) {
	args := m.Called(ctx, since)
	trades, _ := args.Get(0).([]models.Trade)
	return trades, args.Error(1)
}

func newSuggestionHandler(store *MockSuggestionStore, trades *MockTrades) *SuggestionHandler {
	return NewSuggestionHandler(store, store, trades, suggestion.DefaultMatchPolicy(), clock.NewFixed(t0))
}

func TestSuggestionHandler_List(t *testing.T) {
	store := &MockSuggestionStore{}
	store.On("List", mock.Anything, models.SuggestionApproved, 50).
		Return([]models.CatalystSuggestion{{ID: 3, Symbol: "HINDALCO", Status: models.SuggestionApproved}}, nil)
	h := newSuggestionHandler(store, &MockTrades{})

	w := serve(http.MethodGet, "/suggestions", "/suggestions?status=approved", "", h.List)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = serve(http.MethodGet, "/suggestions", "/suggestions?status=bogus", "", h.List)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertExpectations(t)
}

func TestSuggestionHandler_Get(t *testing.T) {
	store := &MockSuggestionStore{}
	store.On("Get", mock.Anything, int64(7)).Return(&models.CatalystSuggestion{ID: 7, Symbol: "TATASTEEL"}, nil)
	store.On("Get", mock.Anything, int64(8)).Return(nil, database.ErrNotFound)
	h := newSuggestionHandler(store, &MockTrades{})

	w := serve(http.MethodGet, "/suggestions/:id", "/suggestions/7", "", h.Get)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TATASTEEL", decode(t, w)["symbol"])

	assert.Equal(t, http.StatusNotFound, serve(http.MethodGet, "/suggestions/:id", "/suggestions/8", "", h.Get).Code)
	assert.Equal(t, http.StatusBadRequest, serve(http.MethodGet, "/suggestions/:id", "/suggestions/abc", "", h.Get).Code)
}

func TestSuggestionHandler_Create(t *testing.T) {
	store := &MockSuggestionStore{}
	store.On("Propose", mock.Anything, mock.MatchedBy(func(s models.CatalystSuggestion) bool {
		return s.ID == 0 && s.Symbol == "HINDALCO" && s.ExitCondition == nil
	})).Return(suggestion.StoredSuggestion{
		Suggestion: models.CatalystSuggestion{ID: 11, Symbol: "HINDALCO", Status: models.SuggestionPending},
	}, nil).Once()
	store.On("Propose", mock.Anything, mock.Anything).
		Return(suggestion.StoredSuggestion{}, utils.NewFieldError("stop_loss", "BUY requires a stop loss below entry")).Once()
	h := newSuggestionHandler(store, &MockTrades{})

	w := serve(http.MethodPost, "/suggestions", "/suggestions",
		`{"id":99,"symbol":"HINDALCO","action":"BUY","entry_price":100,"stop_loss":95,"exit_condition":{"phase":1}}`, h.Create)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(11), decode(t, w)["suggestion"].(map[string]interface{})["id"])

	w = serve(http.MethodPost, "/suggestions", "/suggestions", `{"symbol":"HINDALCO","action":"BUY","entry_price":100}`, h.Create)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestionHandler_Review(t *testing.T) {
	store := &MockSuggestionStore{}
	store.On("Approve", mock.Anything, int64(4)).Return(nil)
	store.On("Reject", mock.Anything, int64(4)).Return(database.ErrNotPending)
	h := newSuggestionHandler(store, &MockTrades{})

	w := serve(http.MethodPost, "/suggestions/:id/approve", "/suggestions/4/approve", "", h.Approve)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", decode(t, w)["status"])

	w = serve(http.MethodPost, "/suggestions/:id/reject", "/suggestions/4/reject", "", h.Reject)
	assert.Equal(t, http.StatusConflict, w.Code)
	store.AssertExpectations(t)
}

func TestSuggestionHandler_Matches(t *testing.T) {
	store := &MockSuggestionStore{}
	trades := &MockTrades{}
	since := t0.AddDate(0, 0, -7)
	window := time.Duration(suggestion.DefaultMatchPolicy().WindowDays) * 24 * time.Hour

	trades.On("Trades", mock.Anything, since).Return([]models.Trade{
		{ID: 1, Symbol: "HINDALCO", Side: models.ActionBuy, Quantity: 10, Price: decimal.NewFromInt(100), ExecutedAt: t0.Add(-2 * time.Hour)},
	}, nil)
	store.On("Since", mock.Anything, since.Add(-window)).Return([]models.CatalystSuggestion{
		{ID: 5, Symbol: "HINDALCO", Action: models.ActionBuy, EntryPrice: decimal.NewFromInt(100), Status: models.SuggestionApproved, CreatedAt: t0.Add(-3 * time.Hour)},
	}, nil)
	h := newSuggestionHandler(store, trades)

	w := serve(http.MethodGet, "/suggestions/matches", "/suggestions/matches", "", h.Matches)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["trades"])
	assert.Equal(t, float64(1), body["suggestions"])
	trades.AssertExpectations(t)
	store.AssertExpectations(t)

	w = serve(http.MethodGet, "/suggestions/matches", "/suggestions/matches?days=0", "", h.Matches)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
