package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suggestionCols = []string{"id", "symbol", "action", "confidence", "quantity", "entry_price",
	"target_price", "stop_loss", "min_hold_hours", "max_hold_hours", "trailing_stop", "entry_trigger",
	"exit_condition", "risk_reward", "rationale", "catalyst_signal_id", "potential_catalyst_id", "status",
	"superseded_by", "supersede_reason", "reviewed_at", "created_at"}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func buySuggestion() *models.CatalystSuggestion {
	return &models.CatalystSuggestion{
		Symbol:       "ONGC",
		Action:       models.ActionBuy,
		Confidence:   8,
		Quantity:     200,
		EntryPrice:   decimal.NewFromInt(100),
		TargetPrice:  decimal.NewFromInt(110),
		StopLoss:     decimal.NewFromInt(95),
		MinHoldHours: 48,
		MaxHoldHours: 336,
		TrailingStop: true,
		RiskReward:   decimal.NewFromInt(2),
		Rationale:    "supply cut",
	}
}

func TestSuggestionRepository_InsertSuperseding(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	prev := int64(11)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`INSERT INTO catalyst_suggestions`).
		WithArgs(append(anyArgs(16), models.SuggestionPending, now)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mockPool.ExpectExec(`UPDATE catalyst_suggestions SET status`).
		WithArgs(models.SuggestionSuperseded, int64(12), "newer catalyst", now, prev, models.SuggestionPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	s := buySuggestion()
	err = NewSuggestionRepository(mockPool).InsertSuperseding(context.Background(), s, &prev, "newer catalyst", now)
	require.NoError(t, err)

	assert.Equal(t, int64(12), s.ID)
	assert.Equal(t, models.SuggestionPending, s.Status)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSuggestionRepository_InsertSupersedingRollsBack(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	prev := int64(11)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`INSERT INTO catalyst_suggestions`).
		WithArgs(anyArgs(18)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mockPool.ExpectExec(`UPDATE catalyst_suggestions SET status`).
		WithArgs(anyArgs(6)...).
		WillReturnError(errors.New("deadlock detected"))
	mockPool.ExpectRollback()

	err = NewSuggestionRepository(mockPool).InsertSuperseding(context.Background(), buySuggestion(), &prev, "newer", now)
	assert.ErrorContains(t, err, "deadlock detected")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSuggestionRepository_FindPendingBySymbol(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	signalID := int64(4)
	exit := []byte(`{"phase":2,"stop_price":"101","hard_stop":"95","high_water":"104","updated_at":"2025-06-02T10:00:00Z"}`)

	mockPool.ExpectQuery(`FROM catalyst_suggestions WHERE symbol`).
		WithArgs("ONGC", models.SuggestionPending).
		WillReturnRows(pgxmock.NewRows(suggestionCols).AddRow(
			int64(9), "ONGC", "BUY", 8, int64(200), decimal.NewFromInt(100),
			decimal.NewFromInt(110), decimal.NewFromInt(95), 48, 336, true, "",
			exit, decimal.NewFromInt(2), "supply cut", &signalID, nil, "pending",
			nil, "", nil, now))
	mockPool.ExpectQuery(`FROM catalyst_suggestions WHERE symbol`).
		WithArgs("TCS", models.SuggestionPending).
		WillReturnError(pgx.ErrNoRows)

	repo := NewSuggestionRepository(mockPool)
	s, err := repo.FindPendingBySymbol(context.Background(), "ONGC")
	require.NoError(t, err)
	assert.Equal(t, models.ActionBuy, s.Action)
	require.NotNil(t, s.CatalystSignalID)
	assert.Equal(t, int64(4), *s.CatalystSignalID)
	assert.Nil(t, s.PotentialCatalystID)
	require.NotNil(t, s.ExitCondition)
	assert.Equal(t, models.PhaseMovingAverage, s.ExitCondition.Phase)
	assert.True(t, s.ExitCondition.StopPrice.Equal(decimal.NewFromInt(101)))

	_, err = repo.FindPendingBySymbol(context.Background(), "TCS")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSuggestionRepository_Review(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	mockPool.ExpectExec(`UPDATE catalyst_suggestions SET status`).
		WithArgs(models.SuggestionApproved, now, int64(3), models.SuggestionPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec(`UPDATE catalyst_suggestions SET status`).
		WithArgs(models.SuggestionRejected, now, int64(4), models.SuggestionPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewSuggestionRepository(mockPool)
	require.NoError(t, repo.Review(context.Background(), 3, models.SuggestionApproved, now))
	assert.ErrorIs(t, repo.Review(context.Background(), 4, models.SuggestionRejected, now), ErrNotPending)
	assert.Error(t, repo.Review(context.Background(), 5, models.SuggestionExpired, now))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSuggestionRepository_UpdateExitCondition(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec(`UPDATE catalyst_suggestions SET exit_condition`).
		WithArgs(pgxmock.AnyArg(), int64(8)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ec := &models.ExitCondition{Phase: models.PhaseWide, StopPrice: decimal.NewFromInt(94)}
	err = NewSuggestionRepository(mockPool).UpdateExitCondition(context.Background(), 8, ec)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
