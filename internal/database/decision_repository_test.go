package database

import (
	"context"
	"testing"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionRepository_Record(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	d := models.Decision{
		ID:          "6f1c2b9e-3d7a-4c55-9d1e-0a4b7c2e8f10",
		Symbol:      "ONGC",
		Requested:   models.ActionBuy,
		Action:      models.GatePass,
		Guard:       "reward_risk",
		Rationale:   []string{"reward/risk 1.00 below 2.00"},
		MarketMode:  models.MarketOpen,
		EvaluatedAt: now,
	}

	mockPool.ExpectExec(`INSERT INTO gate_decisions`).
		WithArgs(d.ID, "ONGC", (*int64)(nil), models.ActionBuy, models.GatePass, "reward_risk",
			d.Rationale, pgxmock.AnyArg(), pgxmock.AnyArg(), []byte(nil), models.MarketOpen, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewDecisionRepository(mockPool).Record(context.Background(), d))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestDecisionRepository_List(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "symbol", "signal_id", "requested", "action", "guard", "rationale",
		"sizing", "risk", "funding", "market_mode", "evaluated_at"}

	mockPool.ExpectQuery(`FROM gate_decisions`).
		WithArgs("ONGC", 10).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"d1", "ONGC", nil, "BUY", "BUY", "", []string{"approved"},
			[]byte(`{"quantity":200,"notional":"20000","position_pct":20,"liquidity_cap":0,"capped_by_liquidity":false}`),
			[]byte(`{"entry":"100","target":"110","stop":"95","reward_risk":"2","projected_profit":"2000","round_trip_cost":"40","min_hold_hours":48,"max_hold_hours":336,"trailing_stop":true}`),
			[]byte(`{"symbol":"INFY","quantity":10,"price":"500","proceeds":"5000"}`),
			"OPEN", now))

	out, err := NewDecisionRepository(mockPool).List(context.Background(), "ONGC", 10)
	require.NoError(t, err)
	require.Len(t, out, 1)

	d := out[0]
	assert.Equal(t, models.GateBuy, d.Action)
	assert.Equal(t, int64(200), d.Sizing.Quantity)
	assert.True(t, d.Risk.Stop.Equal(decimal.NewFromInt(95)))
	require.NotNil(t, d.Funding)
	assert.Equal(t, "INFY", d.Funding.Symbol)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
