package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PortfolioRepository reads the book the gate evaluates against.
type PortfolioRepository struct {
	pool DatabasePool
}

func NewPortfolioRepository(pool DatabasePool) *PortfolioRepository {
	return &PortfolioRepository{pool: pool}
}

// Snapshot loads holdings, cash and the trades executed since now-lookback.
func (r *PortfolioRepository) Snapshot(ctx context.Context, now time.Time, lookback time.Duration) (models.PortfolioSnapshot, error) {
	snap := models.PortfolioSnapshot{AsOf: now}

	holdings, err := r.Holdings(ctx)
	if err != nil {
		return snap, err
	}
	snap.Holdings = holdings

	if snap.Cash, err = r.Cash(ctx); err != nil {
		return snap, err
	}

	if snap.RecentTrades, err = r.Trades(ctx, now.Add(-lookback)); err != nil {
		return snap, err
	}
	return snap, nil
}

func (r *PortfolioRepository) Holdings(ctx context.Context) ([]models.Holding, error) {
	query := `
		SELECT symbol, quantity, avg_price, COALESCE(current_price, 0), opened_at
		FROM holdings WHERE quantity > 0 ORDER BY symbol`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var out []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.AvgPrice, &h.CurrentPrice, &h.OpenedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Cash returns the available balance; an empty table means zero.
func (r *PortfolioRepository) Cash(ctx context.Context) (decimal.Decimal, error) {
	var cash decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT amount FROM cash_balance WHERE id = 1`).Scan(&cash)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read cash balance: %w", err)
	}
	return cash, nil
}

// Trades returns trades executed at or after since, oldest first.
func (r *PortfolioRepository) Trades(ctx context.Context, since time.Time) ([]models.Trade, error) {
	query := `
		SELECT id, symbol, side, quantity, price, executed_at
		FROM trades WHERE executed_at >= $1 ORDER BY executed_at`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Quantity, &t.Price, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PortfolioRepository) UpdateCurrentPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE holdings SET current_price = $1 WHERE symbol = $2`, price, symbol)
	if err != nil {
		return fmt.Errorf("failed to update price for %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("holding %s: %w", symbol, ErrNotFound)
	}
	return nil
}
