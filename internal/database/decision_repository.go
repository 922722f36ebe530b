package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/irfndi/catalyst-ai-go/internal/models"
)

// DecisionRepository keeps the audit trail of gate evaluations.
type DecisionRepository struct {
	pool DatabasePool
}

func NewDecisionRepository(pool DatabasePool) *DecisionRepository {
	return &DecisionRepository{pool: pool}
}

func (r *DecisionRepository) Record(ctx context.Context, d models.Decision) error {
	sizing, err := json.Marshal(d.Sizing)
	if err != nil {
		return fmt.Errorf("failed to encode sizing: %w", err)
	}
	risk, err := json.Marshal(d.Risk)
	if err != nil {
		return fmt.Errorf("failed to encode risk: %w", err)
	}
	var funding []byte
	if d.Funding != nil {
		if funding, err = json.Marshal(d.Funding); err != nil {
			return fmt.Errorf("failed to encode funding leg: %w", err)
		}
	}

	query := `
		INSERT INTO gate_decisions (id, symbol, signal_id, requested, action, guard, rationale,
			sizing, risk, funding, market_mode, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.pool.Exec(ctx, query, d.ID, d.Symbol, d.SignalID, d.Requested, d.Action, d.Guard,
		d.Rationale, sizing, risk, funding, d.MarketMode, d.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("failed to record gate decision: %w", err)
	}
	return nil
}

// List returns the newest decisions, optionally for one symbol.
func (r *DecisionRepository) List(ctx context.Context, symbol string, limit int) ([]models.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, symbol, signal_id, requested, action, COALESCE(guard, ''), rationale,
			sizing, risk, funding, market_mode, evaluated_at
		FROM gate_decisions
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY evaluated_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list gate decisions: %w", err)
	}
	defer rows.Close()

	var out []models.Decision
	for rows.Next() {
		var (
			d                     models.Decision
			sizing, risk, funding []byte
		)
		if err := rows.Scan(&d.ID, &d.Symbol, &d.SignalID, &d.Requested, &d.Action, &d.Guard,
			&d.Rationale, &sizing, &risk, &funding, &d.MarketMode, &d.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan gate decision: %w", err)
		}
		if err := json.Unmarshal(sizing, &d.Sizing); err != nil {
			return nil, fmt.Errorf("invalid sizing for decision %s: %w", d.ID, err)
		}
		if err := json.Unmarshal(risk, &d.Risk); err != nil {
			return nil, fmt.Errorf("invalid risk for decision %s: %w", d.ID, err)
		}
		if len(funding) > 0 {
			var leg models.FundingLeg
			if err := json.Unmarshal(funding, &leg); err != nil {
				return nil, fmt.Errorf("invalid funding for decision %s: %w", d.ID, err)
			}
			d.Funding = &leg
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
