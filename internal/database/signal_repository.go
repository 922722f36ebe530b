package database

import (
	"context"
	"fmt"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/jackc/pgx/v5"
)

const signalColumns = `id, symbol, keyword, headline, COALESCE(source, ''), published_at,
	sentiment, impact_type, confidence, is_catalyst, COALESCE(summary, ''), COALESCE(reasoning, ''),
	status, created_at, updated_at`

// SignalRepository persists catalyst signals and the potential catalysts they came from.
type SignalRepository struct {
	pool DatabasePool
}

func NewSignalRepository(pool DatabasePool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// Create inserts the signal and fills in its id and timestamps.
func (r *SignalRepository) Create(ctx context.Context, s *models.CatalystSignal) error {
	query := `
		INSERT INTO catalyst_signals (symbol, keyword, headline, source, published_at, sentiment,
			impact_type, confidence, is_catalyst, summary, reasoning, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		s.Symbol, s.Keyword, s.Headline, s.Source, s.PublishedAt, s.Sentiment,
		s.ImpactType, s.Confidence, s.IsCatalyst, s.Summary, s.Reasoning, s.Status,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert catalyst signal: %w", err)
	}
	return nil
}

func (r *SignalRepository) Get(ctx context.Context, id int64) (*models.CatalystSignal, error) {
	query := `SELECT ` + signalColumns + ` FROM catalyst_signals WHERE id = $1`

	s, err := scanSignal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get catalyst signal %d: %w", id, notFound(err))
	}
	return s, nil
}

// Exists reports whether a catalyst signal with id is stored.
func (r *SignalRepository) Exists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM catalyst_signals WHERE id = $1)`, id)
}

// PotentialExists reports whether a potential catalyst with id is stored.
func (r *SignalRepository) PotentialExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM potential_catalysts WHERE id = $1)`, id)
}

func (r *SignalRepository) exists(ctx context.Context, query string, id int64) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check existence of %d: %w", id, err)
	}
	return ok, nil
}

// UpdateStatus moves a signal along its state machine. The update only applies
// if the row still holds the status it was read with.
func (r *SignalRepository) UpdateStatus(ctx context.Context, id int64, next models.SignalStatus, at time.Time) (*models.CatalystSignal, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.Status.ValidateTransition(next); err != nil {
		return nil, err
	}

	query := `UPDATE catalyst_signals SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	tag, err := r.pool.Exec(ctx, query, next, at, id, current.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to update signal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: signal %d changed concurrently", models.ErrInvalidTransition, id)
	}

	current.Status = next
	current.UpdatedAt = at
	return current, nil
}

// ActivatePending promotes every pending_market_open signal to active.
func (r *SignalRepository) ActivatePending(ctx context.Context, at time.Time) (int64, error) {
	query := `UPDATE catalyst_signals SET status = $1, updated_at = $2 WHERE status = $3`
	tag, err := r.pool.Exec(ctx, query, models.SignalActive, at, models.SignalPendingMarketOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to activate pending signals: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireStale expires active and pending signals created before cutoff.
func (r *SignalRepository) ExpireStale(ctx context.Context, cutoff, at time.Time) (int64, error) {
	query := `
		UPDATE catalyst_signals SET status = $1, updated_at = $2
		WHERE status IN ($3, $4) AND created_at < $5`
	tag, err := r.pool.Exec(ctx, query, models.SignalExpired, at,
		models.SignalActive, models.SignalPendingMarketOpen, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale signals: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns the newest signals, optionally filtered by status.
func (r *SignalRepository) List(ctx context.Context, status models.SignalStatus, limit int) ([]models.CatalystSignal, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + signalColumns + ` FROM catalyst_signals
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalyst signals: %w", err)
	}
	defer rows.Close()

	var out []models.CatalystSignal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalyst signal: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// RecordPotential stores a headline that passed the noise filter before classification.
func (r *SignalRepository) RecordPotential(ctx context.Context, symbol, keyword, headline string) (int64, error) {
	var id int64
	query := `INSERT INTO potential_catalysts (symbol, keyword, headline) VALUES ($1, $2, $3) RETURNING id`
	if err := r.pool.QueryRow(ctx, query, symbol, keyword, headline).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert potential catalyst: %w", err)
	}
	return id, nil
}

func scanSignal(row pgx.Row) (*models.CatalystSignal, error) {
	var s models.CatalystSignal
	err := row.Scan(&s.ID, &s.Symbol, &s.Keyword, &s.Headline, &s.Source, &s.PublishedAt,
		&s.Sentiment, &s.ImpactType, &s.Confidence, &s.IsCatalyst, &s.Summary, &s.Reasoning,
		&s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
