package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/jackc/pgx/v5"
)

// ErrNotPending is returned when a review targets a suggestion that already left pending.
var ErrNotPending = errors.New("suggestion is not pending")

const suggestionColumns = `id, symbol, action, confidence, quantity, entry_price, target_price, stop_loss,
	min_hold_hours, max_hold_hours, trailing_stop, COALESCE(entry_trigger, ''), exit_condition,
	risk_reward, COALESCE(rationale, ''), catalyst_signal_id, potential_catalyst_id, status,
	superseded_by, COALESCE(supersede_reason, ''), reviewed_at, created_at`

type SuggestionRepository struct {
	pool DatabasePool
}

func NewSuggestionRepository(pool DatabasePool) *SuggestionRepository {
	return &SuggestionRepository{pool: pool}
}

func (r *SuggestionRepository) Get(ctx context.Context, id int64) (*models.CatalystSuggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM catalyst_suggestions WHERE id = $1`

	s, err := scanSuggestion(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion %d: %w", id, notFound(err))
	}
	return s, nil
}

// FindPendingBySymbol returns the newest pending suggestion for symbol or ErrNotFound.
func (r *SuggestionRepository) FindPendingBySymbol(ctx context.Context, symbol string) (*models.CatalystSuggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM catalyst_suggestions
		WHERE symbol = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`

	s, err := scanSuggestion(r.pool.QueryRow(ctx, query, symbol, models.SuggestionPending))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// InsertSuperseding stores s and, when prevID is set, marks that suggestion
// superseded by it. Both writes share one transaction.
func (r *SuggestionRepository) InsertSuperseding(ctx context.Context, s *models.CatalystSuggestion, prevID *int64, reason string, at time.Time) error {
	exit, err := marshalExit(s.ExitCondition)
	if err != nil {
		return err
	}

	return InTx(ctx, r.pool, func(q Querier) error {
		insert := `
			INSERT INTO catalyst_suggestions (symbol, action, confidence, quantity, entry_price,
				target_price, stop_loss, min_hold_hours, max_hold_hours, trailing_stop, entry_trigger,
				exit_condition, risk_reward, rationale, catalyst_signal_id, potential_catalyst_id,
				status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id`

		err := q.QueryRow(ctx, insert,
			s.Symbol, s.Action, s.Confidence, s.Quantity, s.EntryPrice,
			s.TargetPrice, s.StopLoss, s.MinHoldHours, s.MaxHoldHours, s.TrailingStop, s.EntryTrigger,
			exit, s.RiskReward, s.Rationale, s.CatalystSignalID, s.PotentialCatalystID,
			models.SuggestionPending, at,
		).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("failed to insert suggestion: %w", err)
		}
		s.Status = models.SuggestionPending
		s.CreatedAt = at

		if prevID == nil {
			return nil
		}

		supersede := `
			UPDATE catalyst_suggestions
			SET status = $1, superseded_by = $2, supersede_reason = $3, reviewed_at = $4
			WHERE id = $5 AND status = $6`
		if _, err := q.Exec(ctx, supersede, models.SuggestionSuperseded, s.ID, reason, at,
			*prevID, models.SuggestionPending); err != nil {
			return fmt.Errorf("failed to supersede suggestion %d: %w", *prevID, err)
		}
		return nil
	})
}

// Review moves a pending suggestion to approved or rejected.
func (r *SuggestionRepository) Review(ctx context.Context, id int64, status models.SuggestionStatus, at time.Time) error {
	if status != models.SuggestionApproved && status != models.SuggestionRejected {
		return fmt.Errorf("cannot review suggestion into %q", status)
	}

	query := `UPDATE catalyst_suggestions SET status = $1, reviewed_at = $2 WHERE id = $3 AND status = $4`
	tag, err := r.pool.Exec(ctx, query, status, at, id, models.SuggestionPending)
	if err != nil {
		return fmt.Errorf("failed to review suggestion %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("suggestion %d: %w", id, ErrNotPending)
	}
	return nil
}

// ExpirePending expires pending suggestions created before cutoff.
func (r *SuggestionRepository) ExpirePending(ctx context.Context, cutoff, at time.Time) (int64, error) {
	query := `UPDATE catalyst_suggestions SET status = $1, reviewed_at = $2 WHERE status = $3 AND created_at < $4`
	tag, err := r.pool.Exec(ctx, query, models.SuggestionExpired, at, models.SuggestionPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending suggestions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns the newest suggestions, optionally filtered by status.
func (r *SuggestionRepository) List(ctx context.Context, status models.SuggestionStatus, limit int) ([]models.CatalystSuggestion, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + suggestionColumns + ` FROM catalyst_suggestions
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2`
	return r.query(ctx, query, string(status), limit)
}

// OpenPositions lists approved BUY suggestions that carry a trailing exit.
func (r *SuggestionRepository) OpenPositions(ctx context.Context) ([]models.CatalystSuggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM catalyst_suggestions
		WHERE status = $1 AND action = $2 AND trailing_stop
		ORDER BY created_at`
	return r.query(ctx, query, models.SuggestionApproved, models.ActionBuy)
}

// Since returns every suggestion created at or after t, newest first.
func (r *SuggestionRepository) Since(ctx context.Context, t time.Time) ([]models.CatalystSuggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM catalyst_suggestions
		WHERE created_at >= $1 ORDER BY created_at DESC`
	return r.query(ctx, query, t)
}

// UpdateExitCondition persists the trailing-stop state of a suggestion.
func (r *SuggestionRepository) UpdateExitCondition(ctx context.Context, id int64, ec *models.ExitCondition) error {
	exit, err := marshalExit(ec)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `UPDATE catalyst_suggestions SET exit_condition = $1 WHERE id = $2`, exit, id)
	if err != nil {
		return fmt.Errorf("failed to update exit condition for %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("suggestion %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SuggestionRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.CatalystSuggestion, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	var out []models.CatalystSuggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSuggestion(row pgx.Row) (*models.CatalystSuggestion, error) {
	var (
		s    models.CatalystSuggestion
		exit []byte
	)
	err := row.Scan(&s.ID, &s.Symbol, &s.Action, &s.Confidence, &s.Quantity, &s.EntryPrice,
		&s.TargetPrice, &s.StopLoss, &s.MinHoldHours, &s.MaxHoldHours, &s.TrailingStop,
		&s.EntryTrigger, &exit, &s.RiskReward, &s.Rationale, &s.CatalystSignalID,
		&s.PotentialCatalystID, &s.Status, &s.SupersededBy, &s.SupersedeReason,
		&s.ReviewedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(exit) > 0 {
		var ec models.ExitCondition
		if err := json.Unmarshal(exit, &ec); err != nil {
			return nil, fmt.Errorf("invalid exit_condition for suggestion %d: %w", s.ID, err)
		}
		s.ExitCondition = &ec
	}
	return &s, nil
}

func marshalExit(ec *models.ExitCondition) ([]byte, error) {
	if ec == nil {
		return nil, nil
	}
	b, err := json.Marshal(ec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode exit condition: %w", err)
	}
	return b, nil
}
