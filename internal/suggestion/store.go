// Package suggestion persists gate-approved trade suggestions and links them
// to the trades that later executed them.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/database"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/utils"
	"github.com/sirupsen/logrus"
)

// Repository is the persistence the store needs.
type Repository interface {
	FindPendingBySymbol(ctx context.Context, symbol string) (*models.CatalystSuggestion, error)
	InsertSuperseding(ctx context.Context, s *models.CatalystSuggestion, prevID *int64, reason string, at time.Time) error
	Review(ctx context.Context, id int64, status models.SuggestionStatus, at time.Time) error
	ExpirePending(ctx context.Context, cutoff, at time.Time) (int64, error)
}

// References resolves the ids a suggestion may point at.
type References interface {
	Exists(ctx context.Context, id int64) (bool, error)
	PotentialExists(ctx context.Context, id int64) (bool, error)
}

// StoredSuggestion is the persisted suggestion plus what happened on the way in.
type StoredSuggestion struct {
	Suggestion   models.CatalystSuggestion `json:"suggestion"`
	SupersededID *int64                    `json:"superseded_id,omitempty"`
	Warnings     []string                  `json:"warnings,omitempty"`
}

type Store struct {
	repo     Repository
	refs     References
	validate *validator.Validate
	clock    clock.Clock
	logger   *logrus.Logger
}

func NewStore(repo Repository, refs References, clk clock.Clock, logger *logrus.Logger) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{
		repo:     repo,
		refs:     refs,
		validate: validator.New(),
		clock:    clk,
		logger:   logger,
	}
}

// Propose validates and stores s as pending. Links to unknown signals are
// dropped with a warning. An existing pending suggestion for the same symbol
// is marked superseded by the new one.
func (st *Store) Propose(ctx context.Context, s models.CatalystSuggestion) (StoredSuggestion, error) {
	s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
	s.Action = models.TradeAction(strings.ToUpper(string(s.Action)))

	if err := st.validate.Struct(s); err != nil {
		return StoredSuggestion{}, utils.FromValidator(err)
	}
	if err := s.CheckStopLoss(); err != nil {
		return StoredSuggestion{}, utils.NewFieldError("stop_loss", err.Error())
	}
	if s.Action == models.ActionBuy && s.RiskReward.IsZero() {
		s.RiskReward = models.RiskRewardRatio(s.EntryPrice, s.TargetPrice, s.StopLoss)
	}

	out := StoredSuggestion{}
	var err error
	if s.CatalystSignalID, err = st.resolve(ctx, "catalyst_signal_id", s.CatalystSignalID, st.refs.Exists, &out); err != nil {
		return out, err
	}
	if s.PotentialCatalystID, err = st.resolve(ctx, "potential_catalyst_id", s.PotentialCatalystID, st.refs.PotentialExists, &out); err != nil {
		return out, err
	}

	var prevID *int64
	reason := ""
	prev, err := st.repo.FindPendingBySymbol(ctx, s.Symbol)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return out, fmt.Errorf("failed to look up pending suggestion for %s: %w", s.Symbol, err)
	default:
		prevID = &prev.ID
		reason = fmt.Sprintf("superseded by newer %s suggestion (confidence %d)", s.Action, s.Confidence)
	}

	now := st.clock.Now()
	if err := st.repo.InsertSuperseding(ctx, &s, prevID, reason, now); err != nil {
		return out, err
	}

	out.Suggestion = s
	out.SupersededID = prevID

	fields := logrus.Fields{
		"component":     "suggestion_store",
		"symbol":        s.Symbol,
		"suggestion_id": s.ID,
		"action":        s.Action,
	}
	if prevID != nil {
		fields["superseded_id"] = *prevID
	}
	st.logger.WithFields(fields).Info("Suggestion stored")

	return out, nil
}

func (st *Store) resolve(ctx context.Context, field string, id *int64, exists func(context.Context, int64) (bool, error), out *StoredSuggestion) (*int64, error) {
	if id == nil {
		return nil, nil
	}
	ok, err := exists(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s %d: %w", field, *id, err)
	}
	if ok {
		return id, nil
	}

	msg := fmt.Sprintf("%s %d does not exist; link dropped", field, *id)
	out.Warnings = append(out.Warnings, msg)
	st.logger.WithFields(logrus.Fields{
		"component": "suggestion_store",
		"field":     field,
		"id":        *id,
	}).Warn("Unresolvable suggestion reference stored as NULL")
	return nil, nil
}

// Approve marks a pending suggestion approved.
func (st *Store) Approve(ctx context.Context, id int64) error {
	return st.repo.Review(ctx, id, models.SuggestionApproved, st.clock.Now())
}

// Reject marks a pending suggestion rejected.
func (st *Store) Reject(ctx context.Context, id int64) error {
	return st.repo.Review(ctx, id, models.SuggestionRejected, st.clock.Now())
}

// ExpireOlderThan expires pending suggestions that waited longer than window for review.
func (st *Store) ExpireOlderThan(ctx context.Context, window time.Duration) (int64, error) {
	now := st.clock.Now()
	n, err := st.repo.ExpirePending(ctx, now.Add(-window), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		st.logger.WithFields(logrus.Fields{
			"component": "suggestion_store",
			"expired":   n,
		}).Info("Expired unreviewed suggestions")
	}
	return n, nil
}
