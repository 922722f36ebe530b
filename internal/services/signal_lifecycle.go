package services

import (
	"context"
	"fmt"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/sirupsen/logrus"
)

type SignalStatusStore interface {
	UpdateStatus(ctx context.Context, id int64, next models.SignalStatus, at time.Time) (*models.CatalystSignal, error)
	ActivatePending(ctx context.Context, at time.Time) (int64, error)
	ExpireStale(ctx context.Context, cutoff, at time.Time) (int64, error)
}

type SuggestionExpirer interface {
	ExpireOlderThan(ctx context.Context, window time.Duration) (int64, error)
}

// SweepResult counts what one lifecycle sweep changed.
type SweepResult struct {
	Activated          int64             `json:"activated"`
	ExpiredSignals     int64             `json:"expired_signals"`
	ExpiredSuggestions int64             `json:"expired_suggestions"`
	MarketMode         models.MarketMode `json:"market_mode"`
}

// SignalLifecycle moves signals and suggestions through their time-driven states.
type SignalLifecycle struct {
	signals     SignalStatusStore
	suggestions SuggestionExpirer
	session     SessionClock
	signalTTL   time.Duration
	reviewTTL   time.Duration
	clock       clock.Clock
	logger      *logrus.Logger
}

func NewSignalLifecycle(signals SignalStatusStore, suggestions SuggestionExpirer, session SessionClock, signalMaxAge, reviewWindow time.Duration, clk clock.Clock, logger *logrus.Logger) *SignalLifecycle {
	if clk == nil {
		clk = clock.Real{}
	}
	return &SignalLifecycle{
		signals:     signals,
		suggestions: suggestions,
		session:     session,
		signalTTL:   signalMaxAge,
		reviewTTL:   reviewWindow,
		clock:       clk,
		logger:      logger,
	}
}

func (l *SignalLifecycle) Dismiss(ctx context.Context, id int64) (*models.CatalystSignal, error) {
	return l.transition(ctx, id, models.SignalDismissed)
}

func (l *SignalLifecycle) MarkActed(ctx context.Context, id int64) (*models.CatalystSignal, error) {
	return l.transition(ctx, id, models.SignalActed)
}

func (l *SignalLifecycle) transition(ctx context.Context, id int64, next models.SignalStatus) (*models.CatalystSignal, error) {
	sig, err := l.signals.UpdateStatus(ctx, id, next, l.clock.Now())
	if err != nil {
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"component": "signal_lifecycle",
		"signal_id": id,
		"status":    next,
	}).Info("Signal status changed")
	return sig, nil
}

// Sweep activates queued signals once the session opens, then expires stale
// signals and unreviewed suggestions. A zero TTL disables that expiry.
func (l *SignalLifecycle) Sweep(ctx context.Context) (SweepResult, error) {
	now := l.clock.Now()
	res := SweepResult{MarketMode: l.session.Mode(now)}

	if res.MarketMode == models.MarketOpen {
		n, err := l.signals.ActivatePending(ctx, now)
		if err != nil {
			return res, fmt.Errorf("failed to activate pending signals: %w", err)
		}
		res.Activated = n
	}

	if l.signalTTL > 0 {
		n, err := l.signals.ExpireStale(ctx, now.Add(-l.signalTTL), now)
		if err != nil {
			return res, fmt.Errorf("failed to expire stale signals: %w", err)
		}
		res.ExpiredSignals = n
	}

	if l.reviewTTL > 0 && l.suggestions != nil {
		n, err := l.suggestions.ExpireOlderThan(ctx, l.reviewTTL)
		if err != nil {
			return res, fmt.Errorf("failed to expire suggestions: %w", err)
		}
		res.ExpiredSuggestions = n
	}

	l.logger.WithFields(logrus.Fields{
		"component":           "signal_lifecycle",
		"market_mode":         res.MarketMode,
		"activated":           res.Activated,
		"expired_signals":     res.ExpiredSignals,
		"expired_suggestions": res.ExpiredSuggestions,
	}).Info("Lifecycle sweep finished")
	return res, nil
}

// Start runs Sweep on an interval until ctx is cancelled.
func (l *SignalLifecycle) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			if _, err := l.Sweep(ctx); err != nil {
				l.logger.WithError(err).Error("Lifecycle sweep failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
