package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/market"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/notification"
	"github.com/irfndi/catalyst-ai-go/internal/verification"
	"github.com/sirupsen/logrus"
)

// CheckpointLog is the persistence the runner needs; *verification.OpportunityLog implements it.
type CheckpointLog interface {
	List() ([]models.OpportunityLogEntry, error)
	SetCheckpoint(id string, cp models.Checkpoint) (*models.OpportunityLogEntry, error)
}

type Verifier interface {
	Verify(ctx context.Context, entry *models.OpportunityLogEntry, cp models.CheckpointType) (models.Checkpoint, error)
}

// RunOptions controls one verification pass.
type RunOptions struct {
	// Checkpoint overrides window auto-detection when set.
	Checkpoint models.CheckpointType
	MinAge     time.Duration
	DryRun     bool
	Delay      time.Duration
}

const (
	eventVerified = "verified"
	eventSkipped  = "skipped"
	eventFailed   = "failed"
)

type VerificationRunner struct {
	log      CheckpointLog
	engine   Verifier
	schedule *verification.Schedule
	notifier notification.Notifier
	clock    clock.Clock
	notify   bool
	out      io.Writer
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *logrus.Logger
}

func NewVerificationRunner(log CheckpointLog, engine Verifier, schedule *verification.Schedule, notifier notification.Notifier, clk clock.Clock, notifySummary bool, out io.Writer, logger *logrus.Logger) *VerificationRunner {
	if schedule == nil {
		schedule = verification.DefaultSchedule()
	}
	if notifier == nil {
		notifier = notification.Noop{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if out == nil {
		out = io.Discard
	}
	return &VerificationRunner{
		log:      log,
		engine:   engine,
		schedule: schedule,
		notifier: notifier,
		clock:    clk,
		notify:   notifySummary,
		out:      out,
		sleep:    sleepFor,
		logger:   logger,
	}
}

// Run evaluates every due entry once. Individual failures are counted and
// reported; only an unreadable log aborts the pass.
func (r *VerificationRunner) Run(ctx context.Context, opts RunOptions) (models.VerificationRunSummary, error) {
	now := r.clock.Now()
	summary := models.VerificationRunSummary{
		StartedAt:  now,
		Checkpoint: opts.Checkpoint,
		DryRun:     opts.DryRun,
		Verdicts:   map[models.Verdict]int{},
	}

	if opts.Checkpoint != "" {
		if _, ok := r.schedule.Window(opts.Checkpoint); !ok {
			return summary, fmt.Errorf("unknown checkpoint %q", opts.Checkpoint)
		}
	}

	entries, err := r.log.List()
	if err != nil {
		return summary, fmt.Errorf("failed to read opportunity log: %w", err)
	}

	var fetched int
	for i := range entries {
		if ctx.Err() != nil {
			break
		}
		entry := &entries[i]
		if now.Sub(entry.Timestamp) < opts.MinAge {
			continue
		}

		cp, err := r.checkpointFor(entry, opts.Checkpoint, now)
		if err != nil {
			continue
		}
		summary.Considered++

		if fetched > 0 && opts.Delay > 0 {
			if err := r.sleep(ctx, opts.Delay); err != nil {
				break
			}
		}
		fetched++

		event := r.verifyOne(ctx, entry, cp, opts.DryRun)
		switch event.Status {
		case eventVerified:
			summary.Succeeded++
			summary.Verdicts[event.Verdict]++
		case eventSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		summary.Results = append(summary.Results, event)
		r.progress(summary.Considered, event)
	}

	fmt.Fprintf(r.out, "verification: %d considered, %d succeeded, %d skipped, %d failed%s\n",
		summary.Considered, summary.Succeeded, summary.Skipped, summary.Failed, dryRunSuffix(opts.DryRun))

	r.logger.WithFields(logrus.Fields{
		"component":  "verification_runner",
		"considered": summary.Considered,
		"succeeded":  summary.Succeeded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
		"dry_run":    opts.DryRun,
	}).Info("Verification pass finished")

	if r.notify && !opts.DryRun && summary.Succeeded > 0 {
		metrics, _, err := r.Report()
		if err == nil {
			err = r.notifier.NotifyVerification(ctx, summary, metrics)
		}
		if err != nil {
			r.logger.WithError(err).Warn("Verification summary notification failed")
		}
	}

	return summary, nil
}

func (r *VerificationRunner) checkpointFor(entry *models.OpportunityLogEntry, override models.CheckpointType, now time.Time) (models.CheckpointType, error) {
	if override == "" {
		return r.schedule.NextDue(entry, now)
	}
	if err := r.schedule.Due(entry, override, now); err != nil {
		return "", err
	}
	return override, nil
}

func (r *VerificationRunner) verifyOne(ctx context.Context, entry *models.OpportunityLogEntry, cp models.CheckpointType, dryRun bool) models.CheckpointEvent {
	event := models.CheckpointEvent{EntryID: entry.ID, Keyword: entry.Keyword, Checkpoint: cp}
	log := r.logger.WithFields(logrus.Fields{
		"component":  "verification_runner",
		"entry_id":   entry.ID,
		"checkpoint": cp,
	})

	result, err := r.engine.Verify(ctx, entry, cp)
	if err != nil {
		event.Detail = err.Error()
		if skippable(err) {
			event.Status = eventSkipped
			log.WithError(err).Info("Entry skipped")
		} else {
			event.Status = eventFailed
			log.WithError(err).Warn("Entry verification failed")
		}
		return event
	}

	event.Verdict = result.Verdict
	event.ChangePct = result.ChangePct

	if !dryRun {
		if _, err := r.log.SetCheckpoint(entry.ID, result); err != nil {
			event.Detail = err.Error()
			if errors.Is(err, verification.ErrCheckpointExists) {
				event.Status = eventSkipped
			} else {
				event.Status = eventFailed
				log.WithError(err).Warn("Checkpoint not persisted")
			}
			return event
		}
	}

	event.Status = eventVerified
	return event
}

func skippable(err error) bool {
	return errors.Is(err, verification.ErrMissingBasePrice) ||
		errors.Is(err, verification.ErrCheckpointExists) ||
		errors.Is(err, market.ErrPriceNotFound)
}

func (r *VerificationRunner) progress(n int, e models.CheckpointEvent) {
	switch e.Status {
	case eventVerified:
		fmt.Fprintf(r.out, "[%d] %s (%s) %s: %s %+.2f%%\n", n, e.Keyword, e.EntryID, e.Checkpoint, e.Verdict, e.ChangePct)
	default:
		fmt.Fprintf(r.out, "[%d] %s (%s) %s: %s: %s\n", n, e.Keyword, e.EntryID, e.Checkpoint, e.Status, e.Detail)
	}
}

// Report derives the accuracy metrics from the log without writing anything.
func (r *VerificationRunner) Report() (models.CatalystVerificationMetrics, []models.OpportunityLogEntry, error) {
	entries, err := r.log.List()
	if err != nil {
		return models.CatalystVerificationMetrics{}, nil, fmt.Errorf("failed to read opportunity log: %w", err)
	}
	return verification.ComputeMetrics(entries, r.clock.Now()), entries, nil
}

func dryRunSuffix(dry bool) string {
	if dry {
		return " (dry run, nothing written)"
	}
	return ""
}

func sleepFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
