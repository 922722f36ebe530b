package services

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/verification"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFixture struct {
	runner   *VerificationRunner
	oplog    *verification.OpportunityLog
	notifier *recordingNotifier
	out      *bytes.Buffer
	sleeps   []time.Duration
}

func newRunnerFixture(t *testing.T, notify bool, entries ...models.OpportunityLogEntry) *runnerFixture {
	t.Helper()
	logger := quietLogger()
	clk := clock.NewFixed(t0)
	prices := &fakePrices{
		quotes: map[string]decimal.Decimal{"CL=F": decimal.NewFromInt(104)},
		errs:   map[string]error{"BRK=F": errBoom},
	}

	f := &runnerFixture{
		oplog:    verification.NewOpportunityLog(filepath.Join(t.TempDir(), "opportunities.jsonl")),
		notifier: &recordingNotifier{},
		out:      &bytes.Buffer{},
	}
	for i := range entries {
		require.NoError(t, f.oplog.Append(&entries[i]))
	}

	engine := verification.NewEngine(prices, clk, verification.DefaultNeutralBandPct, logger)
	f.runner = NewVerificationRunner(f.oplog, engine, verification.DefaultSchedule(), f.notifier, clk, notify, f.out, logger)
	f.runner.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func firedEntry(id string, age time.Duration, ticker string, base int64) models.OpportunityLogEntry {
	return models.OpportunityLogEntry{
		ID:         id,
		Timestamp:  t0.Add(-age),
		Keyword:    "crude oil",
		Headline:   "OPEC+ agrees surprise output cut",
		Sentiment:  models.SentimentBullish,
		Confidence: 8,
		Market:     models.MarketState{GlobalTicker: ticker, GlobalBasePrice: decimal.NewFromInt(base)},
	}
}

func TestRun_ClassifiesEachEntry(t *testing.T) {
	f := newRunnerFixture(t, false,
		firedEntry("good", 90*time.Minute, "CL=F", 100),
		firedEntry("young", 30*time.Minute, "CL=F", 100),
		firedEntry("nobase", 200*time.Minute, "CL=F", 0),
		firedEntry("unknown", 90*time.Minute, "XX=F", 100),
		firedEntry("broken", 100*time.Minute, "BRK=F", 100),
	)

	summary, err := f.runner.Run(context.Background(), RunOptions{MinAge: 60 * time.Minute, Delay: time.Second})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Considered)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Verdicts[models.VerdictGoodCall])
	assert.Len(t, f.sleeps, 3)

	entries, err := f.oplog.List()
	require.NoError(t, err)
	require.True(t, entries[0].HasCheckpoint(models.CheckpointAfter1Hr))
	cp := entries[0].Checkpoints[models.CheckpointAfter1Hr]
	assert.Equal(t, models.VerdictGoodCall, cp.Verdict)
	assert.Equal(t, 4.0, cp.ChangePct)
	assert.Equal(t, 90, cp.MinutesElapsed)
	assert.Equal(t, models.VerdictGoodCall, entries[0].FinalVerdict)
	for _, e := range entries[1:] {
		assert.Empty(t, e.Checkpoints, e.ID)
	}

	out := f.out.String()
	assert.Contains(t, out, "crude oil (good) after1hr: GOOD_CALL +4.00%")
	assert.Contains(t, out, "4 considered, 1 succeeded, 2 skipped, 1 failed")
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	f := newRunnerFixture(t, true, firedEntry("good", 90*time.Minute, "CL=F", 100))

	summary, err := f.runner.Run(context.Background(), RunOptions{MinAge: time.Hour, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.True(t, summary.DryRun)
	assert.Contains(t, f.out.String(), "dry run")
	assert.Empty(t, f.notifier.summaries)

	entries, err := f.oplog.List()
	require.NoError(t, err)
	assert.Empty(t, entries[0].Checkpoints)
}

func TestRun_SecondPassDoesNotOverwrite(t *testing.T) {
	f := newRunnerFixture(t, false, firedEntry("good", 90*time.Minute, "CL=F", 100))

	_, err := f.runner.Run(context.Background(), RunOptions{MinAge: time.Hour})
	require.NoError(t, err)
	summary, err := f.runner.Run(context.Background(), RunOptions{MinAge: time.Hour})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Considered)
}

func TestRun_CheckpointOverride(t *testing.T) {
	f := newRunnerFixture(t, false, firedEntry("late", 10*time.Hour, "CL=F", 100))

	summary, err := f.runner.Run(context.Background(), RunOptions{Checkpoint: models.CheckpointAfter1Hr, MinAge: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	entries, err := f.oplog.List()
	require.NoError(t, err)
	assert.True(t, entries[0].HasCheckpoint(models.CheckpointAfter1Hr))
	assert.False(t, entries[0].HasCheckpoint(models.CheckpointNextSession))
}

func TestRun_UnknownCheckpointIsFatal(t *testing.T) {
	f := newRunnerFixture(t, false)

	_, err := f.runner.Run(context.Background(), RunOptions{Checkpoint: "after2hr"})
	assert.Error(t, err)
}

func TestRun_NotifiesSummaryWhenEnabled(t *testing.T) {
	f := newRunnerFixture(t, true, firedEntry("good", 90*time.Minute, "CL=F", 100))

	_, err := f.runner.Run(context.Background(), RunOptions{MinAge: time.Hour})
	require.NoError(t, err)

	require.Len(t, f.notifier.summaries, 1)
	assert.Equal(t, 1, f.notifier.summaries[0].Succeeded)
}

func TestReport(t *testing.T) {
	f := newRunnerFixture(t, false,
		firedEntry("good", 90*time.Minute, "CL=F", 100),
		firedEntry("young", 30*time.Minute, "CL=F", 100),
	)
	_, err := f.runner.Run(context.Background(), RunOptions{MinAge: time.Hour})
	require.NoError(t, err)

	m, entries, err := f.runner.Report()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 2, m.TotalEntries)
	assert.Equal(t, 1, m.Overall.GoodCalls)
	assert.Equal(t, 1, m.Overall.Pending)
}
