package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/irfndi/catalyst-ai-go/internal/app"
	"github.com/irfndi/catalyst-ai-go/internal/clock"
	"github.com/irfndi/catalyst-ai-go/internal/database"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/notification"
	"github.com/irfndi/catalyst-ai-go/internal/services"
	"github.com/irfndi/catalyst-ai-go/internal/verification"
	"github.com/redis/go-redis/v9"
)

type verifyCmd struct {
	checkpoint string
	minAge     int
	report     bool
	dryRun     bool
	asJSON     bool
	recent     int
}

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "score fired signals against the price move that followed" }
func (*verifyCmd) Usage() string {
	return `catalyst verify [--checkpoint 1hr|session|24hr] [--min-age N] [--dry-run]
catalyst verify --report [--json]

  Evaluates the next due checkpoint of every opportunity log entry, or prints
  the accuracy report without writing anything.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.checkpoint, "checkpoint", "", "Force a checkpoint (1hr, session or 24hr) instead of auto-detecting")
	f.IntVar(&c.minAge, "min-age", -1, "Skip entries younger than N minutes (defaults to verification.min_age_minutes)")
	f.BoolVar(&c.report, "report", false, "Print aggregated accuracy stats only")
	f.BoolVar(&c.dryRun, "dry-run", false, "Compute checkpoints without writing them")
	f.BoolVar(&c.asJSON, "json", false, "Print the report or run summary as JSON")
	f.IntVar(&c.recent, "recent", 10, "Recent calls listed in the report")
}

func (c *verifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	opts := services.RunOptions{DryRun: c.dryRun}
	if c.checkpoint != "" {
		cp, err := models.ParseCheckpointFlag(c.checkpoint)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		opts.Checkpoint = cp
	}

	e, err := loadEnv(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()

	minAge := e.cfg.Verification.MinAgeMinutes
	if c.minAge >= 0 {
		minAge = c.minAge
	}
	opts.MinAge = time.Duration(minAge) * time.Minute
	opts.Delay = e.cfg.Verification.RequestDelay

	if err := c.run(ctx, e, opts); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *verifyCmd) run(ctx context.Context, e *env, opts services.RunOptions) error {
	clk := clock.Real{}

	if c.report {
		runner := app.VerificationRunner(e.cfg, verification.NewOpportunityLog(e.cfg.Verification.LogPath), nil, notification.Noop{}, clk, os.Stderr, e.logger)
		return c.printReport(runner, e.cfg.Market.Currency)
	}

	var rdb *redis.Client
	if rc, err := database.NewRedisConnection(ctx, e.cfg.Redis); err != nil {
		e.logger.WithError(err).Debug("Redis unavailable, fetching prices uncached")
	} else {
		defer rc.Close()
		rdb = rc.Client
	}
	prices, _ := app.PriceSources(e.cfg.Prices, rdb, clk, e.logger)

	notifier, err := notification.New(e.cfg.Telegram, e.cfg.Market.Currency, e.logger)
	if err != nil {
		return err
	}

	progress := os.Stdout
	if c.asJSON {
		progress = os.Stderr
	}
	runner := app.VerificationRunner(e.cfg, verification.NewOpportunityLog(e.cfg.Verification.LogPath), prices, notifier, clk, progress, e.logger)
	summary, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}
	if c.asJSON {
		return printJSON(os.Stdout, summary)
	}
	return nil
}

func (c *verifyCmd) printReport(runner *services.VerificationRunner, currency string) error {
	metrics, entries, err := runner.Report()
	if err != nil {
		return err
	}
	if c.asJSON {
		return printJSON(os.Stdout, metrics)
	}
	if metrics.TotalEntries == 0 {
		fmt.Println("No opportunity log entries yet.")
		return nil
	}
	printMarkdown(verification.RenderMarkdown(metrics, entries, currency, c.recent))
	return nil
}
