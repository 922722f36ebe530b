package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/irfndi/catalyst-ai-go/internal/app"
	"github.com/irfndi/catalyst-ai-go/internal/services"
	"github.com/irfndi/catalyst-ai-go/internal/utils"
)

type trailCmd struct {
	asJSON bool
}

func (*trailCmd) Name() string     { return "trail" }
func (*trailCmd) Synopsis() string { return "ratchet trailing stops for approved BUYs and report exits" }
func (*trailCmd) Usage() string {
	return `catalyst trail [--json]
`
}

func (c *trailCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "Print position states as JSON")
}

func (c *trailCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app.App) error {
		statuses, err := a.Monitor.Refresh(ctx)
		if err != nil {
			return err
		}
		if c.asJSON {
			return printJSON(os.Stdout, statuses)
		}
		printMarkdown(positionsMarkdown(statuses, a.Config.Market.Currency))
		return nil
	})
}

func positionsMarkdown(statuses []services.PositionStatus, currency string) string {
	if len(statuses) == 0 {
		return "No open positions.\n"
	}
	var b strings.Builder
	b.WriteString("| Symbol | Price | Phase | Stop | Exit |\n|---|---:|---:|---:|---|\n")
	for _, s := range statuses {
		exit := "hold"
		switch {
		case s.Error != "":
			exit = "error: " + s.Error
		case s.Advice.Exit:
			exit = "**EXIT** " + s.Advice.Reason
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s |\n", s.Symbol,
			utils.FormatMoney(s.Price, currency), s.Exit.Phase,
			utils.FormatMoney(s.Exit.StopPrice, currency), exit)
	}
	return b.String()
}

type expireCmd struct{}

func (*expireCmd) Name() string     { return "expire" }
func (*expireCmd) Synopsis() string { return "activate pending signals and expire stale signals and suggestions" }
func (*expireCmd) Usage() string {
	return `catalyst expire
`
}
func (*expireCmd) SetFlags(*flag.FlagSet) {}

func (*expireCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(a *app.App) error {
		res, err := a.Lifecycle.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("market %s: %d activated, %d signals expired, %d suggestions expired\n",
			res.MarketMode, res.Activated, res.ExpiredSignals, res.ExpiredSuggestions)
		return nil
	})
}

func withApp(ctx context.Context, fn func(a *app.App) error) subcommands.ExitStatus {
	e, err := loadEnv(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer e.close()

	a, err := app.New(ctx, e.cfg, e.logger, os.Stderr)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(a); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
