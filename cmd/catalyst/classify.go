package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/subcommands"
	"github.com/irfndi/catalyst-ai-go/internal/app"
	"github.com/irfndi/catalyst-ai-go/internal/catalyst"
	"github.com/irfndi/catalyst-ai-go/internal/services"
	"github.com/irfndi/catalyst-ai-go/internal/utils"
)

type classifyCmd struct {
	file string
}

func (*classifyCmd) Name() string     { return "classify" }
func (*classifyCmd) Synopsis() string { return "run headline batches through the catalyst pipeline" }
func (*classifyCmd) Usage() string {
	return `catalyst classify [-f batches.json]

  Reads a JSON array of {"asset": {...}, "items": [...]} batches (stdin by
  default), runs each through noise filtering, classification, the portfolio
  gate and the suggestion store, and prints the per-batch results as JSON.
`
}

func (c *classifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "Batch file (defaults to stdin)")
}

func (c *classifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	batches, err := readBatches(c.file)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	return withApp(ctx, func(a *app.App) error {
		return printJSON(os.Stdout, a.Pipeline.ProcessAll(ctx, batches))
	})
}

func readBatches(file string) ([]services.AssetBatch, error) {
	var r io.Reader = os.Stdin
	if file != "" {
		fh, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		r = fh
	}

	var batches []services.AssetBatch
	if err := json.NewDecoder(r).Decode(&batches); err != nil {
		return nil, fmt.Errorf("failed to decode batches: %w", err)
	}
	validate := validator.New()
	for i := range batches {
		if err := validate.Struct(batches[i]); err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, utils.FromValidator(err))
		}
	}
	return batches, nil
}

type noiseCmd struct{}

func (*noiseCmd) Name() string     { return "noise" }
func (*noiseCmd) Synopsis() string { return "show which headlines the noise filter drops" }
func (*noiseCmd) Usage() string {
	return `catalyst noise <headline>...
`
}
func (*noiseCmd) SetFlags(*flag.FlagSet) {}

func (*noiseCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	for _, headline := range f.Args() {
		if rule, noisy := catalyst.MatchNoise(headline); noisy {
			fmt.Printf("DROP  [%s] %s\n", rule, headline)
		} else {
			fmt.Printf("KEEP  %s\n", headline)
		}
	}
	return subcommands.ExitSuccess
}
