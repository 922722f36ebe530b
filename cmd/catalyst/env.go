package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/irfndi/catalyst-ai-go/internal/app"
	"github.com/irfndi/catalyst-ai-go/internal/config"
	"github.com/irfndi/catalyst-ai-go/internal/logging"
	"github.com/sirupsen/logrus"
)

// env is the configuration and logger every command starts from. Logs go to
// stderr so stdout stays parseable.
type env struct {
	cfg    *config.Config
	logger *logrus.Logger
	flush  func(context.Context)
}

func loadEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	logger.SetOutput(os.Stderr)

	flush, err := app.Observability(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, flush: flush}, nil
}

func (e *env) close() {
	e.flush(context.Background())
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMarkdown renders for a terminal and falls back to the raw text.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(110))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}
