// Package notification pushes gate decisions and verification results to the owner.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/irfndi/catalyst-ai-go/internal/config"
	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/utils"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	NotifyDecision(ctx context.Context, d models.Decision) error
	NotifyVerification(ctx context.Context, s models.VerificationRunSummary, m models.CatalystVerificationMetrics) error
}

// Noop is used when no bot is configured.
type Noop struct{}

func (Noop) NotifyDecision(context.Context, models.Decision) error { return nil }
func (Noop) NotifyVerification(context.Context, models.VerificationRunSummary, models.CatalystVerificationMetrics) error {
	return nil
}

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

type TelegramNotifier struct {
	sender   messageSender
	chatID   int64
	currency string
	logger   *logrus.Logger
}

// New returns a Telegram notifier when a token and chat id are configured and Noop otherwise.
func New(cfg config.TelegramConfig, currency string, logger *logrus.Logger) (Notifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		logger.Info("Telegram notifications disabled")
		return Noop{}, nil
	}

	b, err := bot.New(cfg.BotToken, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegramNotifier(b, cfg.ChatID, currency, logger), nil
}

func newTelegramNotifier(sender messageSender, chatID int64, currency string, logger *logrus.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID, currency: currency, logger: logger}
}

// NotifyDecision only announces approved trades.
func (n *TelegramNotifier) NotifyDecision(ctx context.Context, d models.Decision) error {
	if !d.Approved() {
		return nil
	}
	return n.send(ctx, "decision", n.formatDecision(d))
}

func (n *TelegramNotifier) NotifyVerification(ctx context.Context, s models.VerificationRunSummary, m models.CatalystVerificationMetrics) error {
	return n.send(ctx, "verification", formatVerification(s, m))
}

func (n *TelegramNotifier) send(ctx context.Context, kind, text string) error {
	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"component": "notification",
			"kind":      kind,
			"error":     err.Error(),
		}).Warn("Telegram message failed")
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (n *TelegramNotifier) formatDecision(d models.Decision) string {
	var b strings.Builder

	icon := "📈"
	if d.Action == models.GateSell {
		icon = "📉"
	}
	fmt.Fprintf(&b, "%s *%s %s*\n\n", icon, d.Action, escape(d.Symbol))
	fmt.Fprintf(&b, "Quantity: *%d*\n", d.Sizing.Quantity)

	if d.Action == models.GateBuy {
		fmt.Fprintf(&b, "Entry: %s\n", utils.FormatMoney(d.Risk.Entry, n.currency))
		fmt.Fprintf(&b, "Target: %s\n", utils.FormatMoney(d.Risk.Target, n.currency))
		fmt.Fprintf(&b, "Stop: %s\n", utils.FormatMoney(d.Risk.Stop, n.currency))
		fmt.Fprintf(&b, "R:R %s, min hold %dh\n", d.Risk.RewardRisk.StringFixed(2), d.Risk.MinHoldHours)
	}
	if d.Funding != nil {
		fmt.Fprintf(&b, "Fund by selling %d %s (%s)\n",
			d.Funding.Quantity, escape(d.Funding.Symbol), utils.FormatMoney(d.Funding.Proceeds, n.currency))
	}

	b.WriteString("\n")
	for _, line := range d.Rationale {
		fmt.Fprintf(&b, "• %s\n", escape(line))
	}
	return b.String()
}

func formatVerification(s models.VerificationRunSummary, m models.CatalystVerificationMetrics) string {
	var b strings.Builder

	b.WriteString("🔎 *Catalyst verification*\n\n")
	if s.Checkpoint != "" {
		fmt.Fprintf(&b, "Checkpoint: %s\n", escape(string(s.Checkpoint)))
	}
	fmt.Fprintf(&b, "Verified %d, skipped %d, failed %d\n", s.Succeeded, s.Skipped, s.Failed)
	fmt.Fprintf(&b, "Good %d / Bad %d / Neutral %d\n",
		s.Verdicts[models.VerdictGoodCall], s.Verdicts[models.VerdictBadCall], s.Verdicts[models.VerdictNeutral])

	if m.Overall.AccuracyPct != nil {
		fmt.Fprintf(&b, "\nRolling accuracy: *%.1f%%* over %d decided calls\n", *m.Overall.AccuracyPct, m.Overall.Decided())
	} else {
		b.WriteString("\nRolling accuracy: n/a\n")
	}
	if s.DryRun {
		b.WriteString("(dry run, nothing saved)\n")
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
