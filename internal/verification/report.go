package verification

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/irfndi/catalyst-ai-go/internal/utils"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type tallyBuilder struct {
	t          models.VerdictTally
	confidence int
	entries    int
}

func (b *tallyBuilder) add(v models.Verdict, confidence int, decided bool) {
	b.entries++
	b.confidence += confidence
	if !decided {
		b.t.Pending++
		return
	}
	switch v {
	case models.VerdictGoodCall:
		b.t.GoodCalls++
	case models.VerdictBadCall:
		b.t.BadCalls++
	default:
		b.t.Neutral++
	}
}

func (b *tallyBuilder) build() models.VerdictTally {
	t := b.t
	if b.entries > 0 {
		t.AvgConfidence = math.Round(float64(b.confidence)/float64(b.entries)*100) / 100
	}
	if d := t.Decided(); d > 0 {
		acc := math.Round(float64(t.GoodCalls)/float64(d)*10000) / 100
		t.AccuracyPct = &acc
	}
	return t
}

// ComputeMetrics derives accuracy from the entries as they are now. Overall
// and per-keyword tallies use each entry's latest checkpoint.
func ComputeMetrics(entries []models.OpportunityLogEntry, now time.Time) models.CatalystVerificationMetrics {
	overall := &tallyBuilder{}
	byCheckpoint := make(map[models.CheckpointType]*tallyBuilder, len(models.CheckpointOrder))
	for _, cp := range models.CheckpointOrder {
		byCheckpoint[cp] = &tallyBuilder{}
	}
	byKeyword := make(map[string]*tallyBuilder)

	for i := range entries {
		e := &entries[i]
		latest, decided := e.LatestCheckpoint()
		var v models.Verdict
		if decided {
			v = latest.Verdict
		}

		overall.add(v, e.Confidence, decided)

		kw := strings.ToLower(strings.TrimSpace(e.Keyword))
		if byKeyword[kw] == nil {
			byKeyword[kw] = &tallyBuilder{}
		}
		byKeyword[kw].add(v, e.Confidence, decided)

		for _, cp := range models.CheckpointOrder {
			if e.HasCheckpoint(cp) {
				byCheckpoint[cp].add(e.Checkpoints[cp].Verdict, e.Confidence, true)
			} else {
				byCheckpoint[cp].add("", e.Confidence, false)
			}
		}
	}

	m := models.CatalystVerificationMetrics{
		GeneratedAt:  now,
		TotalEntries: len(entries),
		Overall:      overall.build(),
		ByCheckpoint: make(map[models.CheckpointType]models.VerdictTally, len(byCheckpoint)),
		ByKeyword:    make(map[string]models.VerdictTally, len(byKeyword)),
	}
	for cp, b := range byCheckpoint {
		m.ByCheckpoint[cp] = b.build()
	}
	for kw, b := range byKeyword {
		m.ByKeyword[kw] = b.build()
	}
	return m
}

// RenderMarkdown formats the metrics and the most recent decided calls.
func RenderMarkdown(m models.CatalystVerificationMetrics, entries []models.OpportunityLogEntry, currency string, recent int) string {
	var b strings.Builder
	titleCaser := cases.Title(language.English)

	fmt.Fprintf(&b, "# Catalyst accuracy report\n\n")
	fmt.Fprintf(&b, "_Generated %s from %d entries._\n\n", m.GeneratedAt.Format(time.RFC3339), m.TotalEntries)

	b.WriteString("## Overall\n\n")
	writeTallyTable(&b, []string{"All signals"}, []models.VerdictTally{m.Overall})

	b.WriteString("\n## By checkpoint\n\n")
	var labels []string
	var tallies []models.VerdictTally
	for _, cp := range models.CheckpointOrder {
		labels = append(labels, string(cp))
		tallies = append(tallies, m.ByCheckpoint[cp])
	}
	writeTallyTable(&b, labels, tallies)

	if len(m.ByKeyword) > 0 {
		b.WriteString("\n## By keyword\n\n")
		keywords := make([]string, 0, len(m.ByKeyword))
		for kw := range m.ByKeyword {
			keywords = append(keywords, kw)
		}
		sort.Strings(keywords)
		labels, tallies = labels[:0], tallies[:0]
		for _, kw := range keywords {
			label := titleCaser.String(kw)
			if label == "" {
				label = "(none)"
			}
			labels = append(labels, label)
			tallies = append(tallies, m.ByKeyword[kw])
		}
		writeTallyTable(&b, labels, tallies)
	}

	if calls := recentCalls(entries, recent); len(calls) > 0 {
		b.WriteString("\n## Recent calls\n\n")
		b.WriteString("| Fired | Keyword | Prediction | Base | Latest | Move | Verdict |\n")
		b.WriteString("|---|---|---|---:|---:|---:|---|\n")
		for _, e := range calls {
			cp, _ := e.LatestCheckpoint()
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %+.2f%% | %s |\n",
				e.Timestamp.Format("2006-01-02 15:04"),
				titleCaser.String(e.Keyword),
				e.Sentiment,
				utils.FormatMoney(e.Market.GlobalBasePrice, currency),
				utils.FormatMoney(cp.Price, currency),
				cp.ChangePct,
				cp.Verdict,
			)
		}
	}

	return b.String()
}

func writeTallyTable(b *strings.Builder, labels []string, tallies []models.VerdictTally) {
	b.WriteString("| Slice | Good | Bad | Neutral | Pending | Avg conf | Accuracy |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
	for i, t := range tallies {
		acc := "n/a"
		if t.AccuracyPct != nil {
			acc = fmt.Sprintf("%.1f%%", *t.AccuracyPct)
		}
		fmt.Fprintf(b, "| %s | %d | %d | %d | %d | %.1f | %s |\n",
			labels[i], t.GoodCalls, t.BadCalls, t.Neutral, t.Pending, t.AvgConfidence, acc)
	}
}

// recentCalls returns up to n entries with at least one checkpoint, newest first.
func recentCalls(entries []models.OpportunityLogEntry, n int) []models.OpportunityLogEntry {
	var out []models.OpportunityLogEntry
	for _, e := range entries {
		if _, ok := e.LatestCheckpoint(); ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
