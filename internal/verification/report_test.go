package verification

import (
	"testing"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryWith(id, keyword string, confidence int, verdicts map[models.CheckpointType]models.Verdict) models.OpportunityLogEntry {
	e := crudeEntry(models.SentimentBullish)
	e.ID = id
	e.Keyword = keyword
	e.Confidence = confidence
	if len(verdicts) > 0 {
		e.Checkpoints = map[models.CheckpointType]*models.Checkpoint{}
		for cp, v := range verdicts {
			e.Checkpoints[cp] = &models.Checkpoint{Type: cp, Verdict: v, Price: decimal.NewFromInt(104), ChangePct: 4}
		}
	}
	return *e
}

func sampleEntries() []models.OpportunityLogEntry {
	return []models.OpportunityLogEntry{
		entryWith("a", "crude oil", 8, map[models.CheckpointType]models.Verdict{
			models.CheckpointAfter1Hr:    models.VerdictBadCall,
			models.CheckpointNextSession: models.VerdictGoodCall,
		}),
		entryWith("b", "crude oil", 6, map[models.CheckpointType]models.Verdict{
			models.CheckpointAfter1Hr: models.VerdictGoodCall,
		}),
		entryWith("c", "gold", 4, map[models.CheckpointType]models.Verdict{
			models.CheckpointAfter1Hr: models.VerdictBadCall,
		}),
		entryWith("d", "gold", 9, map[models.CheckpointType]models.Verdict{
			models.CheckpointAfter1Hr: models.VerdictNeutral,
		}),
		entryWith("e", "Gold", 3, nil),
	}
}

func TestComputeMetrics(t *testing.T) {
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	m := ComputeMetrics(sampleEntries(), now)

	assert.Equal(t, 5, m.TotalEntries)
	assert.Equal(t, now, m.GeneratedAt)

	assert.Equal(t, 2, m.Overall.GoodCalls)
	assert.Equal(t, 1, m.Overall.BadCalls)
	assert.Equal(t, 1, m.Overall.Neutral)
	assert.Equal(t, 1, m.Overall.Pending)
	assert.Equal(t, 6.0, m.Overall.AvgConfidence)
	require.NotNil(t, m.Overall.AccuracyPct)
	assert.Equal(t, 66.67, *m.Overall.AccuracyPct)

	first := m.ByCheckpoint[models.CheckpointAfter1Hr]
	assert.Equal(t, 1, first.GoodCalls)
	assert.Equal(t, 2, first.BadCalls)
	assert.Equal(t, 1, first.Pending)

	assert.Nil(t, m.ByCheckpoint[models.CheckpointAfter24Hr].AccuracyPct)

	gold := m.ByKeyword["gold"]
	assert.Equal(t, 1, gold.BadCalls)
	assert.Equal(t, 1, gold.Neutral)
	assert.Equal(t, 1, gold.Pending)
	require.NotNil(t, gold.AccuracyPct)
	assert.Equal(t, 0.0, *gold.AccuracyPct)

	crude := m.ByKeyword["crude oil"]
	require.NotNil(t, crude.AccuracyPct)
	assert.Equal(t, 100.0, *crude.AccuracyPct)
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := ComputeMetrics(nil, time.Now())
	assert.Equal(t, 0, m.TotalEntries)
	assert.Nil(t, m.Overall.AccuracyPct)
	assert.Len(t, m.ByCheckpoint, 3)
}

func TestRenderMarkdown(t *testing.T) {
	entries := sampleEntries()
	m := ComputeMetrics(entries, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))

	md := RenderMarkdown(m, entries, "INR", 2)

	assert.Contains(t, md, "# Catalyst accuracy report")
	assert.Contains(t, md, "| All signals | 2 | 1 | 1 | 1 | 6.0 | 66.7% |")
	assert.Contains(t, md, "| Crude Oil |")
	assert.Contains(t, md, "| Gold |")
	assert.Contains(t, md, "| after24hr | 0 | 0 | 0 | 5 | 6.0 | n/a |")
	assert.Contains(t, md, "₹100.00")
	assert.Contains(t, md, "₹104.00")
	assert.Contains(t, md, "+4.00%")
}
