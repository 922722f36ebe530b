package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CheckpointType names a verification window.
type CheckpointType string

const (
	CheckpointAfter1Hr    CheckpointType = "after1hr"
	CheckpointNextSession CheckpointType = "nextSession"
	CheckpointAfter24Hr   CheckpointType = "after24hr"
)

// CheckpointOrder lists checkpoints from earliest to latest.
var CheckpointOrder = []CheckpointType{CheckpointAfter1Hr, CheckpointNextSession, CheckpointAfter24Hr}

// ParseCheckpointFlag maps the CLI spelling (1hr, session, 24hr) to a checkpoint.
func ParseCheckpointFlag(s string) (CheckpointType, error) {
	switch s {
	case "1hr", string(CheckpointAfter1Hr):
		return CheckpointAfter1Hr, nil
	case "session", string(CheckpointNextSession):
		return CheckpointNextSession, nil
	case "24hr", string(CheckpointAfter24Hr):
		return CheckpointAfter24Hr, nil
	default:
		return "", fmt.Errorf("unknown checkpoint %q (want 1hr, session or 24hr)", s)
	}
}

type Verdict string

const (
	VerdictGoodCall Verdict = "GOOD_CALL"
	VerdictBadCall  Verdict = "BAD_CALL"
	VerdictNeutral  Verdict = "NEUTRAL"
)

// MarketState is captured when the signal fires.
type MarketState struct {
	GlobalTicker    string          `json:"global_ticker"`
	GlobalBasePrice decimal.Decimal `json:"global_base_price"`
	LocalTicker     string          `json:"local_ticker,omitempty"`
	LocalBasePrice  decimal.Decimal `json:"local_base_price"`
}

// Checkpoint is one verification measurement. Once written it is never replaced.
type Checkpoint struct {
	Type           CheckpointType   `json:"type"`
	CheckedAt      time.Time        `json:"checked_at"`
	MinutesElapsed int              `json:"minutes_elapsed"`
	Price          decimal.Decimal  `json:"price"`
	ChangePct      float64          `json:"change_pct"`
	Verdict        Verdict          `json:"verdict"`
	LocalPrice     *decimal.Decimal `json:"local_price,omitempty"`
	LocalChangePct *float64         `json:"local_change_pct,omitempty"`
}

// OpportunityLogEntry is an append-only record of a fired signal.
type OpportunityLogEntry struct {
	ID           string                         `json:"id"`
	Timestamp    time.Time                      `json:"timestamp"`
	Keyword      string                         `json:"keyword"`
	Symbol       string                         `json:"symbol,omitempty"`
	Headline     string                         `json:"headline"`
	Sentiment    Sentiment                      `json:"sentiment"`
	ImpactType   ImpactType                     `json:"impact_type,omitempty"`
	Confidence   int                            `json:"confidence"`
	Market       MarketState                    `json:"market"`
	Checkpoints  map[CheckpointType]*Checkpoint `json:"checkpoints,omitempty"`
	FinalVerdict Verdict                        `json:"final_verdict,omitempty"`
}

// HasCheckpoint reports whether the window has already been evaluated.
func (e *OpportunityLogEntry) HasCheckpoint(t CheckpointType) bool {
	if e.Checkpoints == nil {
		return false
	}
	cp, ok := e.Checkpoints[t]
	return ok && cp != nil
}

// LatestCheckpoint returns the evaluated checkpoint furthest along CheckpointOrder.
func (e *OpportunityLogEntry) LatestCheckpoint() (*Checkpoint, bool) {
	for i := len(CheckpointOrder) - 1; i >= 0; i-- {
		if e.HasCheckpoint(CheckpointOrder[i]) {
			return e.Checkpoints[CheckpointOrder[i]], true
		}
	}
	return nil, false
}

// VerdictTally counts verdicts for one slice of the opportunity log.
type VerdictTally struct {
	GoodCalls     int      `json:"good_calls"`
	BadCalls      int      `json:"bad_calls"`
	Neutral       int      `json:"neutral"`
	Pending       int      `json:"pending"`
	AvgConfidence float64  `json:"avg_confidence"`
	AccuracyPct   *float64 `json:"accuracy_pct"`
}

// Decided is the number of GOOD_CALL and BAD_CALL verdicts.
func (t VerdictTally) Decided() int {
	return t.GoodCalls + t.BadCalls
}

// CatalystVerificationMetrics is derived from the opportunity log on every read.
type CatalystVerificationMetrics struct {
	GeneratedAt  time.Time                       `json:"generated_at"`
	TotalEntries int                             `json:"total_entries"`
	Overall      VerdictTally                    `json:"overall"`
	ByCheckpoint map[CheckpointType]VerdictTally `json:"by_checkpoint"`
	ByKeyword    map[string]VerdictTally         `json:"by_keyword"`
}

// VerificationRunSummary counts what one verification pass did.
type VerificationRunSummary struct {
	StartedAt  time.Time         `json:"started_at"`
	Checkpoint CheckpointType    `json:"checkpoint,omitempty"`
	Considered int               `json:"considered"`
	Succeeded  int               `json:"succeeded"`
	Skipped    int               `json:"skipped"`
	Failed     int               `json:"failed"`
	Verdicts   map[Verdict]int   `json:"verdicts"`
	DryRun     bool              `json:"dry_run"`
	Results    []CheckpointEvent `json:"results,omitempty"`
}

// CheckpointEvent is one per-entry outcome of a verification pass.
type CheckpointEvent struct {
	EntryID    string         `json:"entry_id"`
	Keyword    string         `json:"keyword"`
	Checkpoint CheckpointType `json:"checkpoint,omitempty"`
	Status     string         `json:"status"`
	Verdict    Verdict        `json:"verdict,omitempty"`
	ChangePct  float64        `json:"change_pct"`
	Detail     string         `json:"detail,omitempty"`
}
