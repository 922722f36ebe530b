// Package verification checks fired catalyst signals against the price move
// that followed and keeps the accuracy record.
package verification

import (
	"errors"
	"fmt"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
)

// ErrNotReady means the entry is outside every window or its window was already evaluated.
var ErrNotReady = errors.New("no checkpoint due")

// Window is the age range, [Min, Max), in which a checkpoint may be evaluated.
type Window struct {
	Checkpoint models.CheckpointType
	Min        time.Duration
	Max        time.Duration
}

type Schedule struct {
	windows []Window
}

// DefaultSchedule is after1hr 60-180 min, nextSession 180-720 min, after24hr 720-2880 min.
func DefaultSchedule() *Schedule {
	s, _ := NewSchedule([]Window{
		{Checkpoint: models.CheckpointAfter1Hr, Min: 60 * time.Minute, Max: 180 * time.Minute},
		{Checkpoint: models.CheckpointNextSession, Min: 180 * time.Minute, Max: 720 * time.Minute},
		{Checkpoint: models.CheckpointAfter24Hr, Min: 720 * time.Minute, Max: 2880 * time.Minute},
	})
	return s
}

// NewSchedule requires windows to be non-empty, ordered and non-overlapping.
func NewSchedule(windows []Window) (*Schedule, error) {
	for i, w := range windows {
		if w.Max <= w.Min {
			return nil, fmt.Errorf("window %s: max %s must exceed min %s", w.Checkpoint, w.Max, w.Min)
		}
		if i > 0 && w.Min < windows[i-1].Max {
			return nil, fmt.Errorf("window %s overlaps %s", w.Checkpoint, windows[i-1].Checkpoint)
		}
	}
	return &Schedule{windows: windows}, nil
}

func (s *Schedule) Windows() []Window {
	return append([]Window(nil), s.windows...)
}

// Window returns the window for a checkpoint.
func (s *Schedule) Window(cp models.CheckpointType) (Window, bool) {
	for _, w := range s.windows {
		if w.Checkpoint == cp {
			return w, true
		}
	}
	return Window{}, false
}

// NextDue picks the checkpoint whose window contains the entry's age at now.
func (s *Schedule) NextDue(entry *models.OpportunityLogEntry, now time.Time) (models.CheckpointType, error) {
	age := now.Sub(entry.Timestamp)
	for _, w := range s.windows {
		if age >= w.Min && age < w.Max {
			if entry.HasCheckpoint(w.Checkpoint) {
				return "", ErrNotReady
			}
			return w.Checkpoint, nil
		}
	}
	return "", ErrNotReady
}

// Due reports whether a manually chosen checkpoint can be evaluated now:
// the entry must have reached the window and not been evaluated there yet.
func (s *Schedule) Due(entry *models.OpportunityLogEntry, cp models.CheckpointType, now time.Time) error {
	w, ok := s.Window(cp)
	if !ok {
		return fmt.Errorf("unknown checkpoint %q", cp)
	}
	if entry.HasCheckpoint(cp) || now.Sub(entry.Timestamp) < w.Min {
		return ErrNotReady
	}
	return nil
}
