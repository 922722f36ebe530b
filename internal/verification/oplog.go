package verification

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/catalyst-ai-go/internal/models"
)

var ErrEntryNotFound = errors.New("opportunity log entry not found")

const maxLineBytes = 1 << 20

// pathLocks holds one mutex per absolute log path, shared by every
// OpportunityLog opened on that path in this process.
var pathLocks sync.Map

// OpportunityLog is the append-only JSONL record of fired signals. Entries are
// never removed; only empty checkpoint slots are filled in.
type OpportunityLog struct {
	path string
	mu   *sync.Mutex
}

func NewOpportunityLog(path string) *OpportunityLog {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	mu, _ := pathLocks.LoadOrStore(key, &sync.Mutex{})
	return &OpportunityLog{path: path, mu: mu.(*sync.Mutex)}
}

func (l *OpportunityLog) Path() string { return l.path }

// Append writes entry as a new line, assigning an id and timestamp when missing.
func (l *OpportunityLog) Append(entry *models.OpportunityLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open opportunity log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// List returns every entry in file order. A missing file is an empty log.
func (l *OpportunityLog) List() ([]models.OpportunityLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// SetCheckpoint fills one checkpoint of entry id and recomputes its final
// verdict. An already filled checkpoint is left untouched and
// ErrCheckpointExists is returned.
func (l *OpportunityLog) SetCheckpoint(id string, cp models.Checkpoint) (*models.OpportunityLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range entries {
		if entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	entry := &entries[idx]
	if entry.HasCheckpoint(cp.Type) {
		return nil, ErrCheckpointExists
	}
	if entry.Checkpoints == nil {
		entry.Checkpoints = make(map[models.CheckpointType]*models.Checkpoint)
	}
	stored := cp
	entry.Checkpoints[cp.Type] = &stored
	if latest, ok := entry.LatestCheckpoint(); ok {
		entry.FinalVerdict = latest.Verdict
	}

	if err := l.rewrite(entries); err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *OpportunityLog) read() ([]models.OpportunityLogEntry, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open opportunity log: %w", err)
	}
	defer f.Close()

	var entries []models.OpportunityLogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e models.OpportunityLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("opportunity log line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read opportunity log: %w", err)
	}
	return entries, nil
}

// rewrite replaces the file via a temp file and rename.
func (l *OpportunityLog) rewrite(entries []models.OpportunityLogEntry) error {
	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp log: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode log entry %s: %w", entries[i].ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp log: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("failed to replace opportunity log: %w", err)
	}
	return nil
}
