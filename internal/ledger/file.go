package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

const (
	lastRunFile = "last-run.json"
	historyDir  = "history"
)

// FileLedger implements Ledger using the filesystem
type FileLedger struct {
	baseDir      string
	historyLimit int
	mu           sync.RWMutex
}

// NewFileLedger creates a file-based ledger. historyLimit bounds the number of
// history files kept; 0 keeps everything.
func NewFileLedger(baseDir string, historyLimit int) *FileLedger {
	return &FileLedger{
		baseDir:      baseDir,
		historyLimit: historyLimit,
	}
}

// LastRun reads last-run.json
func (fl *FileLedger) LastRun(ctx context.Context) (*RunRecord, error) {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(fl.baseDir, lastRunFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRuns
		}
		return nil, fmt.Errorf("failed to read last run file: %w", err)
	}

	var run RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last run: %w", err)
	}
	return &run, nil
}

// Record writes the run to last-run.json and to the history directory, then prunes history
func (fl *FileLedger) Record(ctx context.Context, run *RunRecord) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	dir := filepath.Join(fl.baseDir, historyDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.json", run.StartedAt.UTC().Format("20060102-150405.000000000")))
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(fl.baseDir, lastRunFile), data, 0600); err != nil {
		return fmt.Errorf("failed to write last run file: %w", err)
	}

	return fl.prune(dir)
}

// History reads history files newest first
func (fl *FileLedger) History(ctx context.Context, limit int) ([]RunRecord, error) {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	dir := filepath.Join(fl.baseDir, historyDir)
	names, err := historyFiles(dir)
	if err != nil {
		return nil, err
	}

	runs := []RunRecord{}
	for i := len(names) - 1; i >= 0; i-- {
		data, err := os.ReadFile(filepath.Join(dir, names[i]))
		if err != nil {
			continue // Skip files that can't be read
		}

		var run RunRecord
		if err := json.Unmarshal(data, &run); err != nil {
			continue // Skip invalid JSON files
		}
		runs = append(runs, run)

		if limit > 0 && len(runs) >= limit {
			break
		}
	}

	return runs, nil
}

func (fl *FileLedger) prune(dir string) error {
	if fl.historyLimit <= 0 {
		return nil
	}

	names, err := historyFiles(dir)
	if err != nil {
		return err
	}
	for len(names) > fl.historyLimit {
		if err := os.Remove(filepath.Join(dir, names[0])); err != nil {
			return fmt.Errorf("failed to remove old history file: %w", err)
		}
		names = names[1:]
	}
	return nil
}

// historyFiles lists history file names oldest first. File names are sortable timestamps.
func historyFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
