// Package ledger remembers when the rotation job last completed so a run can
// tell that one or more daily runs were skipped. The policy never reads it.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNoRuns is returned by LastRun when nothing has been recorded yet.
var ErrNoRuns = errors.New("no previous run recorded")

// RunRecord describes one completed run.
type RunRecord struct {
	ID         string         `json:"id" yaml:"id"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Identities int            `json:"identities" yaml:"identities"`
	Actions    map[string]int `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Ledger defines the interface for run bookkeeping
type Ledger interface {
	// LastRun returns the most recent record, or ErrNoRuns
	LastRun(ctx context.Context) (*RunRecord, error)

	// Record stores a completed run
	Record(ctx context.Context, run *RunRecord) error

	// History returns up to limit records, newest first. limit <= 0 means all
	History(ctx context.Context, limit int) ([]RunRecord, error)
}

// MissedDays returns how many UTC calendar days lie strictly between prev and now.
// Consecutive daily runs give 0.
func MissedDays(prev, now time.Time) int {
	p := prev.UTC()
	n := now.UTC()
	prevDate := time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, time.UTC)
	nowDate := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)

	missed := int(nowDate.Sub(prevDate).Hours()/24) - 1
	if missed < 0 {
		return 0
	}
	return missed
}

// Nop is the ledger used when the safeguard is disabled.
type Nop struct{}

// LastRun always returns ErrNoRuns.
func (Nop) LastRun(context.Context) (*RunRecord, error) { return nil, ErrNoRuns }

// Record discards the run.
func (Nop) Record(context.Context, *RunRecord) error { return nil }

// History returns an empty slice.
func (Nop) History(context.Context, int) ([]RunRecord, error) { return []RunRecord{}, nil }
