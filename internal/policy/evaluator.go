package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/systmms/keyrotator/internal/directory"
	"github.com/systmms/keyrotator/internal/escrow"
	"github.com/systmms/keyrotator/internal/ledger"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/metrics"
	"github.com/systmms/keyrotator/internal/notify"
)

// RunSummary reports what a run did.
type RunSummary struct {
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Identities int            `json:"identities" yaml:"identities"`
	Skipped    map[string]int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Actions    map[string]int `json:"actions,omitempty" yaml:"actions,omitempty"`
	MissedDays int            `json:"missed_days,omitempty" yaml:"missed_days,omitempty"`
	Decisions  []Decision     `json:"decisions,omitempty" yaml:"decisions,omitempty"`
}

func newRunSummary(start time.Time) *RunSummary {
	return &RunSummary{
		StartedAt: start,
		Skipped:   make(map[string]int),
		Actions:   make(map[string]int),
	}
}

// Evaluator applies the policy to every identity in the directory.
type Evaluator struct {
	directory directory.Gateway
	notifier  notify.Notifier
	escrow    escrow.Escrow
	ledger    ledger.Ledger
	metrics   *metrics.Recorder
	logger    *logging.Logger
	now       func() time.Time
}

// Option is a functional option for configuring the evaluator
type Option func(*Evaluator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// WithEscrow stores every newly created key pair.
func WithEscrow(esc escrow.Escrow) Option {
	return func(e *Evaluator) {
		e.escrow = esc
	}
}

// WithLedger enables the missed-run check.
func WithLedger(l ledger.Ledger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.ledger = l
		}
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// NewEvaluator creates an evaluator.
func NewEvaluator(dir directory.Gateway, notifier notify.Notifier, logger *logging.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		directory: dir,
		notifier:  notifier,
		ledger:    ledger.Nop{},
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates and applies the policy to every identity. The first directory,
// notifier or escrow failure aborts the run. Only completed runs reach the ledger.
func (e *Evaluator) Run(ctx context.Context) (*RunSummary, error) {
	now := e.now()
	e.logger.Info("RotateAccessKey: starting...")

	summary := newRunSummary(now)
	summary.MissedDays = e.checkMissedRuns(ctx, now)

	users, err := e.directory.ListIdentities(ctx)
	if err != nil {
		return summary, err
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		snap, err := e.snapshot(ctx, user)
		if err != nil {
			return summary, err
		}

		d := Decide(snap, now)
		if err := e.apply(ctx, d); err != nil {
			return summary, err
		}

		summary.Identities++
		summary.Decisions = append(summary.Decisions, d)
		if d.Skip != "" {
			summary.Skipped[string(d.Skip)]++
		}
		for _, a := range d.Actions {
			summary.Actions[string(a.Kind)]++
		}
	}

	summary.FinishedAt = e.now()
	e.metrics.ObserveRun(summary.FinishedAt.Sub(summary.StartedAt))
	e.recordRun(ctx, summary)

	e.logger.Info("Completed")
	return summary, nil
}

// Plan computes the decision for every identity without changing anything.
func (e *Evaluator) Plan(ctx context.Context) ([]Decision, error) {
	now := e.now()

	users, err := e.directory.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}

	decisions := make([]Decision, 0, len(users))
	for _, user := range users {
		snap, err := e.snapshot(ctx, user)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, Decide(snap, now))
	}
	return decisions, nil
}

// snapshot reads everything Decide needs for one identity. Credentials are
// not listed for identities without an owner.
func (e *Evaluator) snapshot(ctx context.Context, user string) (Snapshot, error) {
	snap := Snapshot{Identity: user}
	e.logger.Info("username %s", user)

	owner, ok, err := e.directory.OwnerEmail(ctx, user)
	if err != nil {
		return snap, err
	}
	if !ok {
		return snap, nil
	}
	snap.Owner, snap.HasOwner = owner, true

	creds, err := e.directory.ListCredentials(ctx, user)
	if err != nil {
		return snap, err
	}
	snap.Credentials = creds

	if len(creds) == 2 {
		younger := OrderByAge(creds)[0]
		used, err := e.directory.KeyEverUsed(ctx, younger.ID)
		if err != nil {
			return snap, err
		}
		snap.YoungerEverUsed = used
	}

	return snap, nil
}

func (e *Evaluator) apply(ctx context.Context, d Decision) error {
	log := e.logger.With("user", d.Identity)

	switch d.Skip {
	case SkipNoOwner:
		log.Info("Skipping: Email not found for user %s", d.Identity)
		e.metrics.Skipped(string(d.Skip))
		return nil
	case SkipTooManyKeys:
		log.Warn("Skipping user %s: found %d access keys, expected at most 2", d.Identity, d.Keys)
		e.metrics.Skipped(string(d.Skip))
		return nil
	}

	if d.Keys == 2 {
		log.Info("Screening existing access keys for user %s", d.Identity)
	}

	for _, a := range d.Actions {
		var err error
		switch a.Kind {
		case ActionCreate:
			err = e.createAndDeliver(ctx, log, d.Identity)
		case ActionRemind:
			log.Info("User %s has %d days to use this new key %s", d.Identity, a.DaysLeft, a.KeyID)
			err = e.publish(ctx,
				fmt.Sprintf("You have %d days to use the new access keys.", a.DaysLeft),
				"Please use the new access keys for "+d.Identity)
		case ActionDeactivate:
			log.Info("Deactivating old key %s for user %s", a.KeyID, d.Identity)
			err = e.directory.SetCredentialStatus(ctx, d.Identity, a.KeyID, directory.StatusInactive)
		case ActionDelete:
			log.Info("Deleting old key %s for user %s", a.KeyID, d.Identity)
			err = e.directory.DeleteCredential(ctx, d.Identity, a.KeyID)
		default:
			err = fmt.Errorf("unknown action %q", a.Kind)
		}
		if err != nil {
			return err
		}
		e.metrics.Action(string(a.Kind))
	}

	return nil
}

// createAndDeliver issues a key, escrows it when configured, then mails the pair to the owner.
func (e *Evaluator) createAndDeliver(ctx context.Context, log *logging.Logger, user string) error {
	log.Info("Creating a new access key")

	cred, err := e.directory.CreateCredential(ctx, user)
	if err != nil {
		return err
	}
	defer cred.Secret.Destroy()

	secret, err := cred.Secret.Reveal()
	if err != nil {
		return fmt.Errorf("failed to read new secret for %s: %w", cred.ID, err)
	}

	if e.escrow != nil {
		if err := e.escrow.Store(ctx, user, cred); err != nil {
			return err
		}
	}

	body := "Access Key: " + cred.ID + "\n" + "Secret Key: " + secret + "\n"
	return e.publish(ctx, body, "New access keys created for user "+user)
}

func (e *Evaluator) publish(ctx context.Context, body, subject string) error {
	if _, err := e.notifier.Publish(ctx, body, subject); err != nil {
		return err
	}
	e.metrics.Action("notify")
	return nil
}

// checkMissedRuns warns when the previous completed run is more than one calendar day old.
// Ledger problems are logged and otherwise ignored.
func (e *Evaluator) checkMissedRuns(ctx context.Context, now time.Time) int {
	last, err := e.ledger.LastRun(ctx)
	if err != nil {
		if errors.Is(err, ledger.ErrNoRuns) {
			e.logger.Debug("No previous run recorded")
		} else {
			e.logger.Warn("Unable to read run ledger: %v", err)
		}
		return 0
	}

	missed := ledger.MissedDays(last.StartedAt, now)
	if missed > 0 {
		e.logger.Warn("%d daily run(s) missed since %s; rotations due on those days were not performed",
			missed, last.StartedAt.UTC().Format(time.RFC3339))
		e.metrics.MissedDays(missed)
	}
	return missed
}

func (e *Evaluator) recordRun(ctx context.Context, summary *RunSummary) {
	run := &ledger.RunRecord{
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Identities: summary.Identities,
		Actions:    summary.Actions,
	}
	if err := e.ledger.Record(ctx, run); err != nil {
		e.logger.Warn("Unable to record run: %v", err)
	}
}
