// Package policy implements the access key rotation policy.
//
// Every threshold is an exact day count, so the job must run once per
// calendar day for each age to be observed. Per identity:
//
//   - one key aged CreateNewAccessKeyAfter days: issue a second key and mail
//     it to the owner
//   - two keys, younger never used and aged a NewAccessKeyNotifyWindow day:
//     remind the owner how many days remain
//   - two keys, younger aged ExpireOldAccessKeyAfter days: deactivate the older key
//   - two keys, younger aged DeleteOldAccessKeyAfter days: delete the older key
//
// The older key is retired on the younger key's clock, not its own.
package policy

import (
	"sort"
	"time"

	"github.com/systmms/keyrotator/internal/directory"
)

const (
	ExpireOldAccessKeyAfter = 30
	DeleteOldAccessKeyAfter = 60
	CreateNewAccessKeyAfter = 90
)

// NewAccessKeyNotifyWindow lists the younger-key ages at which an unused key triggers a reminder.
var NewAccessKeyNotifyWindow = [...]int{14, 21}

// ActionKind names one step of a decision.
type ActionKind string

const (
	ActionCreate     ActionKind = "create"
	ActionRemind     ActionKind = "remind"
	ActionDeactivate ActionKind = "deactivate"
	ActionDelete     ActionKind = "delete"
)

// SkipReason says why an identity was left alone.
type SkipReason string

const (
	SkipNoOwner     SkipReason = "no_owner"
	SkipTooManyKeys SkipReason = "too_many_keys"
)

// Action is one step the evaluator performs for an identity.
type Action struct {
	Kind ActionKind `json:"kind" yaml:"kind"`
	// KeyID is the key acted on. Empty for create.
	KeyID string `json:"key_id,omitempty" yaml:"key_id,omitempty"`
	// DaysLeft is set for reminders.
	DaysLeft int `json:"days_left,omitempty" yaml:"days_left,omitempty"`
}

// Snapshot is the directory state one decision is made from.
type Snapshot struct {
	Identity    string
	Owner       string
	HasOwner    bool
	Credentials []directory.Credential
	// YoungerEverUsed is only looked up when there are exactly two credentials.
	YoungerEverUsed bool
}

// Decision is the outcome of evaluating one identity.
type Decision struct {
	Identity string     `json:"identity" yaml:"identity"`
	Owner    string     `json:"owner,omitempty" yaml:"owner,omitempty"`
	Keys     int        `json:"keys" yaml:"keys"`
	Age      int        `json:"age" yaml:"age"`
	Skip     SkipReason `json:"skip,omitempty" yaml:"skip,omitempty"`
	Actions  []Action   `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// NoOp reports whether the decision changes nothing.
func (d Decision) NoOp() bool {
	return d.Skip != "" || len(d.Actions) == 0
}

// KeyAge returns the whole days elapsed between created and now. Creation
// times in the future count as age 0.
func KeyAge(created, now time.Time) int {
	elapsed := now.Sub(created)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}

// OrderByAge returns a copy of creds sorted newest first, so index 0 is the younger key.
func OrderByAge(creds []directory.Credential) []directory.Credential {
	ordered := append([]directory.Credential(nil), creds...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	return ordered
}

func inNotifyWindow(age int) bool {
	for _, day := range NewAccessKeyNotifyWindow {
		if age == day {
			return true
		}
	}
	return false
}

// Decide computes what should happen to snap at instant now. It has no side effects.
func Decide(snap Snapshot, now time.Time) Decision {
	d := Decision{
		Identity: snap.Identity,
		Owner:    snap.Owner,
		Keys:     len(snap.Credentials),
	}

	if !snap.HasOwner {
		d.Skip = SkipNoOwner
		return d
	}

	switch len(snap.Credentials) {
	case 1:
		d.Age = KeyAge(snap.Credentials[0].CreatedAt, now)
		if d.Age == CreateNewAccessKeyAfter {
			d.Actions = append(d.Actions, Action{Kind: ActionCreate})
		}

	case 2:
		ordered := OrderByAge(snap.Credentials)
		younger, older := ordered[0], ordered[1]
		d.Age = KeyAge(younger.CreatedAt, now)

		if !snap.YoungerEverUsed && inNotifyWindow(d.Age) {
			d.Actions = append(d.Actions, Action{
				Kind:     ActionRemind,
				KeyID:    younger.ID,
				DaysLeft: ExpireOldAccessKeyAfter - d.Age,
			})
		}

		// Deliberately keyed on the younger key's age.
		if d.Age == ExpireOldAccessKeyAfter {
			d.Actions = append(d.Actions, Action{Kind: ActionDeactivate, KeyID: older.ID})
		} else if d.Age == DeleteOldAccessKeyAfter {
			d.Actions = append(d.Actions, Action{Kind: ActionDelete, KeyID: older.ID})
		}

	case 0:
		// nothing to rotate

	default:
		d.Skip = SkipTooManyKeys
	}

	return d
}
