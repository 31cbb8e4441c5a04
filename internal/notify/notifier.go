// Package notify delivers owner notifications to a fixed destination.
package notify

import (
	"context"
)

// Notifier publishes a message with a subject and returns the delivery identifier.
type Notifier interface {
	// Name returns the notifier type (e.g. "sns", "webhook").
	Name() string

	// Publish delivers body under subject.
	Publish(ctx context.Context, body, subject string) (messageID string, err error)

	// Validate checks that the destination exists and is reachable.
	Validate(ctx context.Context) error
}
