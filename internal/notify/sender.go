// Package notify delivers outgoing email for the account flows.
package notify

import "context"

// Sender delivers a plain-text message to one recipient.
type Sender interface {
	Name() string
	Send(ctx context.Context, to, subject, body string) error
}
