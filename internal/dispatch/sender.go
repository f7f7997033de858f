package dispatch

import (
	"context"
	"fmt"

	"leadgen-engine/internal/domain"
)

// MessageSender delivers one outbound email. Implementations wrap
// authentication failures in *AuthError so callers can tell a bad
// credential from a transient transport problem.
type MessageSender interface {
	Send(ctx context.Context, from domain.SenderIdentity, to, subject, body string) error
}

// AuthError marks a failure caused by the sender identity's credentials
// rather than the network or the recipient.
type AuthError struct {
	Sender string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Sender, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
