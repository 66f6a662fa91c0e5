package whatsapp

import (
	"context"

	"github.com/agendly/whatsapp-agent/internal/models"
)

// Session is a single live connection attempt to the WhatsApp network.
// The manager owns at most one Session at a time; a Session is never
// reused after Close.
type Session interface {
	// Connect starts the transport. Lifecycle events flow on Events()
	// from this point onward.
	Connect(ctx context.Context) error

	// Events returns the lifecycle event stream for this session. The
	// channel is closed when the session is closed.
	Events() <-chan Event

	// Send submits one outbound message and blocks until the transport
	// acknowledges it or ctx expires. Transport failures are returned
	// as *SendError.
	Send(ctx context.Context, msg models.OutboundMessage) (*models.SendReceipt, error)

	// Close tears down the transport and closes the event channel.
	// Safe to call more than once.
	Close()

	// Logout deregisters the device on the remote side. Best effort;
	// the caller clears local credentials regardless.
	Logout(ctx context.Context) error
}

// Dialer creates a fresh Session backed by the given credential store.
// A dial failure caused by unreadable credential material is reported
// as ErrCorruptStore so the manager can clear and retry once.
type Dialer func(ctx context.Context, store *CredentialStore) (Session, error)
