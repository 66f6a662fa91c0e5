package whatsapp

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send when the session is not in the
	// Connected state. No transport call is attempted in that case.
	ErrNotConnected = errors.New("whatsapp session is not connected")

	// ErrAlreadyRunning is returned by Start when a session attempt is
	// already in progress or established.
	ErrAlreadyRunning = errors.New("whatsapp session is already running")

	// ErrInitTimeout is returned by Start when no lifecycle event arrives
	// within the configured initialization timeout. The manager is left
	// in the Idle state.
	ErrInitTimeout = errors.New("whatsapp initialization timed out")

	// ErrSendTimeout is returned by Send when the transport does not
	// acknowledge the message within the configured send timeout.
	ErrSendTimeout = errors.New("whatsapp send timed out")

	// ErrCorruptStore indicates the credential store exists but cannot be
	// read. Distinct from ErrNoCredentials so the manager can clear and
	// retry exactly once instead of pairing from scratch on every start.
	ErrCorruptStore = errors.New("credential store is corrupted")

	// ErrNoCredentials indicates a fresh store with no paired device.
	ErrNoCredentials = errors.New("no stored credentials")
)

// SendErrorKind classifies transport-level send failures.
type SendErrorKind string

const (
	SendFailed       SendErrorKind = "send_failed"
	SendUnauthorized SendErrorKind = "unauthorized"
	SendRateLimited  SendErrorKind = "rate_limited"
	InvalidRecipient SendErrorKind = "invalid_recipient"
)

// SendError wraps a transport send failure with its classification.
// Send failures never alter the connection state.
type SendError struct {
	Kind SendErrorKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed (%s): %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// NewSendError builds a classified send error.
func NewSendError(kind SendErrorKind, err error) *SendError {
	return &SendError{Kind: kind, Err: err}
}

// SendErrorKindOf extracts the classification from err, defaulting to
// SendFailed for unclassified failures.
func SendErrorKindOf(err error) SendErrorKind {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Kind
	}
	if errors.Is(err, ErrSendTimeout) {
		return "send_timeout"
	}
	return SendFailed
}
