package whatsapp

import "time"

// Event is a connection-lifecycle event produced by a Session. Events are
// consumed by the manager in arrival order and discarded when they belong
// to a superseded session generation.
type Event interface {
	isEvent()
}

// PairingCodeIssued is emitted while the session awaits external pairing.
// The code is short-lived and must be presented to the WhatsApp client app
// (typically rendered as a QR code) to authorize the new device.
type PairingCodeIssued struct {
	Code string
}

// Opened is emitted once the session is authenticated and usable.
type Opened struct{}

// Closed is emitted when the transport connection is lost. Recoverable
// closures can be retried with the existing credentials; unrecoverable
// ones (remote logout, stream takeover) require fresh pairing or an
// explicit operator action.
type Closed struct {
	Reason      string
	Recoverable bool
}

// CredentialsRotated is emitted when the protocol issues new credential
// material, most notably right after a successful pairing.
type CredentialsRotated struct {
	Material DeviceInfo
}

func (PairingCodeIssued) isEvent()  {}
func (Opened) isEvent()             {}
func (Closed) isEvent()             {}
func (CredentialsRotated) isEvent() {}

// DeviceInfo is the durable metadata describing the paired device. The
// cryptographic session state itself lives in the transport's database
// inside the credential store directory; this record is what the agent
// keeps alongside it for observability and resume checks.
type DeviceInfo struct {
	JID       string    `yaml:"jid"`
	PushName  string    `yaml:"pushName,omitempty"`
	PairedAt  time.Time `yaml:"pairedAt"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}
