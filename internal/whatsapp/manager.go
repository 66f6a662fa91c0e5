package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agendly/whatsapp-agent/internal/models"
)

// State is the session manager's connection state.
type State int

const (
	// StateIdle means no session object exists, e.g. after an explicit
	// disconnect or before the first start.
	StateIdle State = iota
	// StateConnecting means a session object exists and the manager is
	// waiting for its first lifecycle event (or for a scheduled
	// reconnect to fire).
	StateConnecting
	// StateAwaitingPairing means a pairing code was issued and has not
	// been scanned yet.
	StateAwaitingPairing
	// StateConnected means the session is authenticated and usable.
	StateConnected
	// StateLoggedOut means the remote side invalidated the session.
	// No automatic retry happens; an operator must call Reconnect or
	// Logout to clear the credentials.
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingPairing:
		return "awaiting_pairing"
	case StateConnected:
		return "connected"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Config holds the manager's timing constants. The defaults match the
// behavior of the production deployment; they are configurable because
// they were chosen empirically against the real transport.
type Config struct {
	ReconnectDelay time.Duration // delay before retrying a recoverable closure
	RestartDelay   time.Duration // delay between disconnect and start in Reconnect
	InitTimeout    time.Duration // hard bound on the Start suspension
	SendTimeout    time.Duration // hard bound on a single Send
}

// DefaultConfig returns the production timing defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay: 5 * time.Second,
		RestartDelay:   2 * time.Second,
		InitTimeout:    8 * time.Second,
		SendTimeout:    15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = def.RestartDelay
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = def.InitTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	return c
}

// attempt tracks one in-flight Start suspension so that the first
// decisive lifecycle event, a disconnect or a logout can resolve it
// exactly once.
type attempt struct {
	done chan struct{}
	once sync.Once
}

func (a *attempt) finish() {
	a.once.Do(func() { close(a.done) })
}

// Manager owns the single active WhatsApp session and drives its
// lifecycle: pairing, reconnect policy and credential persistence.
//
// Every state transition is serialized through one mutex. The status
// snapshot is published through an atomic pointer so status reads never
// contend with slow operations such as an in-flight send.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	dial  Dialer
	store *CredentialStore

	state   State
	session Session
	// gen identifies the current session generation. Events and timer
	// callbacks carry the generation they were created under and are
	// discarded when it no longer matches.
	gen     uint64
	attempt *attempt

	reconnectTimer *time.Timer
	restartTimer   *time.Timer

	lastConnected *time.Time
	lastErr       *string

	status atomic.Pointer[models.SessionStatus]
}

// NewManager builds a manager around the given dialer and credential
// store. The manager starts in the Idle state; nothing connects until
// Start is called.
func NewManager(dial Dialer, store *CredentialStore, cfg Config) *Manager {
	m := &Manager{
		cfg:   cfg.withDefaults(),
		dial:  dial,
		store: store,
		state: StateIdle,
	}
	m.status.Store(&models.SessionStatus{})
	return m
}

// Status returns the last published status snapshot. Safe to call
// concurrently with any other operation.
func (m *Manager) Status() models.SessionStatus {
	if s := m.status.Load(); s != nil {
		return *s
	}
	return models.SessionStatus{}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Store exposes the credential store for observability surfaces.
func (m *Manager) Store() *CredentialStore {
	return m.store
}

// Start creates a new session and blocks until the first lifecycle
// event arrives (pairing code, open or close), the configured init
// timeout expires, or ctx is canceled. On timeout the manager is left
// in Idle, not Connecting, so a later Start can proceed cleanly.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle && m.state != StateLoggedOut {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}

	att, err := m.beginAttemptLocked(ctx)
	if err != nil {
		m.state = StateIdle
		m.setErrorLocked(err.Error())
		m.publishLocked(false, nil)
		m.mu.Unlock()
		return err
	}
	gen := m.gen
	m.mu.Unlock()

	timer := time.NewTimer(m.cfg.InitTimeout)
	defer timer.Stop()

	select {
	case <-att.done:
		return nil
	case <-ctx.Done():
		m.abortStart(gen, "start canceled")
		return ctx.Err()
	case <-timer.C:
		// The decisive event may have raced the timer.
		select {
		case <-att.done:
			return nil
		default:
		}
		if m.abortStart(gen, "init timeout") {
			return ErrInitTimeout
		}
		return nil
	}
}

// Send submits one message over the current session. Valid only in the
// Connected state; otherwise it fails fast with ErrNotConnected without
// touching the transport. A send failure never mutates connection state.
func (m *Manager) Send(ctx context.Context, msg models.OutboundMessage) (*models.SendReceipt, error) {
	m.mu.Lock()
	if m.state != StateConnected || m.session == nil {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	sess := m.session
	m.mu.Unlock()

	// The transport call happens outside the manager lock so status
	// reads and lifecycle operations stay available during a slow send.
	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	defer cancel()

	receipt, err := sess.Send(sendCtx, msg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrSendTimeout
		}
		return nil, err
	}
	return receipt, nil
}

// Disconnect closes the current session, cancels any pending reconnect
// and leaves the manager in Idle. Events from the closed session are
// discarded from this point on.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked("disconnected manually")
}

// Logout performs a Disconnect and additionally deregisters the device
// remotely (best effort) and deletes all durable credentials, so the
// next Start requires a fresh pairing.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		if err := m.session.Logout(ctx); err != nil {
			logrus.WithError(err).Warn("Remote logout failed, clearing local credentials anyway")
		}
	}

	m.disconnectLocked("logged out")

	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear credential store: %w", err)
	}
	return nil
}

// Reconnect disconnects and schedules a fresh Start after the configured
// restart delay. Used to recover from the LoggedOut state or to force a
// new attempt. Returns immediately; the restart happens in background.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectLocked("reconnecting")

	gen := m.gen
	m.restartTimer = time.AfterFunc(m.cfg.RestartDelay, func() {
		m.mu.Lock()
		m.restartTimer = nil
		if gen != m.gen || m.state != StateIdle {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		if err := m.Start(context.Background()); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			logrus.WithError(err).Warn("Deferred reconnect failed")
		}
	})
}

// beginAttemptLocked dials a new session, registers its event pump and
// kicks off the transport connect. A corrupt credential store is cleared
// and the dial retried exactly once; a second failure is surfaced.
func (m *Manager) beginAttemptLocked(ctx context.Context) (*attempt, error) {
	sess, err := m.dialWithRecoveryLocked(ctx)
	if err != nil {
		return nil, err
	}

	m.gen++
	gen := m.gen
	m.session = sess
	m.state = StateConnecting
	m.publishLocked(false, nil)

	att := &attempt{done: make(chan struct{})}
	m.attempt = att

	go m.pump(gen, sess)

	// The session outlives Start: once a pairing code resolves the call,
	// the caller's ctx may be canceled while pairing is still in
	// progress, and that cancellation must not reach the transport.
	// Teardown happens through Close (abortStart, disconnect), never
	// through the start ctx.
	connectCtx := context.WithoutCancel(ctx)
	go func() {
		if err := sess.Connect(connectCtx); err != nil {
			m.handleEvent(gen, Closed{Reason: err.Error(), Recoverable: true})
		}
	}()

	return att, nil
}

func (m *Manager) dialWithRecoveryLocked(ctx context.Context) (Session, error) {
	sess, err := m.dial(ctx, m.store)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrCorruptStore) {
		return nil, err
	}

	logrus.WithError(err).Warn("Credential store corrupted, clearing and retrying once")
	if clearErr := m.store.Clear(); clearErr != nil {
		return nil, fmt.Errorf("failed to reset corrupted credential store: %w", clearErr)
	}

	sess, err = m.dial(ctx, m.store)
	if err != nil {
		return nil, fmt.Errorf("session init failed after store reset: %w", err)
	}
	return sess, nil
}

// pump forwards session events to the state machine until the session's
// event channel closes.
func (m *Manager) pump(gen uint64, sess Session) {
	for evt := range sess.Events() {
		m.handleEvent(gen, evt)
	}
}

func (m *Manager) handleEvent(gen uint64, evt Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// Event from a superseded session; no observable effect.
		return
	}

	switch e := evt.(type) {
	case PairingCodeIssued:
		if m.state != StateConnecting && m.state != StateAwaitingPairing {
			return
		}
		m.state = StateAwaitingPairing
		m.lastErr = nil
		code := e.Code
		m.publishLocked(false, &code)
		m.finishAttemptLocked()
		logrus.WithField("code", e.Code).Info("WhatsApp pairing code issued")

	case Opened:
		if m.state != StateConnecting && m.state != StateAwaitingPairing {
			return
		}
		m.state = StateConnected
		now := time.Now()
		m.lastConnected = &now
		m.lastErr = nil
		m.publishLocked(true, nil)
		m.finishAttemptLocked()
		logrus.Info("WhatsApp session connected")

	case Closed:
		m.handleClosedLocked(e)
		m.finishAttemptLocked()

	case CredentialsRotated:
		// Best effort: a persistence failure is logged but never tears
		// down a working connection.
		if err := m.store.SaveDevice(e.Material); err != nil {
			logrus.WithError(err).Warn("Failed to persist rotated credentials")
		}
	}
}

func (m *Manager) handleClosedLocked(e Closed) {
	if m.state == StateIdle || m.state == StateLoggedOut {
		return
	}

	m.closeSessionLocked()

	if !e.Recoverable {
		m.cancelTimersLocked()
		m.state = StateLoggedOut
		m.setErrorLocked("session logged out")
		m.publishLocked(false, nil)
		logrus.WithField("reason", e.Reason).Warn("WhatsApp session invalidated remotely, manual action required")
		return
	}

	m.state = StateConnecting
	m.setErrorLocked(e.Reason)
	m.publishLocked(false, nil)

	// A single outstanding reconnect timer: further Closed events while
	// one is scheduled must not spawn a second.
	if m.reconnectTimer != nil {
		return
	}

	gen := m.gen
	m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.autoReconnect(gen)
	})
	logrus.WithFields(logrus.Fields{
		"reason": e.Reason,
		"delay":  m.cfg.ReconnectDelay.String(),
	}).Info("WhatsApp connection lost, reconnect scheduled")
}

func (m *Manager) autoReconnect(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reconnectTimer = nil
	if gen != m.gen || m.state != StateConnecting {
		return
	}

	if _, err := m.beginAttemptLocked(context.Background()); err != nil {
		m.setErrorLocked(err.Error())
		m.publishLocked(false, nil)
		logrus.WithError(err).Warn("Reconnect attempt failed, rescheduling")

		next := m.gen
		m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, func() {
			m.autoReconnect(next)
		})
	}
}

// abortStart tears down an initialization attempt that timed out or was
// canceled. Returns false when the attempt was already resolved or
// superseded, in which case nothing changes.
func (m *Manager) abortStart(gen uint64, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.attempt == nil {
		return false
	}

	m.cancelTimersLocked()
	m.closeSessionLocked()
	m.state = StateIdle
	m.setErrorLocked(reason)
	m.publishLocked(false, nil)
	m.finishAttemptLocked()
	return true
}

func (m *Manager) disconnectLocked(reason string) {
	m.cancelTimersLocked()
	m.closeSessionLocked()
	m.state = StateIdle
	m.setErrorLocked(reason)
	m.publishLocked(false, nil)
	m.finishAttemptLocked()
}

// closeSessionLocked tears down the current session handle and bumps the
// generation so any straggling events or timer callbacks from it are
// discarded.
func (m *Manager) closeSessionLocked() {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	m.gen++
}

func (m *Manager) cancelTimersLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.restartTimer != nil {
		m.restartTimer.Stop()
		m.restartTimer = nil
	}
}

func (m *Manager) finishAttemptLocked() {
	if m.attempt != nil {
		m.attempt.finish()
		m.attempt = nil
	}
}

func (m *Manager) setErrorLocked(msg string) {
	m.lastErr = &msg
}

func (m *Manager) publishLocked(connected bool, pairingCode *string) {
	st := models.SessionStatus{
		Connected:       connected,
		PairingCode:     pairingCode,
		LastConnectedAt: m.lastConnected,
		LastError:       m.lastErr,
	}
	m.status.Store(&st)
}
