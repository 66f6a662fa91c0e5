package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver for the whatsmeow credential store
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/agendly/whatsapp-agent/internal/models"
)

// meowLogger bridges whatsmeow's logger interface onto logrus.
type meowLogger struct {
	entry *logrus.Entry
}

func (l meowLogger) Errorf(msg string, args ...any) { l.entry.Errorf(msg, args...) }
func (l meowLogger) Warnf(msg string, args ...any)  { l.entry.Warnf(msg, args...) }
func (l meowLogger) Infof(msg string, args ...any)  { l.entry.Debugf(msg, args...) }
func (l meowLogger) Debugf(msg string, args ...any) { l.entry.Debugf(msg, args...) }

func (l meowLogger) Sub(module string) waLog.Logger {
	return meowLogger{entry: l.entry.WithField("module", module)}
}

// DialWhatsApp is the production Dialer. It opens the credential database
// inside the store directory and wraps a whatsmeow client as a Session.
// Database open failures are reported as ErrCorruptStore so the manager
// can clear the store and retry once.
func DialWhatsApp(ctx context.Context, store *CredentialStore) (Session, error) {
	if err := store.EnsureDir(); err != nil {
		return nil, err
	}

	logger := meowLogger{entry: logrus.WithField("component", "whatsmeow")}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", store.DatabasePath())
	container, err := sqlstore.New(ctx, "sqlite3", dsn, logger.Sub("database"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		if closeErr := container.Close(); closeErr != nil {
			logrus.WithError(closeErr).Warn("Failed to close credential database")
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	client := whatsmeow.NewClient(device, logger.Sub("client"))
	// Reconnect policy belongs to the manager, not the transport.
	client.EnableAutoReconnect = false

	s := &meowSession{
		client:    client,
		container: container,
		events:    make(chan Event, 32),
	}
	s.handlerID = client.AddEventHandler(s.translate)

	return s, nil
}

type meowSession struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	events    chan Event
	handlerID uint32

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

func (s *meowSession) Connect(ctx context.Context) error {
	// The QR emitter watches ctx and disconnects the client when it
	// fires, so the context handed to whatsmeow must live exactly as
	// long as this session. Close cancels it.
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	// An unpaired device needs the QR/pairing channel before the
	// websocket connects; whatsmeow refuses to hand one out once the
	// store holds an identity.
	if s.client.Store.ID == nil {
		qrChan, err := s.client.GetQRChannel(ctx)
		if err != nil {
			if !errors.Is(err, whatsmeow.ErrQRStoreContainsID) {
				return err
			}
		} else {
			go s.pumpQR(qrChan)
		}
	}

	return s.client.Connect()
}

func (s *meowSession) pumpQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			s.emit(PairingCodeIssued{Code: item.Code})
		case "timeout":
			s.emit(Closed{Reason: "pairing timed out", Recoverable: true})
		}
	}
}

func (s *meowSession) Events() <-chan Event {
	return s.events
}

func (s *meowSession) Send(ctx context.Context, msg models.OutboundMessage) (*models.SendReceipt, error) {
	jid := types.NewJID(msg.Recipient, types.DefaultUserServer)

	resp, err := s.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(msg.Body),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, classifySendError(err)
	}

	return &models.SendReceipt{
		MessageID: string(resp.ID),
		Timestamp: resp.Timestamp,
	}, nil
}

func classifySendError(err error) error {
	switch {
	case errors.Is(err, whatsmeow.ErrNotLoggedIn) || errors.Is(err, whatsmeow.ErrNotConnected):
		return NewSendError(SendUnauthorized, err)
	case errors.Is(err, whatsmeow.ErrIQRateOverLimit):
		return NewSendError(SendRateLimited, err)
	case errors.Is(err, whatsmeow.ErrRecipientADJID) || errors.Is(err, whatsmeow.ErrUnknownServer):
		return NewSendError(InvalidRecipient, err)
	case strings.Contains(err.Error(), "rate-overlimit"):
		return NewSendError(SendRateLimited, err)
	default:
		return NewSendError(SendFailed, err)
	}
}

// translate maps whatsmeow events onto the manager's lifecycle events.
func (s *meowSession) translate(evt any) {
	switch e := evt.(type) {
	case *events.Connected:
		s.emit(Opened{})

	case *events.PairSuccess:
		s.emit(CredentialsRotated{Material: DeviceInfo{
			JID:      e.ID.String(),
			PushName: s.client.Store.PushName,
			PairedAt: time.Now().UTC(),
		}})

	case *events.Disconnected:
		s.emit(Closed{Reason: "connection closed", Recoverable: true})

	case *events.StreamReplaced:
		s.emit(Closed{Reason: "stream replaced by another device", Recoverable: false})

	case *events.LoggedOut:
		s.emit(Closed{Reason: fmt.Sprintf("logged out by server (%v)", e.Reason), Recoverable: false})

	case *events.TemporaryBan:
		s.emit(Closed{Reason: fmt.Sprintf("temporary ban: %v", e.Code), Recoverable: true})

	case *events.ConnectFailure:
		s.emit(Closed{Reason: fmt.Sprintf("connect failure: %v", e.Reason), Recoverable: true})
	}
}

func (s *meowSession) emit(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- evt:
	default:
		// The manager drains this channel promptly; a full buffer means
		// something is badly wedged. Dropping is preferable to blocking
		// whatsmeow's dispatch goroutine.
		logrus.Warn("WhatsApp event buffer full, dropping lifecycle event")
	}
}

func (s *meowSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.client.RemoveEventHandler(s.handlerID)
	s.client.Disconnect()

	// Each dial opens a fresh database handle over the credential store;
	// the manager redials every few seconds during an outage, so leaving
	// it open leaks a descriptor per attempt.
	if err := s.container.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close credential database")
	}

	close(s.events)
}

func (s *meowSession) Logout(ctx context.Context) error {
	return s.client.Logout(ctx)
}
