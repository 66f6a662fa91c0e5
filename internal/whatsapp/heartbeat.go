package whatsapp

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// DefaultHeartbeatInterval is used when no interval is configured.
const DefaultHeartbeatInterval = 30 * time.Second

// Heartbeat periodically logs the session state so operators can spot a
// silently wedged connection from the logs alone. It is observability
// only; it never drives transitions.
type Heartbeat struct {
	manager   *Manager
	scheduler *gocron.Scheduler
	interval  time.Duration
}

func NewHeartbeat(m *Manager, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		manager:   m,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
	}
}

func (h *Heartbeat) Start() error {
	if _, err := h.scheduler.Every(h.interval).Do(h.tick); err != nil {
		return err
	}
	h.scheduler.StartAsync()
	return nil
}

func (h *Heartbeat) Stop() {
	h.scheduler.Stop()
}

func (h *Heartbeat) tick() {
	status := h.manager.Status()

	fields := logrus.Fields{
		"state":     h.manager.State().String(),
		"connected": status.Connected,
	}
	if status.LastError != nil {
		fields["lastError"] = *status.LastError
	}
	if status.LastConnectedAt != nil {
		fields["lastConnectedAt"] = status.LastConnectedAt.Format(time.RFC3339)
	}

	logrus.WithFields(fields).Debug("WhatsApp session heartbeat")
}
