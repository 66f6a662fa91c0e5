// Package agent assembles the messaging agent: the session manager, its
// heartbeat and the HTTP server, with start/stop lifecycle management.
package agent

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agendly/whatsapp-agent/internal/config"
	"github.com/agendly/whatsapp-agent/internal/daemon"
	"github.com/agendly/whatsapp-agent/internal/whatsapp"
)

// Agent owns the long-lived components of the process.
type Agent struct {
	config    *config.Config
	sessions  *whatsapp.Manager
	heartbeat *whatsapp.Heartbeat
	server    *daemon.Server
}

// New constructs the agent from configuration. The messaging enable flag
// is read here, once; a disabled agent still serves HTTP so operators
// can inspect status, but every session call reports not connected.
func New(cfg *config.Config) *Agent {
	store := whatsapp.NewCredentialStore(cfg.WhatsApp.StoreDir)
	sessions := whatsapp.NewManager(whatsapp.DialWhatsApp, store, cfg.WhatsApp.ManagerConfig())

	a := &Agent{
		config:   cfg,
		sessions: sessions,
		server:   daemon.NewServer(cfg, sessions),
	}

	if cfg.WhatsApp.Enabled {
		a.heartbeat = whatsapp.NewHeartbeat(sessions, cfg.WhatsApp.HeartbeatInterval)
	}

	return a
}

// Sessions exposes the session manager, mainly for tests.
func (a *Agent) Sessions() *whatsapp.Manager {
	return a.sessions
}

// Start brings up the HTTP server and, when messaging is enabled, dials
// the first session. A failed first connection is logged, not fatal; the
// operator can retry through the reconnect endpoint.
func (a *Agent) Start() error {
	if err := a.server.Start(); err != nil {
		return err
	}

	if !a.config.WhatsApp.Enabled {
		logrus.Info("WhatsApp messaging disabled, session manager stays idle")
		return nil
	}

	if a.heartbeat != nil {
		if err := a.heartbeat.Start(); err != nil {
			logrus.WithError(err).Warn("Failed to start session heartbeat")
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := a.sessions.Start(ctx); err != nil {
			logrus.WithError(err).Warn("Initial WhatsApp connection failed")
		}
	}()

	return nil
}

// Stop shuts the components down in reverse order of startup.
func (a *Agent) Stop() {
	if a.heartbeat != nil {
		a.heartbeat.Stop()
	}
	a.sessions.Disconnect()
	a.server.Stop()
}
