package agent

import (
	"os"

	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"

	"github.com/agendly/whatsapp-agent/internal/config"
)

// ServiceProgram implements the service.Interface
type ServiceProgram struct {
	exit   chan struct{}
	agent  *Agent
	config *config.Config
}

func (p *ServiceProgram) Start(s service.Service) error {
	logrus.Infoln("Agendly WhatsApp agent service starting")
	go p.run()
	return nil
}

func (p *ServiceProgram) run() {
	p.agent = New(p.config)

	if err := p.agent.Start(); err != nil {
		logrus.WithError(err).Errorf("Failed to start web service")
		return
	}

	logrus.Infoln("Agendly WhatsApp agent service is running")

	<-p.exit
	p.agent.Stop()
}

func (p *ServiceProgram) Stop(s service.Service) error {
	logrus.Infoln("Agendly WhatsApp agent service stopping")
	close(p.exit)
	return nil
}

// CreateService wraps the agent in a system service (systemd, launchd,
// Windows service) for install/start/stop management.
func CreateService(cfg *config.Config) (service.Service, error) {
	svcConfig := getServiceConfig()

	prg := &ServiceProgram{
		exit:   make(chan struct{}),
		config: cfg,
	}

	return service.New(prg, svcConfig)
}

// getServiceConfig returns the service configuration
func getServiceConfig() *service.Config {
	exePath, err := os.Executable()

	if err != nil {
		logrus.Fatal(err)
	}

	return &service.Config{
		Name:        "agendly-whatsapp",
		DisplayName: "Agendly WhatsApp Agent",
		Description: "Agendly WhatsApp Agent - booking notifications over a persistent messaging session",
		Executable:  exePath,
		Arguments: []string{
			"serve", // Runs the web server
		},
	}
}
