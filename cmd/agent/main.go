package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agendly/whatsapp-agent/internal/agent"
	"github.com/agendly/whatsapp-agent/internal/config"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "whatsapp-agent",
	Short: "Start the WhatsApp agent web service",
	Long: `Start the WhatsApp agent web service.

If no config file is specified, the agent will look for config files in the following locations:
  - ./config.yaml
  - ./config/config.yaml
  - /etc/agendly/config.yaml
  - ~/.config/agendly/config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}

		a := agent.New(cfg)
		if err := a.Start(); err != nil {
			logrus.Fatalf("Failed to start web service: %v", err)
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logrus.Info("Shutting down")
		a.Stop()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file (optional)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("Failed to execute command: %v", err)
	}
}
