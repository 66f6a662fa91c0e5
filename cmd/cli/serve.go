package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agendly/whatsapp-agent/internal/agent"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent in the foreground",
	Long:  `Start the WhatsApp agent web service and block until interrupted`,
	Run: func(cmd *cobra.Command, args []string) {
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
	rootCmd.AddCommand(serveCmd)
}
