package main

import (
	"fmt"
	"os"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/agendly/whatsapp-agent/internal/agent"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Service management commands",
	Long:  `Manage the WhatsApp agent as a system service`,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the agent as a system service",
	Long:  `Install the WhatsApp agent as a system service that will start automatically on boot`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := agent.CreateService(cfg)
		if err != nil {
			fmt.Printf("Failed to create service: %v\n", err)
			os.Exit(1)
		}

		err = s.Install()
		if err != nil {
			fmt.Printf("Failed to install service: %v\n", err)
			printInstallInstructions()
			os.Exit(1)
		}

		fmt.Println("WhatsApp agent service installed successfully")
		fmt.Println("   Use 'agendly service start' to start the service")
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the agent service",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := agent.CreateService(cfg)
		if err != nil {
			fmt.Printf("Failed to create service: %v\n", err)
			os.Exit(1)
		}

		err = s.Start()
		if err != nil {
			fmt.Printf("Failed to start service: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("WhatsApp agent service started successfully")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the agent service",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := agent.CreateService(cfg)
		if err != nil {
			fmt.Printf("Failed to create service: %v\n", err)
			os.Exit(1)
		}

		err = s.Stop()
		if err != nil {
			fmt.Printf("Failed to stop service: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("WhatsApp agent service stopped successfully")
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the agent service status",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := agent.CreateService(cfg)
		if err != nil {
			fmt.Printf("Failed to create service: %v\n", err)
			os.Exit(1)
		}

		status, err := s.Status()
		if err != nil {
			fmt.Printf("Failed to get service status: %v\n", err)
			os.Exit(1)
		}

		var statusText string
		switch status {
		case service.StatusRunning:
			statusText = "🟢 Running"
		case service.StatusStopped:
			statusText = "Stopped"
		case service.StatusUnknown:
			statusText = "🟡 Unknown"
		default:
			statusText = "Unknown state"
		}

		fmt.Printf("WhatsApp Agent Service Status: %s\n", statusText)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Uninstall the agent service",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := agent.CreateService(cfg)
		if err != nil {
			fmt.Printf("Failed to create service: %v\n", err)
			os.Exit(1)
		}

		// Stop the service first if it's running
		err = s.Stop()
		if err != nil {
			fmt.Println("Service was not running")
		}

		err = s.Uninstall()
		if err != nil {
			fmt.Printf("Failed to uninstall service: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("WhatsApp agent service uninstalled successfully")
	},
}

func printInstallInstructions() {
	exePath, _ := os.Executable()
	fmt.Println("\nService installation failed. You may need to run with elevated privileges:")
	fmt.Println("\nLinux:")
	fmt.Printf("   sudo %s service install\n", exePath)
	fmt.Println("\n🪟 Windows:")
	fmt.Printf("   Run as Administrator: %s service install\n", exePath)
	fmt.Println("\nmacOS:")
	fmt.Printf("   sudo %s service install\n", exePath)
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(installCmd)
	serviceCmd.AddCommand(startCmd)
	serviceCmd.AddCommand(stopCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
	serviceCmd.AddCommand(removeCmd)
}
