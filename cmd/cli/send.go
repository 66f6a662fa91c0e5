package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/agendly/whatsapp-agent/internal/models"
)

var sendCmd = &cobra.Command{
	Use:   "send <phone> <message>",
	Short: "Send a test message",
	Long:  `Send a text message through the running daemon's session`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var result models.ActionResponse
		err := callDaemon(cfg, http.MethodPost, "/send", models.SendMessageRequest{
			To:      args[0],
			Message: args[1],
		}, &result)
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Error: %v", err)))
			os.Exit(1)
		}

		fmt.Println(successStyle.Render("Message delivered"))
		if result.Message != "" {
			fmt.Printf("Message ID: %s\n", result.Message)
		}
	},
}

var reconnectCmd = &cobra.Command{
	Use:   "reconnect",
	Short: "Force a session reconnect",
	Run: func(cmd *cobra.Command, args []string) {
		runSessionAction("/reconnect")
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the session",
	Run: func(cmd *cobra.Command, args []string) {
		runSessionAction("/disconnect")
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear stored credentials",
	Long:  `Log out the paired device; the next connection requires a fresh pairing`,
	Run: func(cmd *cobra.Command, args []string) {
		runSessionAction("/logout")
	},
}

func runSessionAction(path string) {
	var result models.ActionResponse
	if err := callDaemon(cfg, http.MethodPost, path, nil, &result); err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		os.Exit(1)
	}

	fmt.Println(successStyle.Render(result.Message))
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(reconnectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(logoutCmd)
}
