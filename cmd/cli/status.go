package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agendly/whatsapp-agent/internal/models"
)

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the WhatsApp session status",
	Long:  `Query the running daemon for its session status snapshot`,
	Run: func(cmd *cobra.Command, args []string) {
		var status models.SessionStatus
		if err := callDaemon(cfg, http.MethodGet, "/status", nil, &status); err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Error: %v", err)))
			os.Exit(1)
		}

		fmt.Println(titleStyle.Render("WhatsApp Session"))
		fmt.Println(renderStatus(status))
	},
}

func renderStatus(status models.SessionStatus) string {
	var b strings.Builder

	if status.Connected {
		b.WriteString(fmt.Sprintf("State:         %s\n", activeStyle.Render("connected")))
	} else if status.PairingCode != nil {
		b.WriteString(fmt.Sprintf("State:         %s\n", warningStyle.Render("awaiting pairing")))
		b.WriteString(fmt.Sprintf("Pairing code:  %s\n", headerStyle.Render(*status.PairingCode)))
		b.WriteString("Scan the code with WhatsApp on your phone to pair this device.\n")
	} else {
		b.WriteString(fmt.Sprintf("State:         %s\n", errorStyle.Render("disconnected")))
	}

	if status.LastConnectedAt != nil {
		b.WriteString(fmt.Sprintf("Last online:   %s\n", status.LastConnectedAt.Local().Format(time.RFC1123)))
	}
	if status.LastError != nil {
		b.WriteString(fmt.Sprintf("Last error:    %s\n", warningStyle.Render(*status.LastError)))
	}

	return b.String()
}

func init() {
	rootCmd.AddCommand(sessionStatusCmd)
}
