package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/agendly/whatsapp-agent/internal/config"
)

// daemonURL returns the base URL of the local daemon. A wildcard bind
// address is reachable via loopback.
func daemonURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

func newDaemonClient(cfg *config.Config) *resty.Client {
	return resty.New().
		SetBaseURL(daemonURL(cfg)).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
}

// callDaemon performs a request against the local daemon and decodes the
// JSON response into out. Non-2xx responses are returned as errors
// carrying the daemon's error text when present.
func callDaemon(cfg *config.Config, method, path string, body any, out any) error {
	client := newDaemonClient(cfg)

	req := client.R()
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body(), &failure) == nil && failure.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode(), failure.Error)
		}
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode(), resp.Body())
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}
