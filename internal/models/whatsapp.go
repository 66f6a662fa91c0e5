package models

import "time"

// SessionStatus is an immutable snapshot of the messaging session state.
// The manager replaces the published snapshot atomically on every
// transition; readers never observe a partially updated status.
type SessionStatus struct {
	Connected       bool       `json:"connected"`
	PairingCode     *string    `json:"pairingCode"`
	LastConnectedAt *time.Time `json:"lastConnectedAt"`
	LastError       *string    `json:"lastError"`
}

// SendReceipt is the delivery acknowledgment returned by the transport
// for a successfully submitted message.
type SendReceipt struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboundMessage is a single message handed to the session manager.
// The recipient must already be normalized to include a country code.
type OutboundMessage struct {
	Recipient string
	Body      string
}

// SendMessageRequest is the body of POST /send.
type SendMessageRequest struct {
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required"`
	Type    string `json:"type"`
}

// ActionResponse is the generic response for session control endpoints
// (reconnect, disconnect, logout) and the booking notification endpoints.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
