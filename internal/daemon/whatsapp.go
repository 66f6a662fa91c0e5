package daemon

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/agendly/whatsapp-agent/internal/common"
	"github.com/agendly/whatsapp-agent/internal/models"
	"github.com/agendly/whatsapp-agent/internal/whatsapp"
)

// getStatus handles the session status endpoint
//
//	@Summary		Session status
//	@Description	Get the current messaging session status snapshot
//	@Tags			whatsapp
//	@Produce		json
//	@Success		200	{object}	models.SessionStatus	"Session status"
//	@Router			/status [get]
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Sessions.Status())
}

// getTest handles the connectivity test endpoint
//
//	@Summary		Connectivity test
//	@Description	Get the session status plus a liveness stamp for the agent itself
//	@Tags			whatsapp
//	@Produce		json
//	@Success		200	{object}	map[string]any	"Test result"
//	@Router			/test [get]
func (s *Server) getTest(c *gin.Context) {
	status := s.Sessions.Status()

	c.JSON(http.StatusOK, gin.H{
		"connected":       status.Connected,
		"pairingCode":     status.PairingCode,
		"lastConnectedAt": status.LastConnectedAt,
		"lastError":       status.LastError,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"serviceRunning":  true,
	})
}

// postSend handles direct message submission
//
//	@Summary		Send a message
//	@Description	Send a text message to a phone number over the active session
//	@Tags			whatsapp
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.SendMessageRequest	true	"Message to send"
//	@Success		200		{object}	models.ActionResponse		"Delivery result"
//	@Failure		400		{object}	map[string]any				"Validation failure"
//	@Router			/send [post]
func (s *Server) postSend(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, bindingFieldErrors(err))
		return
	}

	if req.Type != "" && req.Type != "text" {
		respondInvalid(c, []string{"type"})
		return
	}

	recipient, err := common.NormalizePhone(req.To, s.Config.WhatsApp.CountryCode)
	if err != nil {
		respondInvalid(c, []string{"to"})
		return
	}

	s.deliver(c, models.OutboundMessage{
		Recipient: recipient,
		Body:      req.Message,
	})
}

// postReconnect tears down the current session and starts a fresh attempt
//
//	@Summary		Force a reconnect
//	@Tags			whatsapp
//	@Produce		json
//	@Success		200	{object}	models.ActionResponse
//	@Router			/reconnect [post]
func (s *Server) postReconnect(c *gin.Context) {
	LogWithCorrelation(c).Info("Reconnect requested")
	s.Sessions.Reconnect()

	c.JSON(http.StatusOK, models.ActionResponse{
		Success: true,
		Message: "Reconnecting",
	})
}

// postDisconnect closes the session without touching stored credentials
//
//	@Summary		Disconnect the session
//	@Tags			whatsapp
//	@Produce		json
//	@Success		200	{object}	models.ActionResponse
//	@Router			/disconnect [post]
func (s *Server) postDisconnect(c *gin.Context) {
	LogWithCorrelation(c).Info("Disconnect requested")
	s.Sessions.Disconnect()

	c.JSON(http.StatusOK, models.ActionResponse{
		Success: true,
		Message: "Disconnected",
	})
}

// postLogout closes the session and clears stored credentials so the
// next start requires a fresh pairing
//
//	@Summary		Log out the paired device
//	@Tags			whatsapp
//	@Produce		json
//	@Success		200	{object}	models.ActionResponse
//	@Failure		500	{object}	models.ActionResponse
//	@Router			/logout [post]
func (s *Server) postLogout(c *gin.Context) {
	LogWithCorrelation(c).Info("Logout requested")

	if err := s.Sessions.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ActionResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.ActionResponse{
		Success: true,
		Message: "Logged out; next start requires pairing",
	})
}

// deliver submits an already validated message to the session manager
// and writes the outcome.
func (s *Server) deliver(c *gin.Context, msg models.OutboundMessage) {
	log := LogWithCorrelation(c).WithField("recipient", msg.Recipient)

	receipt, err := s.Sessions.Send(c.Request.Context(), msg)
	if err != nil {
		log.WithError(err).Warn("Message delivery failed")
		c.JSON(sendFailureCode(err), models.ActionResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	atomic.AddInt64(&s.MessagesSent, 1)
	log.WithField("messageId", receipt.MessageID).Info("Message delivered")

	c.JSON(http.StatusOK, models.ActionResponse{
		Success: true,
		Message: receipt.MessageID,
	})
}

// sendFailureCode maps a send failure to an HTTP status. Delivery
// failures are service-level, not client errors, except for a bad
// recipient.
func sendFailureCode(err error) int {
	if errors.Is(err, whatsapp.ErrNotConnected) {
		return http.StatusConflict
	}
	if errors.Is(err, whatsapp.ErrSendTimeout) {
		return http.StatusGatewayTimeout
	}

	switch whatsapp.SendErrorKindOf(err) {
	case whatsapp.InvalidRecipient:
		return http.StatusBadRequest
	case whatsapp.SendRateLimited:
		return http.StatusTooManyRequests
	case whatsapp.SendUnauthorized:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// respondInvalid writes the structured validation failure listing the
// offending fields. Validation failures never reach the session manager.
func respondInvalid(c *gin.Context, fields []string) {
	logrus.WithFields(logrus.Fields{
		"fields": fields,
		"path":   c.Request.URL.Path,
	}).Debug("Request validation failed")

	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "validation failed",
		"fields":  fields,
	})
}
