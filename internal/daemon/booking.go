package daemon

import (
	"errors"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/agendly/whatsapp-agent/internal/common"
	"github.com/agendly/whatsapp-agent/internal/models"
	"github.com/agendly/whatsapp-agent/internal/notify"
)

// postBookingConfirmation sends a booking confirmation notification
//
//	@Summary		Send a booking confirmation
//	@Description	Render the confirmation template for a booking and deliver it to the client
//	@Tags			booking
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.BookingNotificationRequest	true	"Booking details"
//	@Success		200		{object}	models.ActionResponse
//	@Failure		400		{object}	map[string]any	"Validation failure"
//	@Router			/booking/confirmation [post]
func (s *Server) postBookingConfirmation(c *gin.Context) {
	s.handleBooking(c, notify.KindConfirmation)
}

// postBookingReminder sends a booking reminder notification
//
//	@Summary	Send a booking reminder
//	@Tags		booking
//	@Accept		json
//	@Produce	json
//	@Param		request	body		models.BookingNotificationRequest	true	"Booking details"
//	@Success	200		{object}	models.ActionResponse
//	@Router		/booking/reminder [post]
func (s *Server) postBookingReminder(c *gin.Context) {
	s.handleBooking(c, notify.KindReminder)
}

// postBookingCancellation sends a booking cancellation notification
//
//	@Summary	Send a booking cancellation
//	@Tags		booking
//	@Accept		json
//	@Produce	json
//	@Param		request	body		models.BookingNotificationRequest	true	"Booking details"
//	@Success	200		{object}	models.ActionResponse
//	@Router		/booking/cancellation [post]
func (s *Server) postBookingCancellation(c *gin.Context) {
	s.handleBooking(c, notify.KindCancellation)
}

// handleBooking validates the request, renders the notification text for
// the given kind and hands the message to the session manager.
func (s *Server) handleBooking(c *gin.Context, kind notify.Kind) {
	var req models.BookingNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, bindingFieldErrors(err))
		return
	}

	recipient, err := common.NormalizePhone(req.Phone, s.Config.WhatsApp.CountryCode)
	if err != nil {
		respondInvalid(c, []string{"phone"})
		return
	}

	cfg := s.resolveNotificationConfig(req.Config)

	body := notify.Render(kind, notify.Fields{
		ClientName:   req.ClientName,
		Date:         req.Date,
		Time:         req.Time,
		ServiceName:  req.ServiceName,
		SalonName:    cfg.SalonName,
		SalonAddress: cfg.SalonAddress,
		SalonPhone:   cfg.SalonPhone,
		TotalPrice:   req.TotalPrice,
		ClientPhone:  req.ClientPhone,
	}, templateFor(kind, cfg))

	LogWithCorrelation(c).WithField("kind", string(kind)).Info("Sending booking notification")

	s.deliver(c, models.OutboundMessage{
		Recipient: recipient,
		Body:      body,
	})
}

// resolveNotificationConfig merges the per-request config over the
// configured salon defaults. Request values win field by field.
func (s *Server) resolveNotificationConfig(override *models.NotificationConfig) models.NotificationConfig {
	defaults := s.Config.Notifications

	cfg := models.NotificationConfig{
		SalonName:            defaults.SalonName,
		SalonAddress:         defaults.SalonAddress,
		SalonPhone:           defaults.SalonPhone,
		ConfirmationTemplate: defaults.Templates.Confirmation,
		ReminderTemplate:     defaults.Templates.Reminder,
		CancellationTemplate: defaults.Templates.Cancellation,
	}

	if override == nil {
		return cfg
	}

	if override.SalonName != "" {
		cfg.SalonName = override.SalonName
	}
	if override.SalonAddress != "" {
		cfg.SalonAddress = override.SalonAddress
	}
	if override.SalonPhone != "" {
		cfg.SalonPhone = override.SalonPhone
	}
	if override.ConfirmationTemplate != "" {
		cfg.ConfirmationTemplate = override.ConfirmationTemplate
	}
	if override.ReminderTemplate != "" {
		cfg.ReminderTemplate = override.ReminderTemplate
	}
	if override.CancellationTemplate != "" {
		cfg.CancellationTemplate = override.CancellationTemplate
	}

	return cfg
}

func templateFor(kind notify.Kind, cfg models.NotificationConfig) string {
	switch kind {
	case notify.KindConfirmation:
		return cfg.ConfirmationTemplate
	case notify.KindReminder:
		return cfg.ReminderTemplate
	case notify.KindCancellation:
		return cfg.CancellationTemplate
	default:
		return ""
	}
}

// bindingFieldErrors extracts the offending field names from a binding
// failure so validation responses can name them. A malformed JSON body
// yields a single "body" entry.
func bindingFieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"body"}
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, jsonFieldName(fe.Field()))
	}
	return fields
}

// jsonFieldName lowercases the leading rune of a struct field name to
// match the request body's JSON key.
func jsonFieldName(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToLower(r[0])
	return strings.TrimSpace(string(r))
}
