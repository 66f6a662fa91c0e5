package models

// NotificationConfig carries the salon identity and optional message
// templates submitted alongside a booking notification. Template strings
// use {placeholder} markers; see the notify package for the supported set.
type NotificationConfig struct {
	SalonName    string `json:"salonName"`
	SalonAddress string `json:"salonAddress"`
	SalonPhone   string `json:"salonPhone"`

	ConfirmationTemplate string `json:"confirmationTemplate"`
	ReminderTemplate     string `json:"reminderTemplate"`
	CancellationTemplate string `json:"cancellationTemplate"`
}

// BookingNotificationRequest is the body of the POST /booking/* endpoints.
// Date is the appointment date in YYYY-MM-DD form as submitted by the
// booking flow; Time is the appointment slot (e.g. "14:30").
type BookingNotificationRequest struct {
	ClientName  string              `json:"clientName" binding:"required"`
	Phone       string              `json:"phone" binding:"required"`
	ServiceName string              `json:"serviceName" binding:"required"`
	Date        string              `json:"date" binding:"required"`
	Time        string              `json:"time" binding:"required"`
	TotalPrice  string              `json:"totalPrice"`
	ClientPhone string              `json:"clientPhone"`
	Type        string              `json:"type"`
	Config      *NotificationConfig `json:"config"`
}
