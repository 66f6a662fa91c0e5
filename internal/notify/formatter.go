// Package notify renders booking notification messages. Rendering is a
// pure string mapping: no side effects, safe to call from any goroutine.
package notify

import (
	"strings"
	"time"
)

// Kind identifies the booking event a message is rendered for.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindReminder     Kind = "reminder"
	KindCancellation Kind = "cancellation"
)

// Fields carries the substitution values for a notification template.
// Date is expected in YYYY-MM-DD form; the built-in templates render it
// in the long pt-BR form, custom templates receive it verbatim.
type Fields struct {
	ClientName   string
	Date         string
	Time         string
	ServiceName  string
	SalonName    string
	SalonAddress string
	SalonPhone   string
	TotalPrice   string
	ClientPhone  string
}

const defaultConfirmation = `Olá, {clientName}! ✅

Seu agendamento foi confirmado:

📅 {date}
🕐 {time}
💅 {serviceName}
💰 {totalPrice}

{salonName}
📍 {salonAddress}
📞 {salonPhone}`

const defaultReminder = `Olá, {clientName}! ⏰

Lembrete do seu agendamento:

📅 {date}
🕐 {time}
💅 {serviceName}

Até logo!
{salonName}
📍 {salonAddress}
📞 {salonPhone}`

const defaultCancellation = `Olá, {clientName}.

❌ Seu agendamento foi cancelado:

📅 {date}
🕐 {time}
💅 {serviceName}

Para reagendar, entre em contato:
{salonName}
📞 {salonPhone}`

// Render produces the notification text for a booking event. When
// template is empty the built-in template for the kind is used and the
// date is rendered in long form; a caller-supplied template gets literal
// field values. Placeholders without a corresponding field are left
// verbatim rather than treated as an error.
func Render(kind Kind, fields Fields, template string) string {
	if strings.TrimSpace(template) == "" {
		template = defaultTemplate(kind)
		fields.Date = FormatDateLong(fields.Date)
	}
	return substitute(template, fields)
}

func defaultTemplate(kind Kind) string {
	switch kind {
	case KindReminder:
		return defaultReminder
	case KindCancellation:
		return defaultCancellation
	default:
		return defaultConfirmation
	}
}

func substitute(template string, f Fields) string {
	r := strings.NewReplacer(
		"{clientName}", f.ClientName,
		"{date}", f.Date,
		"{time}", f.Time,
		"{serviceName}", f.ServiceName,
		"{salonName}", f.SalonName,
		"{salonAddress}", f.SalonAddress,
		"{salonPhone}", f.SalonPhone,
		"{totalPrice}", f.TotalPrice,
		"{clientPhone}", f.ClientPhone,
	)
	return r.Replace(template)
}

var weekdaysPtBR = [...]string{
	"domingo",
	"segunda-feira",
	"terça-feira",
	"quarta-feira",
	"quinta-feira",
	"sexta-feira",
	"sábado",
}

var monthsPtBR = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// FormatDateLong renders a YYYY-MM-DD date in the long pt-BR form,
// e.g. "segunda-feira, 15 de janeiro de 2024". Values that do not parse
// as a date pass through unchanged.
func FormatDateLong(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}

	return weekdaysPtBR[int(t.Weekday())] + ", " +
		t.Format("2") + " de " + monthsPtBR[int(t.Month())-1] + " de " + t.Format("2006")
}
