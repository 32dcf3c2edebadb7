package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AppointmentNotice is the flattened view of a committed appointment that
// notification channels need. The booking service assembles it so this
// package stays free of booking types.
type AppointmentNotice struct {
	AppointmentID string
	ClinicName    string
	StaffName     string
	PatientName   string
	PatientEmail  string
	PatientPhone  string
	SMSOptIn      bool
	ServiceName   string
	StartTime     time.Time
	CancelReason  string
}

// Notifier is the collaborator the booking orchestrator fans out to.
// Implementations never propagate delivery failures into booking outcomes.
type Notifier interface {
	SendConfirmation(ctx context.Context, n AppointmentNotice) error
	SendCancellation(ctx context.Context, n AppointmentNotice) error
	SendReminder(ctx context.Context, n AppointmentNotice) error
}

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// EmailSender delivers one email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// maxSMSRetries matches the delivery policy: three attempts, then fall
// back to email when the patient has an address on file.
const maxSMSRetries = 3

// Service sends confirmations, cancellations and reminders over SMS with
// email fallback. Patients without SMS opt-in get email only.
type Service struct {
	sms   SMSSender
	email EmailSender
	log   zerolog.Logger
}

func NewService(sms SMSSender, email EmailSender, log zerolog.Logger) *Service {
	return &Service{sms: sms, email: email, log: log}
}

func (s *Service) SendConfirmation(ctx context.Context, n AppointmentNotice) error {
	when := n.StartTime.Format("Monday, January 2 at 3:04 PM")
	message := fmt.Sprintf("Your %s appointment with %s at %s has been confirmed for %s.",
		n.ServiceName, n.StaffName, n.ClinicName, when)
	subject := fmt.Sprintf("Appointment confirmed - %s", n.ClinicName)
	return s.deliver(ctx, n, subject, message)
}

func (s *Service) SendCancellation(ctx context.Context, n AppointmentNotice) error {
	when := n.StartTime.Format("Monday, January 2 at 3:04 PM")
	message := fmt.Sprintf("Your %s appointment at %s on %s has been cancelled. Reason: %s",
		n.ServiceName, n.ClinicName, when, cancelReasonOrDefault(n.CancelReason))
	subject := fmt.Sprintf("Appointment cancelled - %s", n.ClinicName)
	return s.deliver(ctx, n, subject, message)
}

func (s *Service) SendReminder(ctx context.Context, n AppointmentNotice) error {
	when := n.StartTime.Format("Monday, January 2 at 3:04 PM")
	message := fmt.Sprintf("Reminder: your %s appointment with %s at %s is on %s.",
		n.ServiceName, n.StaffName, n.ClinicName, when)
	subject := fmt.Sprintf("Appointment reminder - %s", n.ClinicName)
	return s.deliver(ctx, n, subject, message)
}

// deliver tries SMS first for opted-in patients, retrying up to
// maxSMSRetries before falling back to email. Patients without opt-in or
// a phone number go straight to email.
func (s *Service) deliver(ctx context.Context, n AppointmentNotice, subject, message string) error {
	if n.SMSOptIn && n.PatientPhone != "" {
		var lastErr error
		for attempt := 1; attempt <= maxSMSRetries; attempt++ {
			lastErr = s.sms.SendSMS(ctx, n.PatientPhone, message)
			if lastErr == nil {
				return nil
			}
			s.log.Warn().Err(lastErr).
				Str("appointment_id", n.AppointmentID).
				Int("attempt", attempt).
				Msg("sms delivery failed")
		}

		if n.PatientEmail == "" {
			return fmt.Errorf("sms delivery failed after %d attempts: %w", maxSMSRetries, lastErr)
		}
		s.log.Info().
			Str("appointment_id", n.AppointmentID).
			Msg("falling back to email after sms failure")
	}

	if n.PatientEmail == "" {
		return fmt.Errorf("no reachable channel for appointment %s", n.AppointmentID)
	}

	if err := s.email.SendEmail(ctx, n.PatientEmail, subject, message); err != nil {
		return fmt.Errorf("email delivery: %w", err)
	}
	return nil
}

func cancelReasonOrDefault(reason string) string {
	if reason == "" {
		return "No reason provided"
	}
	return reason
}
