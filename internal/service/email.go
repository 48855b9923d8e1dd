package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// EmailService sends report outcome notifications. In development emails are
// logged instead of sent.
type EmailService struct {
	client    *resend.Client
	fromEmail string
	appURL    string
	appName   string
	isDev     bool
}

func NewEmailService(apiKey, fromEmail, appURL, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		appURL:    appURL,
		appName:   appName,
		isDev:     isDev,
	}
}

func (s *EmailService) SendReportReady(email, clientName, reportName, reportLink string) error {
	subject := fmt.Sprintf("Your report for %s is ready", clientName)
	body := fmt.Sprintf("Hi,\n\nThe report %q for %s has finished generating.\n\nView it here: %s\n\n%s",
		reportName, clientName, reportLink, s.appName)

	return s.send("report_ready", email, subject, body)
}

func (s *EmailService) SendReportFailed(email, clientName, reportName, errorMessage string) error {
	subject := fmt.Sprintf("Report generation failed for %s", clientName)
	body := fmt.Sprintf("Hi,\n\nThe report %q for %s could not be generated.\n\nReason: %s\n\nYou can retry from %s/reports.\n\n%s",
		reportName, clientName, errorMessage, s.appURL, s.appName)

	return s.send("report_failed", email, subject, body)
}

func (s *EmailService) send(kind, to, subject, body string) error {
	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", to, "subject", subject)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(context.Background(), params)
	if err == nil {
		slog.Info("email sent", "type", kind, "to", to)
	}
	return err
}
