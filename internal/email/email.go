// Package email sends moderation notifications over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"chandabaz/internal/config"
)

const dialTimeout = 10 * time.Second

// Service handles email operations
type Service struct {
	config *config.EmailConfig
}

// NewService creates a new email service
func NewService(cfg *config.EmailConfig) *Service {
	return &Service{
		config: cfg,
	}
}

// Enabled reports whether an SMTP host is configured
func (s *Service) Enabled() bool {
	return s != nil && s.config != nil && s.config.SMTPHost != ""
}

// Decision is the data rendered into a moderation notification
type Decision struct {
	Name   string
	Title  string
	Reason string
	URL    string
}

var approvedTemplate = template.Must(template.New("approved").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Report approved</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #27ae60;">Your report has been published</h2>
        <p>Hello {{.Name}},</p>
        <p>Your report <strong>{{.Title}}</strong> was reviewed and is now publicly visible.</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.URL}}" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">View report</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>
`))

var rejectedTemplate = template.Must(template.New("rejected").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Report not published</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #e74c3c;">Your report was not published</h2>
        <p>Hello {{.Name}},</p>
        <p>Your report <strong>{{.Title}}</strong> was reviewed and could not be published.</p>
        <div style="background-color: #fff3cd; border-left: 4px solid #ffc107; padding: 15px; margin: 20px 0;">
            <p style="margin: 5px 0;"><strong>Reason:</strong> {{.Reason}}</p>
        </div>
        <p>You can update the report and submit it again for review.</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.URL}}" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open my reports</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>
`))

// SendPostApproved tells the author that their report is public
func (s *Service) SendPostApproved(ctx context.Context, to, name, title, postID string) error {
	body, err := render(approvedTemplate, Decision{
		Name:  name,
		Title: title,
		URL:   fmt.Sprintf("%s/posts/%s", s.config.FrontendURL, postID),
	})
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, to, "Your report has been published", body)
}

// SendPostRejected tells the author why their report was rejected
func (s *Service) SendPostRejected(ctx context.Context, to, name, title, reason string) error {
	body, err := render(rejectedTemplate, Decision{
		Name:   name,
		Title:  title,
		Reason: reason,
		URL:    s.config.FrontendURL + "/my-posts",
	})
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, to, "Your report was not published", body)
}

func render(t *template.Template, d Decision) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// buildMessage assembles headers and body. Header values are stripped of line breaks.
func buildMessage(from, to, subject, body string) []byte {
	headers := map[string]string{
		"From":         from,
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clean := strings.NewReplacer("\r", "", "\n", "")
	var message bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&message, "%s: %s\r\n", k, clean.Replace(headers[k]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.Bytes()
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	if !s.Enabled() {
		slog.Debug("Email disabled, skipping", "to", to, "subject", subject)
		return nil
	}

	message := buildMessage(s.config.SMTPFrom, to, subject, body)

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	slog.Debug("Attempting to connect to SMTP server", "address", addr)

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		slog.Error("Failed to connect to SMTP server", "address", addr, "error", err)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil {
			slog.Debug("Failed to close SMTP connection", "error", err)
		}
	}(conn)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		slog.Error("Failed to create SMTP client", "error", err)
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	// Development relays such as Mailpit accept mail without authentication
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		_ = client.Auth(auth)
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	if _, err := wc.Write(message); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := closeData(wc); err != nil {
		return err
	}

	slog.Info("Email sent successfully", "to", to, "subject", subject)
	return client.Quit()
}

func closeData(wc io.WriteCloser) error {
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return nil
}
