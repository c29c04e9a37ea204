// Package email notifies the site owner over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"portfolio/api/internal/store"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart email with a plain text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	return s.sendMessage(to, "", subject, textBody, htmlBody)
}

func (s *Service) sendMessage(to []string, replyTo, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return errors.New("email not configured")
	}
	msg, err := s.buildMessage(to, replyTo, subject, textBody, htmlBody)
	if err != nil {
		return err
	}
	return s.send(s.server, s.auth, s.config.From, to, msg)
}

func (s *Service) buildMessage(to []string, replyTo, subject, textBody, htmlBody string) ([]byte, error) {
	from := mail.Address{Name: s.config.FromName, Address: s.config.From}

	var msg bytes.Buffer
	parts := multipart.NewWriter(&msg)
	header := []string{
		"To: " + strings.Join(to, ", "),
		"From: " + from.String(),
		"Subject: " + mime.QEncoding.Encode("utf-8", strings.ReplaceAll(subject, "\n", " ")),
		"Date: " + time.Now().UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="` + parts.Boundary() + `"`,
	}
	if replyTo != "" {
		header = append(header, "Reply-To: "+replyTo)
	}
	msg.WriteString(strings.Join(header, "\r\n") + "\r\n\r\n")

	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", textBody},
		{"text/html; charset=UTF-8", htmlBody},
	} {
		w, err := parts.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, fmt.Errorf("build email: %w", err)
		}
		if _, err := io.WriteString(w, part.body+"\r\n"); err != nil {
			return nil, fmt.Errorf("build email: %w", err)
		}
	}
	if err := parts.Close(); err != nil {
		return nil, fmt.Errorf("build email: %w", err)
	}
	return msg.Bytes(), nil
}

type NewMessageData struct {
	SiteName string
	From     string
	Message  string
	Received string
	InboxURL string
}

// SendNewMessageNotice tells the owner a visitor used the contact form.
func (s *Service) SendNewMessageNotice(to string, message store.Message, inboxURL string) error {
	data := NewMessageData{
		SiteName: "Portfolio",
		From:     message.Email,
		Message:  message.Message,
		Received: message.CreatedAt.UTC().Format(time.RFC1123),
		InboxURL: inboxURL,
	}
	if data.From == "" {
		data.From = "an anonymous visitor"
	}

	var html bytes.Buffer
	if err := newMessageTemplate.Execute(&html, data); err != nil {
		return fmt.Errorf("render new message template: %w", err)
	}
	text := fmt.Sprintf("New message from %s (%s):\n\n%s\n\nInbox: %s", data.From, data.Received, data.Message, inboxURL)
	return s.sendMessage([]string{to}, message.Email, "New message on your portfolio", text, html.String())
}

var newMessageTemplate = template.Must(template.New("new-message").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New message on {{.SiteName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .message { background: #f6f8fa; padding: 16px; border-radius: 4px; white-space: pre-wrap; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.SiteName}}</h1>
    </div>

    <p>You received a message from <strong>{{.From}}</strong> on {{.Received}}.</p>

    <div class="message">{{.Message}}</div>

    <p>
        <a href="{{.InboxURL}}" class="button">Open inbox</a>
    </p>

    <div class="footer">
        <p>Sent by the contact form of your site.</p>
    </div>
</body>
</html>`))
