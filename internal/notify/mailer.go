// Package notify sends outbound email. Delivery is best-effort by design:
// callers log failures and move on, nothing is retried or surfaced.
package notify

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
)

// Mailer sends mail through an implicit-TLS SMTP relay (port 465 style).
type Mailer struct {
	Host string
	Port string
}

func NewMailer(host, port string) *Mailer {
	return &Mailer{Host: host, Port: port}
}

// Send delivers one message using the given sender credentials. Missing
// credentials are a silent no-op: alerts are optional until the user
// configures a sender in settings.
func (m *Mailer) Send(fromEmail, password, to, subject, body string) error {
	if fromEmail == "" || password == "" {
		return nil
	}

	addr := net.JoinHostPort(m.Host, m.Port)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.Host})
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", fromEmail, password, m.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(fromEmail); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", fromEmail, to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return client.Quit()
}
