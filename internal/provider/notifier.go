package provider

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Notifier sends a formatted alert to a tenant contact. Send reports success;
// it never panics into the caller and a false return is the only failure
// signal.
type Notifier interface {
	Send(to, subject, body string) bool
}

// SMTPNotifier delivers alerts over plain SMTP.
type SMTPNotifier struct {
	host   string
	port   int
	user   string
	pass   string
	from   string
	logger *slog.Logger
}

// NewSMTPNotifier creates an SMTP-backed notifier.
func NewSMTPNotifier(host string, port int, user, pass, from string, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, user: user, pass: pass, from: from, logger: logger}
}

// Send delivers one alert mail. Failures are logged and reported as false.
func (n *SMTPNotifier) Send(to, subject, body string) bool {
	var msg strings.Builder
	msg.WriteString("From: " + n.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n" + body)

	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	var auth smtp.Auth
	if n.user != "" {
		auth = smtp.PlainAuth("", n.user, n.pass, n.host)
	}

	if err := smtp.SendMail(addr, auth, n.from, []string{to}, []byte(msg.String())); err != nil {
		n.logger.Error("alert mail failed", "to", to, "error", err)
		return false
	}
	return true
}
