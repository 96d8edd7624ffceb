package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/revaspay/settlement/internal/config"
)

// ErrSenderNotConfigured is returned when SMTP settings are missing
var ErrSenderNotConfigured = errors.New("email sender not configured")

// Sender delivers a rendered message
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends plain-text mail through an SMTP relay
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// NewSMTPSender creates a sender from configuration
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

// Configured reports whether the relay settings are complete
func (s *SMTPSender) Configured() bool {
	return s.host != "" && s.port != "" && s.from != ""
}

// Send sends one message. The context is only checked before dialing;
// net/smtp has no cancellation.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if !s.Configured() {
		return ErrSenderNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	addr := net.JoinHostPort(s.host, s.port)
	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type messageTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[Kind]messageTemplate{
	KindOrderPaid: {
		subject: "Payment received for your order",
		body: template.Must(template.New("order_paid").Parse(
			"We received your payment of {{.amount}} for order {{.order_id}}.\nYour items will be delivered shortly.\n")),
	},
	KindCommissionCredited: {
		subject: "You earned a referral commission",
		body: template.Must(template.New("commission_credited").Parse(
			"A purchase with your code {{.code}} earned you {{.commission}}.\nIt has been added to your pending balance.\n")),
	},
	KindPayoutRequested: {
		subject: "Payout request received",
		body: template.Must(template.New("payout_requested").Parse(
			"We received your payout request for {{.amount}} via {{.method}}.\nWe will let you know once it is processed.\n")),
	},
	KindPayoutApproved: {
		subject: "Payout request approved",
		body: template.Must(template.New("payout_approved").Parse(
			"Your payout request for {{.amount}} was approved and is being processed.\n")),
	},
	KindPayoutRejected: {
		subject: "Payout request rejected",
		body: template.Must(template.New("payout_rejected").Parse(
			"Your payout request for {{.amount}} was rejected.\nReason: {{.reason}}\nYour pending balance is unchanged.\n")),
	},
	KindPayoutCompleted: {
		subject: "Payout sent",
		body: template.Must(template.New("payout_completed").Parse(
			"We sent {{.amount}} via {{.method}}.\nReference: {{.transaction_ref}}\n")),
	},
}

// Render builds the subject and plain-text body for n
func Render(n Notification) (string, string, error) {
	tmpl, ok := templates[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", n.Kind, err)
	}
	return tmpl.subject, body.String(), nil
}
