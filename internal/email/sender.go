package email

import (
	"bytes"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"text/template"
)

type Sender interface {
	Send(to, subject, htmlBody string) error
}

type SMTPSender struct {
	host string
	port string
	from string
	auth smtp.Auth // nil for local dev (MailHog)
}

func NewSMTPSender() *SMTPSender {
	return &SMTPSender{
		host: getenv("SMTP_HOST", "localhost"),
		port: getenv("SMTP_PORT", "1025"),
		from: getenv("SMTP_FROM", "no-reply@example.local"),
	}
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	msg := buildRFC822(s.from, to, subject, htmlBody)
	return smtp.SendMail(addr, s.auth, s.from, []string{to}, msg)
}

func buildRFC822(from, to, subject, html string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&buf, "\r\n%s\r\n", html)
	return buf.Bytes()
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

var approvedTpl = template.Must(template.New("paymentApproved").Parse(`
<h2>Payment received</h2>
<p>Order ID: <b>{{.OrderID}}</b></p>
<p>Amount: <b>{{printf "%s %.2f" .Currency .Total}}</b></p>
<p>Transaction: {{.TransactionID}}</p>
`))

var failedTpl = template.Must(template.New("paymentFailed").Parse(`
<h2>Payment unsuccessful</h2>
<p>Order ID: <b>{{.OrderID}}</b></p>
<p>{{.Reason}}</p>
<p>You can retry the payment from your order page.</p>
`))

func RenderPaymentApprovedEmail(orderID, currency string, total float64, transactionID string) string {
	var buf bytes.Buffer
	_ = approvedTpl.Execute(&buf, map[string]any{
		"OrderID":       orderID,
		"Currency":      currency,
		"Total":         total,
		"TransactionID": transactionID,
	})
	return buf.String()
}

func RenderPaymentFailedEmail(orderID, reason string) string {
	if reason == "" {
		reason = "The payment was not completed."
	}
	var buf bytes.Buffer
	_ = failedTpl.Execute(&buf, map[string]any{
		"OrderID": orderID,
		"Reason":  reason,
	})
	return buf.String()
}

// Fallback logger sender (useful for dev without SMTP)
type LogSender struct{}

func (LogSender) Send(to, subject, htmlBody string) error {
	log.Printf("[Email] to=%s subject=%q body=%q", to, subject, htmlBody)
	return nil
}
