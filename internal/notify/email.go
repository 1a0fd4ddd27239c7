package notify

import (
	"fmt"
	"net/smtp"
	"os"

	"box-office/internal/logger"
)

// EmailNotifier sends refund lifecycle emails over SMTP. Credentials come
// from SMTP_FROM / SMTP_PASSWORD / SMTP_HOST / SMTP_PORT.
type EmailNotifier struct {
	from     string
	password string
	host     string
	port     string
	log      *logger.Logger
}

func NewEmailNotifier(log *logger.Logger) *EmailNotifier {
	n := &EmailNotifier{
		from:     os.Getenv("SMTP_FROM"),
		password: os.Getenv("SMTP_PASSWORD"),
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		log:      log,
	}
	if n.host == "" {
		n.host = "smtp.gmail.com"
	}
	if n.port == "" {
		n.port = "587"
	}
	return n
}

func (n *EmailNotifier) NotifyRefundInitiated(adminEmails []string, payableName string, transactions int) {
	subject := "Refund initiated: " + payableName
	body := fmt.Sprintf(
		`<div style="font-family: Arial, sans-serif; max-width: 500px; margin: auto; padding: 20px;">
			<h2>Refund initiated</h2>
			<p>A refund has been started for <strong>%s</strong>.</p>
			<p>%d payment transaction(s) are being refunded.</p>
		</div>`, payableName, transactions)

	for _, email := range adminEmails {
		n.send(email, subject, body)
	}
}

func (n *EmailNotifier) NotifyRefunded(email, payableName string, amount int64) {
	subject := "Your refund for " + payableName
	body := fmt.Sprintf(
		`<div style="font-family: Arial, sans-serif; max-width: 500px; margin: auto; padding: 20px;">
			<h2>Refund complete</h2>
			<p>Your booking <strong>%s</strong> has been refunded.</p>
			<p>Amount refunded: <strong>&pound;%.2f</strong></p>
		</div>`, payableName, float64(amount)/100)

	n.send(email, subject, body)
}

func (n *EmailNotifier) send(to, subject, body string) {
	if n.from == "" || n.password == "" {
		n.log.Warn("NOTIFY", "SMTP credentials not configured, skipping email to "+to)
		return
	}

	message := []byte(fmt.Sprintf(
		"Subject: %s\r\n"+
			"MIME-version: 1.0;\r\n"+
			"Content-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s", subject, body))

	auth := smtp.PlainAuth("", n.from, n.password, n.host)
	if err := smtp.SendMail(n.host+":"+n.port, auth, n.from, []string{to}, message); err != nil {
		n.log.Error("NOTIFY", fmt.Sprintf("Failed to send email to %s: %v", to, err))
		return
	}

	n.log.LogProcess("EMAIL_SENT", fmt.Sprintf("Notification sent to %s: %s", to, subject))
}
