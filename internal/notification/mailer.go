package notification

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/gomail.v2"

	"ms-bookstore/internal/config"
	"ms-bookstore/internal/models"
)

// Mailer sends the order invoice over SMTP with the PDF attached.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg config.EmailConfig) (*Mailer, error) {
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port %q: %w", cfg.SMTPPort, err)
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.FromAddress,
	}, nil
}

// SendInvoice mails the invoice PDF to the customer.
func (m *Mailer) SendInvoice(to string, order *models.Order, invoicePDF []byte) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Your order %s", order.OrderID))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Thank you for your order!\n\nOrder ID: %s\nTotal: %.2f\nStatus: %s\n\nYour invoice is attached.",
		order.OrderID, order.TotalPrice, order.Status,
	))
	msg.Attach(
		fmt.Sprintf("invoice-%s.pdf", order.OrderID),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(invoicePDF))
			return err
		}),
	)
	return m.dialer.DialAndSend(msg)
}
