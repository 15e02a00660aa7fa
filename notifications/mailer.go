package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"ecommerce-backend/config"
	"ecommerce-backend/logging"

	"github.com/wneessen/go-mail"
)

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer delivers order notifications over SMTP.
type Mailer struct {
	client     sender
	from       string
	logoURL    string
	backendURL string
	log        *slog.Logger
}

func NewMailer(cfg *config.Config, logger *slog.Logger) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUser),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return newMailer(client, cfg, logger), nil
}

func newMailer(client sender, cfg *config.Config, logger *slog.Logger) *Mailer {
	return &Mailer{
		client:     client,
		from:       cfg.MailFrom,
		logoURL:    cfg.LogoURL,
		backendURL: cfg.BackendURL,
		log:        logging.Module(logger, "EmailService"),
	}
}

func (m *Mailer) NotifyAdminOrderReceived(ctx context.Context, email string, orderID int64, customerName, invoiceURL string) error {
	body, err := render(adminTmpl, templateData{
		LogoURL:     m.logoURL,
		Name:        customerName,
		OrderID:     orderID,
		InvoiceLink: m.link(invoiceURL),
	})
	if err != nil {
		return err
	}
	if err := m.send(ctx, email, fmt.Sprintf("New Order Received - #%d", orderID), body); err != nil {
		return err
	}
	m.log.Info("order notification email sent to admin", "email", email, "order_id", orderID)
	return nil
}

func (m *Mailer) NotifyCustomerOrderConfirmed(ctx context.Context, email, name string, orderID int64, invoiceURL string) error {
	body, err := render(customerTmpl, templateData{
		LogoURL:     m.logoURL,
		Name:        name,
		OrderID:     orderID,
		InvoiceLink: m.link(invoiceURL),
	})
	if err != nil {
		return err
	}
	if err := m.send(ctx, email, fmt.Sprintf("Order Confirmation - #%d", orderID), body); err != nil {
		return err
	}
	m.log.Info("order confirmation email sent", "email", email, "order_id", orderID)
	return nil
}

func (m *Mailer) send(ctx context.Context, to, subject, html string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to address %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)
	return m.client.DialAndSendWithContext(ctx, msg)
}

func (m *Mailer) link(invoiceURL string) string {
	if invoiceURL == "" {
		return ""
	}
	return m.backendURL + invoiceURL
}
