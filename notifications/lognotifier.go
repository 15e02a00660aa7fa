package notifications

import (
	"context"
	"log/slog"

	"ecommerce-backend/logging"
)

// LogNotifier stands in for the mailer when no SMTP relay is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logging.Module(logger, "EmailService")}
}

func (n *LogNotifier) NotifyAdminOrderReceived(_ context.Context, email string, orderID int64, customerName, invoiceURL string) error {
	n.log.Info("mail disabled, admin notification logged", "email", email, "order_id", orderID,
		"customer", customerName, "invoice_url", invoiceURL)
	return nil
}

func (n *LogNotifier) NotifyCustomerOrderConfirmed(_ context.Context, email, name string, orderID int64, invoiceURL string) error {
	n.log.Info("mail disabled, customer confirmation logged", "email", email, "order_id", orderID,
		"name", name, "invoice_url", invoiceURL)
	return nil
}
