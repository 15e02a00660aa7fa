package notifications

import (
	"context"
	"log/slog"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/logging"
	"ecommerce-backend/middlewares"
	"ecommerce-backend/models"
)

const (
	KindAdminOrderReceived     = "admin_order_received"
	KindCustomerOrderConfirmed = "customer_order_confirmed"
	KindAdminDirectory         = "admin_directory"
)

type Notifier interface {
	NotifyAdminOrderReceived(ctx context.Context, email string, orderID int64, customerName, invoiceURL string) error
	NotifyCustomerOrderConfirmed(ctx context.Context, email, name string, orderID int64, invoiceURL string) error
}

type AdminDirectory interface {
	ListAdmins(ctx context.Context) ([]models.AdminUser, error)
}

type DeliveryAttempt struct {
	Kind      string
	Recipient string
	OrderID   int64
	Err       error
}

type Report struct {
	Attempts []DeliveryAttempt
}

func (r Report) Failures() []DeliveryAttempt {
	var out []DeliveryAttempt
	for _, a := range r.Attempts {
		if a.Err != nil {
			out = append(out, a)
		}
	}
	return out
}

// FanOut notifies every admin and then the customer about a new order.
// Delivery is best effort: failures are logged, counted and reported, never returned.
type FanOut struct {
	admins   AdminDirectory
	notifier Notifier
	log      *slog.Logger
}

func NewFanOut(admins AdminDirectory, notifier Notifier, logger *slog.Logger) *FanOut {
	return &FanOut{admins: admins, notifier: notifier, log: logging.Module(logger, "Notifications")}
}

func (f *FanOut) Notify(ctx context.Context, order *models.Order, invoiceURL string) Report {
	var report Report
	customerName := order.Name + " " + order.Surname

	admins, err := f.admins.ListAdmins(ctx)
	if err != nil {
		f.record(&report, KindAdminDirectory, "", order.ID, err)
	}
	f.log.Info("sending notifications to admins", "fn", "notify", "order_id", order.ID, "admins", len(admins))

	for _, admin := range admins {
		err := f.notifier.NotifyAdminOrderReceived(ctx, admin.Email, order.ID, customerName, invoiceURL)
		f.record(&report, KindAdminOrderReceived, admin.Email, order.ID, err)
	}

	err = f.notifier.NotifyCustomerOrderConfirmed(ctx, order.Email, order.Name, order.ID, invoiceURL)
	f.record(&report, KindCustomerOrderConfirmed, order.Email, order.ID, err)

	return report
}

func (f *FanOut) record(report *Report, kind, recipient string, orderID int64, err error) {
	attempt := DeliveryAttempt{Kind: kind, Recipient: recipient, OrderID: orderID}
	if err != nil {
		attempt.Err = &apperrors.DeliveryError{Kind: kind, Recipient: recipient, OrderID: orderID, Err: err}
		f.log.Error("notification failed", "fn", "notify", "kind", kind, "email", recipient,
			"order_id", orderID, "error", err)
	}
	middlewares.RecordNotification(kind, err == nil)
	report.Attempts = append(report.Attempts, attempt)
}
