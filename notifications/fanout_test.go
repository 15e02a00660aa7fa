package notifications

import (
	"context"
	"errors"
	"testing"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/logging"
	"ecommerce-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdmins struct {
	admins []models.AdminUser
	err    error
}

func (s stubAdmins) ListAdmins(context.Context) ([]models.AdminUser, error) { return s.admins, s.err }

type call struct {
	kind, email, invoiceURL string
	orderID                 int64
}

type recordingNotifier struct {
	calls   []call
	failFor map[string]bool
}

func (r *recordingNotifier) NotifyAdminOrderReceived(_ context.Context, email string, orderID int64, _, invoiceURL string) error {
	r.calls = append(r.calls, call{KindAdminOrderReceived, email, invoiceURL, orderID})
	if r.failFor[email] {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (r *recordingNotifier) NotifyCustomerOrderConfirmed(_ context.Context, email, _ string, orderID int64, invoiceURL string) error {
	r.calls = append(r.calls, call{KindCustomerOrderConfirmed, email, invoiceURL, orderID})
	if r.failFor[email] {
		return errors.New("mailbox full")
	}
	return nil
}

func order() *models.Order {
	return &models.Order{ID: 3, CustomerInfo: models.CustomerInfo{Name: "Ada", Surname: "L", Email: "ada@example.com"}}
}

func TestFanOut_NotifiesAdminsThenCustomer(t *testing.T) {
	n := &recordingNotifier{}
	admins := stubAdmins{admins: []models.AdminUser{{Email: "a1@shop.test"}, {Email: "a2@shop.test"}}}

	report := NewFanOut(admins, n, logging.Discard()).Notify(context.Background(), order(), "/uploads/x.pdf")

	require.Len(t, n.calls, 3)
	assert.Equal(t, call{KindAdminOrderReceived, "a1@shop.test", "/uploads/x.pdf", 3}, n.calls[0])
	assert.Equal(t, call{KindAdminOrderReceived, "a2@shop.test", "/uploads/x.pdf", 3}, n.calls[1])
	assert.Equal(t, call{KindCustomerOrderConfirmed, "ada@example.com", "/uploads/x.pdf", 3}, n.calls[2])
	assert.Len(t, report.Attempts, 3)
	assert.Empty(t, report.Failures())
}

func TestFanOut_ContinuesAfterFailures(t *testing.T) {
	n := &recordingNotifier{failFor: map[string]bool{"a1@shop.test": true, "ada@example.com": true}}
	admins := stubAdmins{admins: []models.AdminUser{{Email: "a1@shop.test"}, {Email: "a2@shop.test"}}}

	report := NewFanOut(admins, n, logging.Discard()).Notify(context.Background(), order(), "")

	assert.Len(t, n.calls, 3)
	failures := report.Failures()
	require.Len(t, failures, 2)
	var delivery *apperrors.DeliveryError
	require.ErrorAs(t, failures[0].Err, &delivery)
	assert.Equal(t, "a1@shop.test", delivery.Recipient)
	assert.Equal(t, KindCustomerOrderConfirmed, failures[1].Kind)
}

func TestFanOut_AdminLookupFailureStillNotifiesCustomer(t *testing.T) {
	n := &recordingNotifier{}

	report := NewFanOut(stubAdmins{err: errors.New("db down")}, n, logging.Discard()).
		Notify(context.Background(), order(), "")

	require.Len(t, n.calls, 1)
	assert.Equal(t, KindCustomerOrderConfirmed, n.calls[0].kind)
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, KindAdminDirectory, report.Failures()[0].Kind)
}
