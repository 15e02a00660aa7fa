package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newOrderRepo(t *testing.T) (*OrderRepository, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func TestOrderRepository_CreateOrder_StartsUnpaidUndelivered(t *testing.T) {
	repo, mock := newOrderRepo(t)
	header := &models.Order{
		CustomerInfo: models.CustomerInfo{Name: "Ada", Surname: "L", Email: "ada@example.com",
			Country: "UK", City: "London", PostalCode: "N1", Address: "1 St"},
		TotalPrice: decimal.RequireFromString("20.00"),
		IsPaid:     true,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO orders`)).
		WithArgs(nil, "Ada", "L", "ada@example.com", "UK", "London", "N1", "1 St",
			header.TotalPrice, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(11, 1))

	order, err := repo.CreateOrder(context.Background(), header)
	require.NoError(t, err)

	assert.Equal(t, int64(11), order.ID)
	assert.False(t, order.IsPaid)
	assert.False(t, order.IsDelivered)
	assert.Equal(t, fixedNow, order.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateLines_SingleBulkInsert(t *testing.T) {
	repo, mock := newOrderRepo(t)
	lines := []models.OrderLine{
		{ProductID: 1, Quantity: 2, Price: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(20)},
		{ProductID: 2, Quantity: 1, Price: decimal.NewFromInt(5), TotalPrice: decimal.NewFromInt(5)},
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_details (order_id, product_id, quantity, price, total_price) VALUES (?, ?, ?, ?, ?), (?, ?, ?, ?, ?)`)).
		WithArgs(int64(4), int64(1), 2, lines[0].Price, lines[0].TotalPrice, int64(4), int64(2), 1, lines[1].Price, lines[1].TotalPrice).
		WillReturnResult(sqlmock.NewResult(1, 2))

	require.NoError(t, repo.CreateLines(context.Background(), 4, lines))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetOrderByID_NotFound(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders o`)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	_, err := repo.GetOrderByID(context.Background(), 99)

	var notFound *apperrors.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

var orderRowColumns = []string{
	"id", "user_id", "name", "surname", "email", "country", "city", "postal_code", "address",
	"total_price", "is_paid", "is_delivered", "created_at", "updated_at",
	"invoice_id", "pdf_url", "invoice_created_at",
}

func TestOrderRepository_GetOrderByID_JoinsLinesAndInvoice(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM orders o`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(orderRowColumns).AddRow(
			5, nil, "Ada", "L", "ada@example.com", "UK", "London", "N1", "1 St",
			"20.00", false, false, fixedNow, fixedNow,
			1, "inv.pdf", fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM order_details d`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "name", "quantity", "price", "total_price"}).
			AddRow(1, 5, 1, "Lamp", 2, "10.00", "20.00"))

	order, err := repo.GetOrderByID(context.Background(), 5)
	require.NoError(t, err)

	require.NotNil(t, order.Invoice)
	assert.Equal(t, "inv.pdf", order.Invoice.PDFURL)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "Lamp", order.Lines[0].ProductName)
	assert.Nil(t, order.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateOrder_RequiresFields(t *testing.T) {
	repo, _ := newOrderRepo(t)

	_, err := repo.UpdateOrder(context.Background(), 1, models.OrderUpdate{})

	var validation *apperrors.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestOrderRepository_DeleteOrder_NotFound(t *testing.T) {
	repo, mock := newOrderRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM orders WHERE id = ?`)).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteOrder(context.Background(), 8)

	var notFound *apperrors.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
