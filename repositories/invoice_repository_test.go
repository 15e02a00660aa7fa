package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"ecommerce-backend/apperrors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceRepository_Create_DuplicateKey(t *testing.T) {
	db, mock := newMock(t)
	repo := NewInvoiceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO invoices (order_id, pdf_url, created_at) VALUES (?, ?, ?)`)).
		WithArgs(int64(9), "abc.pdf", sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '9' for key 'order_id'"})

	_, err := repo.Create(context.Background(), 9, "abc.pdf")

	var dup *apperrors.DuplicateInvoiceError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, int64(9), dup.OrderID)
}

func TestInvoiceRepository_GetByOrderID_AbsentIsNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewInvoiceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, order_id, pdf_url, created_at FROM invoices WHERE order_id = ?`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "pdf_url", "created_at"}))

	inv, err := repo.GetByOrderID(context.Background(), 3)

	require.NoError(t, err)
	assert.Nil(t, inv)
}

func TestInvoiceRepository_GetByOrderID_Found(t *testing.T) {
	db, mock := newMock(t)
	repo := NewInvoiceRepository(db)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, order_id, pdf_url, created_at FROM invoices WHERE order_id = ?`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "pdf_url", "created_at"}).
			AddRow(1, 3, "f.pdf", created))

	inv, err := repo.GetByOrderID(context.Background(), 3)

	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, "f.pdf", inv.PDFURL)
	assert.Equal(t, created, inv.CreatedAt)
}
