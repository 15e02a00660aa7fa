package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/database"
	"ecommerce-backend/models"
)

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// GetByOrderID returns nil without error when the order has no invoice.
func (r *InvoiceRepository) GetByOrderID(ctx context.Context, orderID int64) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.QueryRowContext(ctx,
		`SELECT id, order_id, pdf_url, created_at FROM invoices WHERE order_id = ?`, orderID,
	).Scan(&inv.ID, &inv.OrderID, &inv.PDFURL, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query invoice for order %d: %w", orderID, err)
	}
	return &inv, nil
}

func (r *InvoiceRepository) Create(ctx context.Context, orderID int64, pdfURL string) (*models.Invoice, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO invoices (order_id, pdf_url, created_at) VALUES (?, ?, ?)`,
		orderID, pdfURL, now,
	)
	if database.IsDuplicateKey(err) {
		return nil, &apperrors.DuplicateInvoiceError{OrderID: orderID}
	}
	if err != nil {
		return nil, fmt.Errorf("insert invoice for order %d: %w", orderID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("invoice id for order %d: %w", orderID, err)
	}
	return &models.Invoice{ID: id, OrderID: orderID, PDFURL: pdfURL, CreatedAt: now}, nil
}

func (r *InvoiceRepository) DeleteByOrderID(ctx context.Context, orderID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("delete invoice for order %d: %w", orderID, err)
	}
	return nil
}
