package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/models"
)

const orderColumns = `
	o.id, o.user_id, o.name, o.surname, o.email, o.country, o.city, o.postal_code, o.address,
	o.total_price, o.is_paid, o.is_delivered, o.created_at, o.updated_at,
	i.id, i.pdf_url, i.created_at`

type OrderRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db, now: time.Now}
}

// CreateOrder 插入订单头，返回带 id 的订单
func (r *OrderRepository) CreateOrder(ctx context.Context, header *models.Order) (*models.Order, error) {
	now := r.now().UTC().Truncate(time.Millisecond)
	c := header.CustomerInfo

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (user_id, name, surname, email, country, city, postal_code, address,
		                    total_price, is_paid, is_delivered, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, FALSE, ?, ?)`,
		header.UserID, c.Name, c.Surname, c.Email, c.Country, c.City, c.PostalCode, c.Address,
		header.TotalPrice, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("order id: %w", err)
	}

	created := *header
	created.ID = id
	created.IsPaid = false
	created.IsDelivered = false
	created.CreatedAt = now
	created.UpdatedAt = now
	created.Lines = nil
	created.Invoice = nil
	return &created, nil
}

// CreateLines 一条语句批量插入订单项
func (r *OrderRepository) CreateLines(ctx context.Context, orderID int64, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return apperrors.Validation("createLines", "order %d has no lines", orderID)
	}

	values := make([]string, 0, len(lines))
	args := make([]any, 0, len(lines)*5)
	for _, l := range lines {
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, orderID, l.ProductID, l.Quantity, l.Price, l.TotalPrice)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO order_details (order_id, product_id, quantity, price, total_price) VALUES `+
			strings.Join(values, ", "),
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert lines for order %d: %w", orderID, err)
	}
	return nil
}

// GetOrderByID returns the order joined with its lines (product names included) and invoice.
func (r *OrderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN invoices i ON i.order_id = o.id
		WHERE o.id = ?`, id)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("getOrderById", "order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query order %d: %w", id, err)
	}

	lines, err := r.loadLines(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Lines = lines[id]
	return order, nil
}

func (r *OrderRepository) ListOrders(ctx context.Context) ([]models.Order, error) {
	return r.listOrders(ctx, "", nil)
}

func (r *OrderRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	return r.listOrders(ctx, "WHERE o.user_id = ?", []any{userID})
}

func (r *OrderRepository) listOrders(ctx context.Context, where string, args []any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN invoices i ON i.order_id = o.id
		`+where+`
		ORDER BY o.created_at DESC, o.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []models.Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []models.Order{}, nil
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

// UpdateOrder 只更新非空字段
func (r *OrderRepository) UpdateOrder(ctx context.Context, id int64, upd models.OrderUpdate) (*models.Order, error) {
	if upd.Empty() {
		return nil, apperrors.Validation("updateOrder", "no fields to update")
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Surname != nil {
		add("surname", *upd.Surname)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Country != nil {
		add("country", *upd.Country)
	}
	if upd.City != nil {
		add("city", *upd.City)
	}
	if upd.PostalCode != nil {
		add("postal_code", *upd.PostalCode)
	}
	if upd.Address != nil {
		add("address", *upd.Address)
	}
	if upd.IsPaid != nil {
		add("is_paid", *upd.IsPaid)
	}
	if upd.IsDelivered != nil {
		add("is_delivered", *upd.IsDelivered)
	}
	add("updated_at", r.now().UTC().Truncate(time.Millisecond))
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update order %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperrors.NotFound("updateOrder", "order", id)
	}
	return r.GetOrderByID(ctx, id)
}

// DeleteOrder removes the order; lines and invoice go with it through ON DELETE CASCADE.
func (r *OrderRepository) DeleteOrder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NotFound("deleteOrder", "order", id)
	}
	return nil
}

func (r *OrderRepository) loadLines(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderLine, error) {
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.order_id, d.product_id, p.name, d.quantity, d.price, d.total_price
		FROM order_details d
		JOIN products p ON p.id = d.product_id
		WHERE d.order_id IN (`+placeholders(len(orderIDs))+`)
		ORDER BY d.order_id, d.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.OrderLine, len(orderIDs))
	for rows.Next() {
		var l models.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.Price, &l.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o          models.Order
		userID     sql.NullInt64
		invoiceID  sql.NullInt64
		pdfURL     sql.NullString
		invoicedAt sql.NullTime
	)
	err := row.Scan(
		&o.ID, &userID, &o.Name, &o.Surname, &o.Email, &o.Country, &o.City, &o.PostalCode, &o.Address,
		&o.TotalPrice, &o.IsPaid, &o.IsDelivered, &o.CreatedAt, &o.UpdatedAt,
		&invoiceID, &pdfURL, &invoicedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		uid := userID.Int64
		o.UserID = &uid
	}
	if invoiceID.Valid {
		o.Invoice = &models.Invoice{
			ID:        invoiceID.Int64,
			OrderID:   o.ID,
			PDFURL:    pdfURL.String,
			CreatedAt: invoicedAt.Time,
		}
	}
	return &o, nil
}
