package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/models"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByIDs 批量查询商品，重复的 id 只查询一次
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []models.Product{}, nil
	}

	args := make([]any, len(unique))
	for i, id := range unique {
		args[i] = id
	}
	query := `SELECT id, name, price, quantity, category FROM products WHERE id IN (` +
		placeholders(len(unique)) + `) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0, len(unique))
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.Category); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, price, quantity, category FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("getProductById", "product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query product %d: %w", id, err)
	}
	return &p, nil
}

// DecrementQuantity 以条件更新扣减库存，库存不足时不修改任何数据
func (r *ProductRepository) DecrementQuantity(ctx context.Context, id int64, amount int) (*models.Product, error) {
	if amount <= 0 {
		return nil, apperrors.Validation("decrementQuantity", "amount must be positive, got %d", amount)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`,
		amount, id, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("decrement product %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("decrement product %d: %w", id, err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, &apperrors.NegativeStockError{ProductID: id, Available: current.Quantity, Requested: amount}
	}
	return current, nil
}

// IncrementQuantity restores stock taken by DecrementQuantity.
func (r *ProductRepository) IncrementQuantity(ctx context.Context, id int64, amount int) error {
	if amount <= 0 {
		return apperrors.Validation("incrementQuantity", "amount must be positive, got %d", amount)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET quantity = quantity + ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("increment product %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NotFound("incrementQuantity", "product", id)
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
