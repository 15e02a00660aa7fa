package services

import (
	"context"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/models"

	"github.com/shopspring/decimal"
)

type ProductReader interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// ComposeLines prices the requested items against current stock. It performs
// no writes. Items are checked in request order, so the error returned
// belongs to the first offending item.
func ComposeLines(ctx context.Context, products ProductReader, items []models.OrderLineInput) ([]models.OrderLine, decimal.Decimal, error) {
	const fn = "composeLines"

	if len(items) == 0 {
		return nil, decimal.Zero, apperrors.Validation(fn, "order must contain at least one item")
	}
	ids := make([]int64, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, apperrors.Validation(fn, "quantity of product %d must be positive, got %d", item.ProductID, item.Quantity)
		}
		ids[i] = item.ProductID
	}

	found, err := products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}
	byID := make(map[int64]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	lines := make([]models.OrderLine, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, decimal.Zero, apperrors.NotFound(fn, "product", item.ProductID)
		}
		if item.Quantity > p.Quantity {
			return nil, decimal.Zero, &apperrors.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Quantity,
				Requested:   item.Quantity,
			}
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		lines = append(lines, models.OrderLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			Price:       p.Price,
			TotalPrice:  lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return lines, total, nil
}
