package models

import "github.com/shopspring/decimal"

type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
}
