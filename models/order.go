package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerInfo 下单时的客户联系信息快照
type CustomerInfo struct {
	Name       string `json:"name" binding:"required,max=20"`
	Surname    string `json:"surname" binding:"required,max=20"`
	Email      string `json:"email" binding:"required,email,max=40"`
	Country    string `json:"country" binding:"required,max=40"`
	City       string `json:"city" binding:"required,max=20"`
	PostalCode string `json:"postalCode" binding:"required,max=20"`
	Address    string `json:"address" binding:"required,max=40"`
}

// OrderLineInput is one requested cart entry.
type OrderLineInput struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	CustomerInfo
	Items []OrderLineInput `json:"items" binding:"required,min=1,dive"`

	// 以下字段不来自请求体
	UserID         *int64 `json:"-"`
	IdempotencyKey string `json:"-"`
}

type Order struct {
	ID int64 `json:"id"`
	CustomerInfo
	UserID      *int64          `json:"userId,omitempty"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	IsPaid      bool            `json:"isPaid"`
	IsDelivered bool            `json:"isDelivered"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Lines       []OrderLine     `json:"orderDetails"`
	Invoice     *Invoice        `json:"invoice"`
}

type OrderLine struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// OrderUpdate carries the fields an admin may change after creation.
// Nil pointers are left untouched.
type OrderUpdate struct {
	Name        *string `json:"name" binding:"omitempty,max=20"`
	Surname     *string `json:"surname" binding:"omitempty,max=20"`
	Email       *string `json:"email" binding:"omitempty,email,max=40"`
	Country     *string `json:"country" binding:"omitempty,max=40"`
	City        *string `json:"city" binding:"omitempty,max=20"`
	PostalCode  *string `json:"postalCode" binding:"omitempty,max=20"`
	Address     *string `json:"address" binding:"omitempty,max=40"`
	IsPaid      *bool   `json:"isPaid"`
	IsDelivered *bool   `json:"isDelivered"`
}

func (u OrderUpdate) Empty() bool {
	return u.Name == nil && u.Surname == nil && u.Email == nil && u.Country == nil &&
		u.City == nil && u.PostalCode == nil && u.Address == nil &&
		u.IsPaid == nil && u.IsDelivered == nil
}

type OrderEvent struct {
	OrderID  int64           `json:"order_id"`
	Type     string          `json:"type"` // created, payment_check, compensation_failed
	Total    decimal.Decimal `json:"total"`
	Reason   string          `json:"reason,omitempty"`
	Occurred time.Time       `json:"occurred"`
}
