package models

import "time"

type Invoice struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	PDFURL    string    `json:"pdfUrl"`
	CreatedAt time.Time `json:"createdAt"`
}
