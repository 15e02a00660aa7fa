package saga

import (
	"context"
	"encoding/json"
	"time"
)

type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompensated  Status = "COMPENSATED"
	// StatusFailed means a compensation failed; the order needs manual repair.
	StatusFailed Status = "FAILED"
)

// Entry is one row of the saga log.
type Entry struct {
	SagaID        string    `json:"sagaId"`
	OrderID       int64     `json:"orderId"`
	Status        Status    `json:"status"`
	CurrentStep   string    `json:"currentStep"`
	Payload       string    `json:"payload,omitempty"`
	ErrorMessages string    `json:"errorMessages"` // JSON array
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Repository persists saga log entries. Save appends; it never upserts.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
}

func NewEntry(sagaID string, orderID int64, status Status, step, payload string, errs []string) *Entry {
	errJSON := "[]"
	if len(errs) > 0 {
		if b, err := json.Marshal(errs); err == nil {
			errJSON = string(b)
		}
	}
	return &Entry{
		SagaID:        sagaID,
		OrderID:       orderID,
		Status:        status,
		CurrentStep:   step,
		Payload:       payload,
		ErrorMessages: errJSON,
		UpdatedAt:     time.Now().UTC(),
	}
}
