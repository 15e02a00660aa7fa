package invoice

import (
	"context"
	"fmt"
	"log/slog"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/logging"
	"ecommerce-backend/models"
	"ecommerce-backend/storage"
)

type OrderReader interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
}

type Repository interface {
	GetByOrderID(ctx context.Context, orderID int64) (*models.Invoice, error)
	Create(ctx context.Context, orderID int64, pdfURL string) (*models.Invoice, error)
	DeleteByOrderID(ctx context.Context, orderID int64) error
}

type ArtifactSink interface {
	Store(ctx context.Context, data []byte, suggestedName string) (*storage.Artifact, error)
	Delete(ctx context.Context, fileName string) error
}

type Service struct {
	orders   OrderReader
	invoices Repository
	sink     ArtifactSink
	renderer *Renderer
	log      *slog.Logger
}

func NewService(orders OrderReader, invoices Repository, sink ArtifactSink, renderer *Renderer, logger *slog.Logger) *Service {
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Service{
		orders:   orders,
		invoices: invoices,
		sink:     sink,
		renderer: renderer,
		log:      logging.Module(logger, "InvoiceService"),
	}
}

// Generate renders, stores and records the invoice of orderID. At most one
// invoice exists per order; a second call fails with DuplicateInvoiceError.
func (s *Service) Generate(ctx context.Context, orderID int64) (*models.Invoice, error) {
	const fn = "createInvoice"

	existing, err := s.invoices.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, s.fail(fn, orderID, err)
	}
	if existing != nil {
		return nil, s.fail(fn, orderID, &apperrors.DuplicateInvoiceError{OrderID: orderID})
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, s.fail(fn, orderID, err)
	}

	pdf, err := s.renderer.Render(order)
	if err != nil {
		return nil, s.fail(fn, orderID, err)
	}

	artifact, err := s.sink.Store(ctx, pdf, fmt.Sprintf("invoice_order_%d.pdf", order.ID))
	if err != nil {
		return nil, s.fail(fn, orderID, err)
	}

	inv, err := s.invoices.Create(ctx, orderID, artifact.FileName)
	if err != nil {
		if delErr := s.sink.Delete(ctx, artifact.FileName); delErr != nil {
			s.log.Error("failed to remove orphaned invoice file", "fn", fn, "order_id", orderID,
				"file", artifact.FileName, "error", delErr)
		}
		return nil, s.fail(fn, orderID, err)
	}

	s.log.Info("invoice created successfully", "fn", fn, "order_id", orderID, "pdf_url", artifact.FileName)
	return inv, nil
}

// Remove deletes the invoice record of orderID and its stored file.
func (s *Service) Remove(ctx context.Context, orderID int64) error {
	const fn = "removeInvoice"

	inv, err := s.invoices.GetByOrderID(ctx, orderID)
	if err != nil {
		return s.fail(fn, orderID, err)
	}
	if inv == nil {
		return nil
	}
	if err := s.invoices.DeleteByOrderID(ctx, orderID); err != nil {
		return s.fail(fn, orderID, err)
	}
	if err := s.sink.Delete(ctx, inv.PDFURL); err != nil {
		return s.fail(fn, orderID, err)
	}
	s.log.Info("invoice removed", "fn", fn, "order_id", orderID)
	return nil
}

func (s *Service) fail(fn string, orderID int64, err error) error {
	s.log.Error(err.Error(), "fn", fn, "order_id", orderID, "kind", apperrors.Kind(err))
	return err
}
