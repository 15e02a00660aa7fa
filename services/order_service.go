package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/cache"
	"ecommerce-backend/logging"
	"ecommerce-backend/middlewares"
	"ecommerce-backend/models"
	"ecommerce-backend/notifications"
	"ecommerce-backend/saga"
	"ecommerce-backend/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is a step of the order creation pipeline.
type State string

const (
	StateValidating        State = "Validating"
	StatePersisting        State = "Persisting"
	StateReservingStock    State = "ReservingStock"
	StateGeneratingInvoice State = "GeneratingInvoice"
	StateNotifying         State = "Notifying"
	StateComplete          State = "Complete"
	StateFailed            State = "Failed"
)

// 订单总额超过该值时事件使用高优先级
var highPriorityTotal = decimal.NewFromInt(1000)

type ProductStore interface {
	ProductReader
	DecrementQuantity(ctx context.Context, id int64, amount int) (*models.Product, error)
	IncrementQuantity(ctx context.Context, id int64, amount int) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, header *models.Order) (*models.Order, error)
	CreateLines(ctx context.Context, orderID int64, lines []models.OrderLine) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id int64, upd models.OrderUpdate) (*models.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

type InvoiceGenerator interface {
	Generate(ctx context.Context, orderID int64) (*models.Invoice, error)
	Remove(ctx context.Context, orderID int64) error
}

type ArtifactResolver interface {
	Fetch(ctx context.Context, fileName string) (*storage.FileInfo, error)
	PublicURL(fileName string) string
}

type Notifier interface {
	Notify(ctx context.Context, order *models.Order, invoiceURL string) notifications.Report
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent, priority uint8) error
	PublishDelayedEvent(ctx context.Context, event models.OrderEvent, delay time.Duration) error
}

type OrderCache interface {
	Get(ctx context.Context, id int64) (*models.Order, bool, error)
	Set(ctx context.Context, order *models.Order) error
	Invalidate(ctx context.Context, id int64) error
}

type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (int64, error)
	Complete(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}

type Option func(*OrderService)

// WithEvents publishes order.created and a delayed payment check after
// paymentCheckIn for every completed order.
func WithEvents(p EventPublisher, paymentCheckIn time.Duration) Option {
	return func(s *OrderService) {
		s.events = p
		s.paymentCheckIn = paymentCheckIn
	}
}

func WithCache(c OrderCache) Option {
	return func(s *OrderService) { s.cache = c }
}

func WithIdempotency(st IdempotencyStore) Option {
	return func(s *OrderService) { s.idempotency = st }
}

func WithSagaLog(repo saga.Repository) Option {
	return func(s *OrderService) { s.sagaLog = repo }
}

type OrderService struct {
	products  ProductStore
	orders    OrderStore
	invoices  InvoiceGenerator
	artifacts ArtifactResolver
	notifier  Notifier

	events         EventPublisher
	paymentCheckIn time.Duration
	cache          OrderCache
	idempotency    IdempotencyStore
	sagaLog        saga.Repository

	log *slog.Logger
}

func NewOrderService(products ProductStore, orders OrderStore, invoices InvoiceGenerator,
	artifacts ArtifactResolver, notifier Notifier, logger *slog.Logger, opts ...Option) *OrderService {
	s := &OrderService{
		products:  products,
		orders:    orders,
		invoices:  invoices,
		artifacts: artifacts,
		notifier:  notifier,
		log:       logging.Module(logger, "OrderService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder runs the whole creation pipeline and returns the joined order
// with its invoice URL resolved. The pipeline is not interrupted when ctx is
// cancelled; a caller that gives up must check the order state afterwards.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	const fn = "createOrder"
	ctx = context.WithoutCancel(ctx)

	key := ""
	if req.IdempotencyKey != "" && s.idempotency != nil {
		key = idempotencyScope(req.UserID, req.IdempotencyKey)
		existing, err := s.idempotency.Begin(ctx, key)
		switch {
		case errors.Is(err, cache.ErrInProgress):
			return nil, apperrors.Validation(fn, "request already in progress")
		case err != nil:
			s.log.Warn("idempotency store unavailable, continuing without it", "fn", fn, "error", err)
			key = ""
		case existing != 0:
			order, err := s.GetOrderByID(ctx, existing)
			if err != nil {
				return nil, err
			}
			if !sameOwner(order.UserID, req.UserID) {
				s.log.Warn("idempotency key reused by another user", "fn", fn, "order_id", existing)
				return nil, apperrors.Validation(fn, "idempotency key belongs to another request")
			}
			s.log.Info("replaying idempotent request", "fn", fn, "order_id", existing)
			return order, nil
		}
	}

	order, err := s.create(ctx, req)
	if key != "" {
		if err != nil {
			if relErr := s.idempotency.Release(ctx, key); relErr != nil {
				s.log.Warn("failed to release idempotency key", "fn", fn, "error", relErr)
			}
		} else if cErr := s.idempotency.Complete(ctx, key, order.ID); cErr != nil {
			s.log.Warn("failed to record idempotency key", "fn", fn, "order_id", order.ID, "error", cErr)
		}
	}
	middlewares.RecordOrderOperation("create", err == nil)
	return order, err
}

// idempotencyScope prefixes the client key with the caller so keys never
// collide across users.
func idempotencyScope(userID *int64, key string) string {
	var uid int64
	if userID != nil {
		uid = *userID
	}
	return fmt.Sprintf("%d:%s", uid, key)
}

func sameOwner(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// creation holds the state of one pipeline run.
type creation struct {
	state    State
	req      models.CreateOrderRequest
	lines    []models.OrderLine
	total    decimal.Decimal
	order    *models.Order
	reserved []models.OrderLine
	invoiced bool
}

func (c *creation) orderID() int64 {
	if c.order == nil {
		return 0
	}
	return c.order.ID
}

func (s *OrderService) create(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	run := &creation{req: req}

	s.transition(run, StateValidating)
	lines, total, err := ComposeLines(ctx, s.products, req.Items)
	if err != nil {
		return nil, s.fail(run, err)
	}
	run.lines, run.total = lines, total

	steps := []saga.Step{
		step{name: StatePersisting, exec: s.persist(run), comp: s.unpersist(run)},
		step{name: StateReservingStock, exec: s.reserve(run), comp: s.release(run)},
		step{name: StateGeneratingInvoice, exec: s.invoice(run), comp: s.uninvoice(run)},
	}
	sagaID := uuid.NewString()
	payload, _ := json.Marshal(req)

	if err := saga.NewOrchestrator(sagaID, steps, s.sagaLog, run.orderID, s.log).Start(ctx, string(payload)); err != nil {
		if saga.IsCompensationFailure(err) {
			middlewares.RecordOrphanedOrder()
			s.log.Error("order left partially committed", "fn", "createOrder", "saga_id", sagaID,
				"order_id", run.orderID(), "error", err)
			if run.order != nil {
				s.publish(ctx, models.OrderEvent{
					OrderID:  run.orderID(),
					Type:     "compensation_failed",
					Total:    run.total,
					Reason:   err.Error(),
					Occurred: time.Now().UTC(),
				}, 9)
			}
		}
		return nil, s.fail(run, err)
	}

	order := run.order
	invoiceURL := s.resolveInvoice(ctx, order)

	s.transition(run, StateNotifying)
	report := s.notifier.Notify(ctx, order, invoiceURL)
	if failed := report.Failures(); len(failed) > 0 {
		s.log.Warn("some notifications were not delivered", "order_id", order.ID,
			"failed", len(failed), "attempts", len(report.Attempts))
	}

	s.transition(run, StateComplete)
	s.announce(ctx, order)
	return order, nil
}

func (s *OrderService) persist(run *creation) func(context.Context) error {
	return func(ctx context.Context) error {
		s.transition(run, StatePersisting)
		created, err := s.orders.CreateOrder(ctx, &models.Order{
			CustomerInfo: run.req.CustomerInfo,
			UserID:       run.req.UserID,
			TotalPrice:   run.total,
		})
		if err != nil {
			return err
		}
		run.order = created
		return s.orders.CreateLines(ctx, created.ID, run.lines)
	}
}

func (s *OrderService) unpersist(run *creation) func(context.Context) error {
	return func(ctx context.Context) error {
		if run.order == nil {
			return nil
		}
		err := s.orders.DeleteOrder(ctx, run.order.ID)
		var nf *apperrors.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
}

// reserve decrements stock line by line and stops at the first failure.
func (s *OrderService) reserve(run *creation) func(context.Context) error {
	return func(ctx context.Context) error {
		s.transition(run, StateReservingStock)
		for _, line := range run.lines {
			p, err := s.products.DecrementQuantity(ctx, line.ProductID, line.Quantity)
			if err != nil {
				s.log.Error(err.Error(), "fn", "decrementQuantity", "order_id", run.orderID(),
					"product_id", line.ProductID, "kind", apperrors.Kind(err))
				return err
			}
			run.reserved = append(run.reserved, line)
			s.log.Debug("stock reserved", "order_id", run.orderID(), "product_id", p.ID, "remaining", p.Quantity)
		}
		return nil
	}
}

func (s *OrderService) release(run *creation) func(context.Context) error {
	return func(ctx context.Context) error {
		var (
			errs   []error
			failed []models.OrderLine
		)
		for i := len(run.reserved) - 1; i >= 0; i-- {
			line := run.reserved[i]
			if err := s.products.IncrementQuantity(ctx, line.ProductID, line.Quantity); err != nil {
				s.log.Error("failed to restore stock", "order_id", run.orderID(), "product_id", line.ProductID,
					"quantity", line.Quantity, "error", err)
				errs = append(errs, err)
				failed = append(failed, line)
			}
		}
		run.reserved = failed
		return errors.Join(errs...)
	}
}

func (s *OrderService) invoice(run *creation) func(context.Context) error {
	return func(ctx context.Context) error {
		s.transition(run, StateGeneratingInvoice)
		run.invoiced = true
		if _, err := s.invoices.Generate(ctx, run.order.ID); err != nil {
			return err
		}
		joined, err := s.orders.GetOrderByID(ctx, run.order.ID)
		if err != nil {
			return err
		}
		run.order = joined
		return nil
	}
}

func (s *OrderService) uninvoice(run *creation) func(context.Context) error {
	return func(ctx context.Context) error {
		if !run.invoiced {
			return nil
		}
		return s.invoices.Remove(ctx, run.order.ID)
	}
}

func (s *OrderService) transition(run *creation, to State) {
	s.log.Info("order pipeline transition", "from", string(run.state), "to", string(to), "order_id", run.orderID())
	run.state = to
}

func (s *OrderService) fail(run *creation, err error) error {
	s.log.Error(err.Error(), "fn", "createOrder", "state", string(StateFailed), "failed_in", string(run.state),
		"order_id", run.orderID(), "email", run.req.Email, "kind", apperrors.Kind(err))
	middlewares.RecordPipelineFailure(string(run.state), apperrors.Kind(err))
	run.state = StateFailed
	return err
}

func (s *OrderService) announce(ctx context.Context, order *models.Order) {
	priority := uint8(5)
	if order.TotalPrice.GreaterThan(highPriorityTotal) {
		priority = 9
	}
	s.publish(ctx, models.OrderEvent{
		OrderID:  order.ID,
		Type:     "created",
		Total:    order.TotalPrice,
		Occurred: time.Now().UTC(),
	}, priority)

	if s.events == nil {
		return
	}
	check := models.OrderEvent{OrderID: order.ID, Type: "payment_check", Total: order.TotalPrice, Occurred: time.Now().UTC()}
	if err := s.events.PublishDelayedEvent(ctx, check, s.paymentCheckIn); err != nil {
		s.log.Warn("failed to schedule payment check", "order_id", order.ID, "error", err)
	}
}

func (s *OrderService) publish(ctx context.Context, event models.OrderEvent, priority uint8) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event, priority); err != nil {
		s.log.Warn("failed to publish order event", "order_id", event.OrderID, "type", event.Type, "error", err)
	}
}

// resolveInvoice replaces the stored artifact name with its public URL, or
// clears it when the artifact is gone. It returns the resolved URL.
func (s *OrderService) resolveInvoice(ctx context.Context, order *models.Order) string {
	if order.Invoice == nil || order.Invoice.PDFURL == "" {
		return ""
	}
	info, err := s.artifacts.Fetch(ctx, order.Invoice.PDFURL)
	if err != nil || info == nil {
		if err != nil {
			s.log.Warn("failed to stat invoice file", "order_id", order.ID, "file", order.Invoice.PDFURL, "error", err)
		}
		order.Invoice.PDFURL = ""
		return ""
	}
	order.Invoice.PDFURL = s.artifacts.PublicURL(info.FileName)
	return order.Invoice.PDFURL
}

func (s *OrderService) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	if s.cache != nil {
		order, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.Warn("order cache read failed", "order_id", id, "error", err)
		}
		if ok {
			s.resolveInvoice(ctx, order)
			return order, nil
		}
	}

	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		s.log.Error(err.Error(), "fn", "getOrderById", "order_id", id)
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, order); err != nil {
			s.log.Warn("order cache write failed", "order_id", id, "error", err)
		}
	}
	s.resolveInvoice(ctx, order)
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		s.log.Error(err.Error(), "fn", "getAllOrders")
		return nil, err
	}
	for i := range orders {
		s.resolveInvoice(ctx, &orders[i])
	}
	return orders, nil
}

func (s *OrderService) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		s.log.Error(err.Error(), "fn", "getOrdersByUser", "user_id", userID)
		return nil, err
	}
	for i := range orders {
		s.resolveInvoice(ctx, &orders[i])
	}
	return orders, nil
}

func (s *OrderService) UpdateOrder(ctx context.Context, id int64, upd models.OrderUpdate) (*models.Order, error) {
	order, err := s.orders.UpdateOrder(ctx, id, upd)
	middlewares.RecordOrderOperation("update", err == nil)
	if err != nil {
		s.log.Error(err.Error(), "fn", "updateOrder", "order_id", id)
		return nil, err
	}
	s.invalidate(ctx, id)
	s.resolveInvoice(ctx, order)
	return order, nil
}

// DeleteOrder removes the order with its lines, invoice record and invoice file.
// Stock is not restored.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	err := s.invoices.Remove(ctx, id)
	if err == nil {
		err = s.orders.DeleteOrder(ctx, id)
	}
	middlewares.RecordOrderOperation("delete", err == nil)
	if err != nil {
		s.log.Error(err.Error(), "fn", "deleteOrder", "order_id", id)
		return err
	}
	s.invalidate(ctx, id)
	s.log.Info("order deleted", "fn", "deleteOrder", "order_id", id)
	return nil
}

func (s *OrderService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn("order cache invalidation failed", "order_id", id, "error", err)
	}
}

// step adapts a pair of closures to saga.Step.
type step struct {
	name State
	exec func(context.Context) error
	comp func(context.Context) error
}

func (s step) Name() string                         { return string(s.name) }
func (s step) Execute(ctx context.Context) error    { return s.exec(ctx) }
func (s step) Compensate(ctx context.Context) error { return s.comp(ctx) }
