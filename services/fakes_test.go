package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/models"
	"ecommerce-backend/saga"
	"ecommerce-backend/storage"

	"github.com/shopspring/decimal"
)

var createdAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// memDB backs products, orders, lines and invoices with one lock, like a
// single database would.
type memDB struct {
	mu       sync.Mutex
	products map[int64]*models.Product
	orders   map[int64]*models.Order
	lines    map[int64][]models.OrderLine
	invoices map[int64]*models.Invoice
	nextID   int64
	getCalls int

	beforeDecrement func(db *memDB, id int64)
	deleteErr       error
	incrementErr    error
}

func newMemDB(products ...models.Product) *memDB {
	db := &memDB{
		products: map[int64]*models.Product{},
		orders:   map[int64]*models.Order{},
		lines:    map[int64][]models.OrderLine{},
		invoices: map[int64]*models.Invoice{},
	}
	for _, p := range products {
		p := p
		db.products[p.ID] = &p
	}
	return db
}

func product(id int64, name, price string, qty int) models.Product {
	return models.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Quantity: qty, Category: "general"}
}

func (db *memDB) stock(id int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id].Quantity
}

func (db *memDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

func (db *memDB) GetByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Product
	seen := map[int64]bool{}
	for _, id := range ids {
		if p, ok := db.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *p)
		}
	}
	return out, nil
}

func (db *memDB) DecrementQuantity(_ context.Context, id int64, amount int) (*models.Product, error) {
	if db.beforeDecrement != nil {
		db.beforeDecrement(db, id)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.products[id]
	if !ok {
		return nil, apperrors.NotFound("decrementQuantity", "product", id)
	}
	if p.Quantity < amount {
		return nil, &apperrors.NegativeStockError{ProductID: id, Available: p.Quantity, Requested: amount}
	}
	p.Quantity -= amount
	cp := *p
	return &cp, nil
}

func (db *memDB) IncrementQuantity(_ context.Context, id int64, amount int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.incrementErr != nil {
		return db.incrementErr
	}
	db.products[id].Quantity += amount
	return nil
}

func (db *memDB) CreateOrder(ctx context.Context, header *models.Order) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID++
	o := *header
	o.ID = db.nextID
	o.CreatedAt, o.UpdatedAt = createdAt, createdAt
	db.orders[o.ID] = &o
	cp := o
	return &cp, nil
}

func (db *memDB) CreateLines(_ context.Context, orderID int64, lines []models.OrderLine) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i, l := range lines {
		l.ID = int64(i + 1)
		l.OrderID = orderID
		db.lines[orderID] = append(db.lines[orderID], l)
	}
	return nil
}

func (db *memDB) joined(id int64) *models.Order {
	o := *db.orders[id]
	o.Lines = nil
	for _, l := range db.lines[id] {
		l.ProductName = db.products[l.ProductID].Name
		o.Lines = append(o.Lines, l)
	}
	if inv, ok := db.invoices[id]; ok {
		cp := *inv
		o.Invoice = &cp
	}
	return &o
}

func (db *memDB) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.getCalls++
	if _, ok := db.orders[id]; !ok {
		return nil, apperrors.NotFound("getOrderById", "order", id)
	}
	return db.joined(id), nil
}

func (db *memDB) ListOrders(_ context.Context) ([]models.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []models.Order{}
	for id := db.nextID; id > 0; id-- {
		if _, ok := db.orders[id]; ok {
			out = append(out, *db.joined(id))
		}
	}
	return out, nil
}

func (db *memDB) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	all, _ := db.ListOrders(ctx)
	out := []models.Order{}
	for _, o := range all {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (db *memDB) UpdateOrder(_ context.Context, id int64, upd models.OrderUpdate) (*models.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	o, ok := db.orders[id]
	if !ok {
		return nil, apperrors.NotFound("updateOrder", "order", id)
	}
	if upd.IsPaid != nil {
		o.IsPaid = *upd.IsPaid
	}
	if upd.IsDelivered != nil {
		o.IsDelivered = *upd.IsDelivered
	}
	if upd.Address != nil {
		o.Address = *upd.Address
	}
	return db.joined(id), nil
}

func (db *memDB) DeleteOrder(_ context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.deleteErr != nil {
		return db.deleteErr
	}
	if _, ok := db.orders[id]; !ok {
		return apperrors.NotFound("deleteOrder", "order", id)
	}
	delete(db.orders, id)
	delete(db.lines, id)
	delete(db.invoices, id)
	return nil
}

func (db *memDB) GetByOrderID(_ context.Context, orderID int64) (*models.Invoice, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.invoices[orderID], nil
}

func (db *memDB) Create(_ context.Context, orderID int64, pdfURL string) (*models.Invoice, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.invoices[orderID]; ok {
		return nil, &apperrors.DuplicateInvoiceError{OrderID: orderID}
	}
	inv := &models.Invoice{ID: orderID, OrderID: orderID, PDFURL: pdfURL, CreatedAt: createdAt}
	db.invoices[orderID] = inv
	return inv, nil
}

func (db *memDB) DeleteByOrderID(_ context.Context, orderID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.invoices, orderID)
	return nil
}

type memSink struct {
	mu       sync.Mutex
	files    map[string][]byte
	n        int
	storeErr error
}

func (m *memSink) Store(_ context.Context, data []byte, _ string) (*storage.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	m.n++
	name := fmt.Sprintf("artifact-%d.pdf", m.n)
	m.files[name] = data
	return &storage.Artifact{ID: name, FileName: name, Path: "/tmp/" + name}, nil
}

func (m *memSink) Fetch(_ context.Context, fileName string) (*storage.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[fileName]
	if !ok {
		return nil, nil
	}
	return &storage.FileInfo{FileName: fileName, Size: int64(len(data))}, nil
}

func (m *memSink) Delete(_ context.Context, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, fileName)
	return nil
}

func (m *memSink) PublicURL(fileName string) string { return "/uploads/" + fileName }

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type adminList struct {
	admins []models.AdminUser
	err    error
}

func (a adminList) ListAdmins(context.Context) ([]models.AdminUser, error) {
	return a.admins, a.err
}

type recordingNotifier struct {
	mu        sync.Mutex
	admin     []string
	customer  []string
	links     []string
	failAdmin bool
	failAll   bool
}

func (n *recordingNotifier) NotifyAdminOrderReceived(_ context.Context, email string, _ int64, _, invoiceURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admin = append(n.admin, email)
	n.links = append(n.links, invoiceURL)
	if n.failAdmin || n.failAll {
		return errors.New("smtp: connection refused")
	}
	return nil
}

func (n *recordingNotifier) NotifyCustomerOrderConfirmed(_ context.Context, email, _ string, _ int64, invoiceURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.customer = append(n.customer, email)
	n.links = append(n.links, invoiceURL)
	if n.failAll {
		return errors.New("smtp: connection refused")
	}
	return nil
}

type recordingPublisher struct {
	mu         sync.Mutex
	events     []models.OrderEvent
	priorities []uint8
	delayed    []models.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event models.OrderEvent, priority uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.priorities = append(p.priorities, priority)
	return nil
}

func (p *recordingPublisher) PublishDelayedEvent(_ context.Context, event models.OrderEvent, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delayed = append(p.delayed, event)
	return nil
}

type memSagaLog struct {
	mu      sync.Mutex
	entries []saga.Entry
}

func (m *memSagaLog) Save(_ context.Context, e *saga.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memSagaLog) last() saga.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}
