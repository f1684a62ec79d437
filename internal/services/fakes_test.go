package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/events"
	"github.com/ankarahouse/storefront/internal/models"
	"github.com/ankarahouse/storefront/internal/shipping"
	"github.com/ankarahouse/storefront/internal/stripe"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeOrderStore struct {
	mu             sync.Mutex
	orders         map[uuid.UUID]*models.Order
	createErrs     []error
	createAttempts []string
	ticks          int
}

// tick returns a strictly increasing time so successive updates differ.
func (f *fakeOrderStore) tick() time.Time {
	f.ticks++
	return fixedNow.Add(time.Duration(f.ticks) * time.Second)
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrderStore) add(order *models.Order) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	f.orders[order.ID] = order
	return order
}

func (f *fakeOrderStore) Create(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAttempts = append(f.createAttempts, order.OrderNumber)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	order.ID = uuid.New()
	order.CreatedAt = fixedNow
	order.UpdatedAt = fixedNow
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return order, nil
}

func (f *fakeOrderStore) GetByPaymentReference(_ context.Context, reference string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.PaymentReference == reference {
			return order, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeOrderStore) List(_ context.Context, filter db.OrderFilter) ([]*models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, order := range f.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(order.OrderNumber, filter.Search) && !strings.Contains(order.Email, filter.Search) {
			continue
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, len(out), nil
}

func (f *fakeOrderStore) SetPaymentReference(_ context.Context, orderID uuid.UUID, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	order.PaymentReference = reference
	return nil
}

func (f *fakeOrderStore) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	orders, err := f.BulkUpdateStatus(ctx, []uuid.UUID{orderID}, status)
	if err != nil {
		return nil, err
	}
	return orders[0], nil
}

// BulkUpdateStatus mirrors the store: validate everything on copies first,
// then commit all or nothing.
func (f *fakeOrderStore) BulkUpdateStatus(_ context.Context, ids []uuid.UUID, status models.OrderStatus) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	staged := make([]*models.Order, 0, len(ids))
	for _, id := range ids {
		order, ok := f.orders[id]
		if !ok {
			return nil, db.ErrNotFound
		}
		copied := *order
		if err := copied.TransitionTo(status, now); err != nil {
			return nil, err
		}
		staged = append(staged, &copied)
	}
	for _, order := range staged {
		f.orders[order.ID] = order
	}
	return staged, nil
}

func (f *fakeOrderStore) UpdatePaymentStatus(_ context.Context, orderID uuid.UUID, status models.PaymentStatus, allowedFrom ...models.PaymentStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if len(allowedFrom) > 0 {
		allowed := false
		for _, from := range allowedFrom {
			allowed = allowed || order.PaymentStatus == from
		}
		if !allowed {
			return nil, models.ErrInvalidStatusTransition
		}
	}
	if err := order.SetPaymentStatus(status, f.tick()); err != nil {
		return nil, err
	}
	return order, nil
}

func (f *fakeOrderStore) UpdateTracking(_ context.Context, orderID uuid.UUID, trackingNumber, carrier string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	order.TrackingNumber = trackingNumber
	order.Carrier = carrier
	return order, nil
}

func (f *fakeOrderStore) UpdateNotes(_ context.Context, orderID uuid.UUID, notes string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	order.Notes = notes
	return order, nil
}

type fakeProductStore struct {
	products map[uuid.UUID]*models.Product
	variants map[uuid.UUID]*models.Variant
}

func newFakeProductStore(products ...*models.Product) *fakeProductStore {
	f := &fakeProductStore{
		products: make(map[uuid.UUID]*models.Product),
		variants: make(map[uuid.UUID]*models.Variant),
	}
	for _, p := range products {
		f.products[p.ID] = p
		for i := range p.Variants {
			f.variants[p.Variants[i].ID] = &p.Variants[i]
		}
	}
	return f
}

func (f *fakeProductStore) GetProduct(_ context.Context, productID uuid.UUID) (*models.Product, error) {
	if p, ok := f.products[productID]; ok {
		return p, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeProductStore) GetVariant(_ context.Context, variantID uuid.UUID) (*models.Variant, error) {
	if v, ok := f.variants[variantID]; ok {
		return v, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeProductStore) GetBySlug(_ context.Context, slug string) (*models.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			copied := *p
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeProductStore) ListActive(_ context.Context, _ db.ProductFilter) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range f.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCartStore struct {
	items    map[uuid.UUID][]models.CartItem
	clearErr error
	cleared  []uuid.UUID
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{items: make(map[uuid.UUID][]models.CartItem)}
}

func (f *fakeCartStore) List(_ context.Context, ownerID uuid.UUID) ([]models.CartItem, error) {
	return f.items[ownerID], nil
}

func (f *fakeCartStore) Upsert(_ context.Context, ownerID, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*models.CartItem, error) {
	item := models.CartItem{ID: uuid.New(), OwnerID: ownerID, ProductID: productID, VariantID: variantID, Quantity: quantity}
	f.items[ownerID] = append(f.items[ownerID], item)
	return &item, nil
}

func (f *fakeCartStore) Remove(_ context.Context, ownerID, itemID uuid.UUID) error {
	items := f.items[ownerID]
	for i, item := range items {
		if item.ID == itemID {
			f.items[ownerID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func (f *fakeCartStore) Clear(_ context.Context, ownerID uuid.UUID) error {
	f.cleared = append(f.cleared, ownerID)
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.items, ownerID)
	return nil
}

type fakeEventStore struct {
	events        map[uuid.UUID]*models.Event
	registered    [][]models.EventAttendee
	registerCalls int
	registerErr   error
}

func newFakeEventStore(events ...*models.Event) *fakeEventStore {
	f := &fakeEventStore{events: make(map[uuid.UUID]*models.Event)}
	for _, e := range events {
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeEventStore) GetByID(_ context.Context, eventID uuid.UUID) (*models.Event, error) {
	if e, ok := f.events[eventID]; ok {
		return e, nil
	}
	return nil, db.ErrNotFound
}

// Register applies the same conditional increment as the database.
func (f *fakeEventStore) Register(_ context.Context, eventID uuid.UUID, attendees []models.EventAttendee) error {
	f.registerCalls++
	if f.registerErr != nil {
		return f.registerErr
	}
	event, ok := f.events[eventID]
	if !ok || !event.IsActive || !event.HasCapacityFor(len(attendees)) {
		return db.ErrEventFull
	}
	event.CurrentAttendees += len(attendees)
	for i := range attendees {
		attendees[i].ID = uuid.New()
	}
	f.registered = append(f.registered, attendees)
	return nil
}

func (f *fakeEventStore) ListAttendees(_ context.Context, eventID uuid.UUID) ([]models.EventAttendee, error) {
	var out []models.EventAttendee
	for _, batch := range f.registered {
		for _, a := range batch {
			if a.EventID == eventID {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (f *fakeEventStore) CheckIn(_ context.Context, ticketCode string) (*models.EventAttendee, error) {
	for _, batch := range f.registered {
		for i := range batch {
			if batch[i].TicketCode == ticketCode {
				batch[i].Attended = true
				return &batch[i], nil
			}
		}
	}
	return nil, db.ErrNotFound
}

type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, envelopes ...events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, envelopes...)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.envelopes))
	for _, e := range p.envelopes {
		out = append(out, e.Type)
	}
	return out
}

type recordingEmailSender struct {
	confirmations []string
	shipped       []string
	delivered     []string
	tickets       int
	err           error
}

func (s *recordingEmailSender) SendOrderConfirmation(_ context.Context, order *models.Order, _ models.ShippingQuote) error {
	s.confirmations = append(s.confirmations, order.OrderNumber)
	return s.err
}

func (s *recordingEmailSender) SendOrderShipped(_ context.Context, order *models.Order) error {
	s.shipped = append(s.shipped, order.OrderNumber)
	return s.err
}

func (s *recordingEmailSender) SendOrderDelivered(_ context.Context, order *models.Order) error {
	s.delivered = append(s.delivered, order.OrderNumber)
	return s.err
}

func (s *recordingEmailSender) SendEventTicket(context.Context, *models.Event, []models.EventAttendee) error {
	s.tickets++
	return s.err
}

type staticSource struct {
	table *shipping.Table
	err   error
}

func (s staticSource) Table(context.Context) (*shipping.Table, error) {
	return s.table, s.err
}

const testRateTable = `
zones:
  - name: Lagos State
    type: state
    state: Lagos
    active: true
methods:
  - code: standard
    name: Standard Delivery
    min_days: 2
    max_days: 4
    active: true
rates:
  - zone: Lagos State
    method: standard
    base_rate: 2000
    weight_rate: 500
    weight_threshold: 2
    free_shipping_threshold: 20000
`

func testCalculator(t interface{ Fatalf(string, ...any) }) *shipping.Calculator {
	table, err := shipping.ParseTable([]byte(testRateTable))
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	return shipping.NewCalculator(staticSource{table: table}, shipping.FallbackPolicy{
		FlatRate:  decimal.NewFromInt(2500),
		FreeAbove: decimal.NewFromInt(50000),
	})
}

type fakeGateway struct {
	sessions map[string]*stripe.Session
	created  []stripe.CheckoutParams
	err      error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*stripe.Session)}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, params stripe.CheckoutParams) (*stripe.Session, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, params)
	session := &stripe.Session{
		ID:            "cs_test_" + params.OrderNumber,
		URL:           "https://checkout.stripe.com/c/pay/cs_test_" + params.OrderNumber,
		AmountMinor:   params.AmountMinor,
		Currency:      "ngn",
		Status:        "open",
		PaymentStatus: stripe.SessionUnpaid,
		OrderID:       params.OrderID,
	}
	g.sessions[session.ID] = session
	return session, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, sessionID string) (*stripe.Session, error) {
	if session, ok := g.sessions[sessionID]; ok {
		return session, nil
	}
	return nil, errors.New("no such checkout session")
}

func product(name string, price int64) *models.Product {
	return &models.Product{
		ID:       uuid.New(),
		Name:     name,
		Slug:     strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		SKU:      strings.ToUpper(strings.ReplaceAll(name, " ", "")),
		Price:    decimal.NewFromInt(price),
		WeightKg: decimal.RequireFromString("0.5"),
		IsActive: true,
	}
}

func intPtr(v int) *int { return &v }
