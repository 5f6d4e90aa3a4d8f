package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"backoffice/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryData struct {
	products  map[primitive.ObjectID]models.Product
	entries   []models.StockEntry
	orders    map[primitive.ObjectID]models.Order
	requests  map[primitive.ObjectID]models.RequestOrder
	invoices  map[primitive.ObjectID]models.Invoice
	counters  map[string]int64
	sales     map[primitive.ObjectID]models.Sale
	customers map[primitive.ObjectID]models.Customer
	logs      map[models.LogStream][]models.LogEntry
	users     map[primitive.ObjectID]models.User
	sessions  map[primitive.ObjectID]models.Session
}

func newMemoryData() *memoryData {
	return &memoryData{
		products:  map[primitive.ObjectID]models.Product{},
		orders:    map[primitive.ObjectID]models.Order{},
		requests:  map[primitive.ObjectID]models.RequestOrder{},
		invoices:  map[primitive.ObjectID]models.Invoice{},
		counters:  map[string]int64{},
		sales:     map[primitive.ObjectID]models.Sale{},
		customers: map[primitive.ObjectID]models.Customer{},
		logs:      map[models.LogStream][]models.LogEntry{},
		users:     map[primitive.ObjectID]models.User{},
		sessions:  map[primitive.ObjectID]models.Session{},
	}
}

// clone copies every map and slice header. Stored values are never mutated in place, so
// sharing their nested slices with the snapshot is safe.
func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	for k, v := range d.products {
		c.products[k] = v
	}
	c.entries = append([]models.StockEntry(nil), d.entries...)
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	for k, v := range d.invoices {
		c.invoices[k] = v
	}
	for k, v := range d.counters {
		c.counters[k] = v
	}
	for k, v := range d.sales {
		c.sales[k] = v
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.logs {
		c.logs[k] = append([]models.LogEntry(nil), v...)
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	return c
}

type memoryCore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *memoryData
}

type memoryTxKey struct{}

// WithinTx serialises transactions and restores a snapshot when fn fails.
func (m *memoryCore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite takes the data lock for a write. Writes outside a transaction also wait for any open
// transaction so a rollback cannot discard them.
func (m *memoryCore) lockWrite(ctx context.Context) func() {
	if ctx.Value(memoryTxKey{}) != nil {
		m.mu.Lock()
		return m.mu.Unlock
	}
	m.txMu.Lock()
	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		m.txMu.Unlock()
	}
}

// NewMemoryStore returns a Store kept entirely in process memory.
func NewMemoryStore() *Store {
	core := &memoryCore{data: newMemoryData()}
	return &Store{
		Tx:        core,
		Products:  &memoryProducts{core},
		Entries:   &memoryEntries{core},
		Orders:    &memoryOrders{core},
		Requests:  &memoryRequests{core},
		Invoices:  &memoryInvoices{core},
		Counters:  &memoryCounters{core},
		Sales:     &memorySales{core},
		Customers: &memoryCustomers{core},
		Logs:      &memoryLogs{core},
		Users:     &memoryUsers{core},
		Sessions:  &memorySessions{core},
	}
}

func ensureID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func ownerMatches(want, got string) bool {
	return want == "" || want == got
}

// newerFirst orders by timestamp then id, both descending.
func newerFirst(ta, tb time.Time, ia, ib primitive.ObjectID) bool {
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return ia.Hex() > ib.Hex()
}

// --- products ---

type memoryProducts struct{ *memoryCore }

var _ ProductRepository = (*memoryProducts)(nil)

func (r *memoryProducts) Create(ctx context.Context, p *models.Product) error {
	defer r.lockWrite(ctx)()
	ensureID(&p.ID)
	r.data.products[p.ID] = *p
	return nil
}

func (r *memoryProducts) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memoryProducts) List(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Product, 0, len(r.data.products))
	for _, p := range r.data.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		out = append(out, p)
	}
	sortProducts(out, f.SortBy)
	return out, nil
}

func sortProducts(list []models.Product, by string) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch by {
		case "quantity":
			if a.Quantity != b.Quantity {
				return a.Quantity < b.Quantity
			}
		case "expiry":
			switch {
			case a.ExpiryDate == nil && b.ExpiryDate != nil:
				return false
			case a.ExpiryDate != nil && b.ExpiryDate == nil:
				return true
			case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.Hex() < b.ID.Hex()
	})
}

func (r *memoryProducts) Update(ctx context.Context, id primitive.ObjectID, upd models.UpdateProduct, at time.Time) (*models.Product, error) {
	defer r.lockWrite(ctx)()
	p, ok := r.data.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyProductUpdate(&p, upd)
	p.UpdatedAt = at
	r.data.products[id] = p
	return &p, nil
}

func applyProductUpdate(p *models.Product, upd models.UpdateProduct) {
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.SubCategory != nil {
		p.SubCategory = *upd.SubCategory
	}
	if upd.Packaging != nil {
		p.Packaging = *upd.Packaging
	}
	if upd.CriticalStock != nil {
		p.CriticalStock = *upd.CriticalStock
	}
	if upd.PricePerBox != nil {
		p.PricePerBox = *upd.PricePerBox
	}
	if upd.PricePerTest != nil {
		p.PricePerTest = *upd.PricePerTest
	}
	if upd.PricePerPiece != nil {
		p.PricePerPiece = *upd.PricePerPiece
	}
	if upd.ExpiryDate != nil {
		t := *upd.ExpiryDate
		p.ExpiryDate = &t
	}
	if upd.ImageURL != nil {
		p.ImageURL = *upd.ImageURL
	}
}

func (r *memoryProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.lockWrite(ctx)()
	if _, ok := r.data.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.data.products, id)
	return nil
}

func (r *memoryProducts) AdjustQuantity(ctx context.Context, id primitive.ObjectID, delta int, opts AdjustOptions) (*models.Product, error) {
	defer r.lockWrite(ctx)()
	p, ok := r.data.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	if opts.RequireAvailable && delta < 0 && p.Quantity < -delta {
		return nil, ErrInsufficient
	}
	p.Quantity += delta
	if opts.ExpiryDate != nil {
		t := *opts.ExpiryDate
		p.ExpiryDate = &t
	}
	p.UpdatedAt = opts.At
	r.data.products[id] = p
	return &p, nil
}

// --- stock entries ---

type memoryEntries struct{ *memoryCore }

var _ EntryRepository = (*memoryEntries)(nil)

func (r *memoryEntries) Append(ctx context.Context, e *models.StockEntry) error {
	defer r.lockWrite(ctx)()
	ensureID(&e.ID)
	r.data.entries = append(r.data.entries, *e)
	return nil
}

func (r *memoryEntries) ListByProduct(ctx context.Context, productID primitive.ObjectID) ([]models.StockEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.StockEntry
	for i := len(r.data.entries) - 1; i >= 0; i-- {
		if r.data.entries[i].ProductID == productID {
			out = append(out, r.data.entries[i])
		}
	}
	return out, nil
}

func (r *memoryEntries) ListByReference(ctx context.Context, referenceID string) ([]models.StockEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.StockEntry
	for _, e := range r.data.entries {
		if e.ReferenceID == referenceID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- orders ---

type memoryOrders struct{ *memoryCore }

var _ OrderRepository = (*memoryOrders)(nil)

func (r *memoryOrders) Create(ctx context.Context, o *models.Order) error {
	defer r.lockWrite(ctx)()
	ensureID(&o.ID)
	stored := *o
	stored.Lines = append([]models.OrderLine(nil), o.Lines...)
	r.data.orders[o.ID] = stored
	return nil
}

func (r *memoryOrders) Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.data.orders[id]
	if !ok || !ownerMatches(ownerID, o.OwnerID) {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r *memoryOrders) List(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Order
	for _, o := range r.data.orders {
		if !ownerMatches(f.OwnerID, o.OwnerID) {
			continue
		}
		if f.Status != "" && o.PaymentStatus != f.Status {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (r *memoryOrders) ReplaceLines(ctx context.Context, ownerID string, id primitive.ObjectID, lines []models.OrderLine, total float64, allowed []models.PaymentStatus, at time.Time) (*models.Order, error) {
	defer r.lockWrite(ctx)()
	o, ok := r.data.orders[id]
	if !ok || !ownerMatches(ownerID, o.OwnerID) {
		return nil, ErrNotFound
	}
	if !containsStatus(allowed, o.PaymentStatus) {
		return nil, ErrConflict
	}
	o.Lines = append([]models.OrderLine(nil), lines...)
	o.TotalAmount = total
	o.UpdatedAt = at
	r.data.orders[id] = o
	return &o, nil
}

func (r *memoryOrders) TransitionStatus(ctx context.Context, ownerID string, id primitive.ObjectID, from []models.PaymentStatus, change models.OrderStatusChange) (*models.Order, error) {
	defer r.lockWrite(ctx)()
	o, ok := r.data.orders[id]
	if !ok || !ownerMatches(ownerID, o.OwnerID) {
		return nil, ErrNotFound
	}
	if !containsStatus(from, o.PaymentStatus) {
		return nil, ErrConflict
	}
	o.PaymentStatus = change.To
	if change.StockDeducted != nil {
		o.StockDeducted = *change.StockDeducted
	}
	if change.PaidAt != nil {
		t := *change.PaidAt
		o.PaidAt = &t
	}
	if change.CancelledAt != nil {
		t := *change.CancelledAt
		o.CancelledAt = &t
	}
	o.UpdatedAt = change.At
	r.data.orders[id] = o
	return &o, nil
}

func (r *memoryOrders) Delete(ctx context.Context, ownerID string, id primitive.ObjectID, allowed []models.PaymentStatus) error {
	defer r.lockWrite(ctx)()
	o, ok := r.data.orders[id]
	if !ok || !ownerMatches(ownerID, o.OwnerID) {
		return ErrNotFound
	}
	if !containsStatus(allowed, o.PaymentStatus) {
		return ErrConflict
	}
	delete(r.data.orders, id)
	return nil
}

func (r *memoryOrders) CountByStatus(ctx context.Context, ownerID string) (map[models.PaymentStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[models.PaymentStatus]int{}
	for _, o := range r.data.orders {
		if ownerMatches(ownerID, o.OwnerID) {
			out[o.PaymentStatus]++
		}
	}
	return out, nil
}

// --- request orders ---

type memoryRequests struct{ *memoryCore }

var _ RequestOrderRepository = (*memoryRequests)(nil)

func (r *memoryRequests) Create(ctx context.Context, ro *models.RequestOrder) error {
	defer r.lockWrite(ctx)()
	ensureID(&ro.ID)
	stored := *ro
	stored.Lines = append([]models.OrderLine(nil), ro.Lines...)
	r.data.requests[ro.ID] = stored
	return nil
}

func (r *memoryRequests) Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.RequestOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ro, ok := r.data.requests[id]
	if !ok || !ownerMatches(ownerID, ro.OwnerID) {
		return nil, ErrNotFound
	}
	return &ro, nil
}

func (r *memoryRequests) GetByToken(ctx context.Context, token string) (*models.RequestOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ro := range r.data.requests {
		if ro.ViewToken == token {
			return &ro, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRequests) List(ctx context.Context, f models.RequestOrderFilter) ([]models.RequestOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.RequestOrder
	for _, ro := range r.data.requests {
		if !ownerMatches(f.OwnerID, ro.OwnerID) {
			continue
		}
		if f.Status != "" && ro.Status != f.Status {
			continue
		}
		out = append(out, ro)
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (r *memoryRequests) Resolve(ctx context.Context, ownerID string, id primitive.ObjectID, status models.ConfirmationStatus, before *time.Time, orderID string, at time.Time) (*models.RequestOrder, error) {
	defer r.lockWrite(ctx)()
	ro, ok := r.data.requests[id]
	if !ok || !ownerMatches(ownerID, ro.OwnerID) {
		return nil, ErrNotFound
	}
	if ro.Status != models.ConfirmationPending {
		return nil, ErrConflict
	}
	if before != nil && !ro.Expiry.After(*before) {
		return nil, ErrConflict
	}
	ro.Status = status
	if orderID != "" {
		ro.OrderID = orderID
	}
	ro.UpdatedAt = at
	r.data.requests[id] = ro
	return &ro, nil
}

func (r *memoryRequests) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	defer r.lockWrite(ctx)()
	var n int64
	for id, ro := range r.data.requests {
		if ro.Status == models.ConfirmationPending && !ro.Expiry.After(now) {
			ro.Status = models.ConfirmationUnconfirmed
			ro.UpdatedAt = now
			r.data.requests[id] = ro
			n++
		}
	}
	return n, nil
}

func (r *memoryRequests) CountPending(ctx context.Context, ownerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ro := range r.data.requests {
		if ro.Status == models.ConfirmationPending && ownerMatches(ownerID, ro.OwnerID) {
			n++
		}
	}
	return n, nil
}

// --- invoices ---

type memoryInvoices struct{ *memoryCore }

var _ InvoiceRepository = (*memoryInvoices)(nil)

func (r *memoryInvoices) Create(ctx context.Context, inv *models.Invoice) error {
	defer r.lockWrite(ctx)()
	for _, existing := range r.data.invoices {
		if existing.OrderID == inv.OrderID {
			return ErrDuplicate
		}
		if existing.OwnerID == inv.OwnerID && existing.InvoiceNumber == inv.InvoiceNumber {
			return ErrDuplicate
		}
	}
	ensureID(&inv.ID)
	stored := *inv
	stored.Lines = append([]models.OrderLine(nil), inv.Lines...)
	r.data.invoices[inv.ID] = stored
	return nil
}

func (r *memoryInvoices) Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.data.invoices[id]
	if !ok || !ownerMatches(ownerID, inv.OwnerID) {
		return nil, ErrNotFound
	}
	return &inv, nil
}

func (r *memoryInvoices) GetByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.data.invoices {
		if inv.OrderID == orderID {
			return &inv, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryInvoices) List(ctx context.Context, ownerID string) ([]models.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Invoice
	for _, inv := range r.data.invoices {
		if ownerMatches(ownerID, inv.OwnerID) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber > out[j].InvoiceNumber })
	return out, nil
}

func (r *memoryInvoices) SetPaymentStatus(ctx context.Context, orderID primitive.ObjectID, status models.PaymentStatus, at time.Time) error {
	defer r.lockWrite(ctx)()
	for id, inv := range r.data.invoices {
		if inv.OrderID == orderID {
			inv.PaymentStatus = status
			inv.UpdatedAt = at
			r.data.invoices[id] = inv
		}
	}
	return nil
}

func (r *memoryInvoices) MaxNumber(ctx context.Context, ownerID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var highest int64
	for _, inv := range r.data.invoices {
		if inv.OwnerID != ownerID {
			continue
		}
		if n, ok := models.ParseInvoiceNumber(inv.InvoiceNumber); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

// --- counters ---

type memoryCounters struct{ *memoryCore }

var _ CounterRepository = (*memoryCounters)(nil)

func (r *memoryCounters) Increment(ctx context.Context, name string) (int64, error) {
	defer r.lockWrite(ctx)()
	v, ok := r.data.counters[name]
	if !ok {
		return 0, ErrNotFound
	}
	v++
	r.data.counters[name] = v
	return v, nil
}

func (r *memoryCounters) Init(ctx context.Context, name string, value int64) error {
	defer r.lockWrite(ctx)()
	if _, ok := r.data.counters[name]; ok {
		return ErrDuplicate
	}
	r.data.counters[name] = value
	return nil
}

// --- sales ---

type memorySales struct{ *memoryCore }

var _ SaleRepository = (*memorySales)(nil)

func (r *memorySales) Create(ctx context.Context, s *models.Sale) error {
	defer r.lockWrite(ctx)()
	for _, existing := range r.data.sales {
		if existing.OrderID == s.OrderID {
			return ErrDuplicate
		}
	}
	ensureID(&s.ID)
	stored := *s
	stored.Lines = append([]models.OrderLine(nil), s.Lines...)
	r.data.sales[s.ID] = stored
	return nil
}

func (r *memorySales) GetByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.data.sales {
		if s.OrderID == orderID {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memorySales) List(ctx context.Context, f models.SaleFilter) ([]models.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Sale
	for _, s := range r.data.sales {
		if !ownerMatches(f.OwnerID, s.OwnerID) {
			continue
		}
		if s.Voided && !f.IncludeVoided {
			continue
		}
		if f.From != nil && s.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && s.Date.After(*f.To) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].Date, out[j].Date, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (r *memorySales) Void(ctx context.Context, orderID primitive.ObjectID, at time.Time) error {
	defer r.lockWrite(ctx)()
	for id, s := range r.data.sales {
		if s.OrderID == orderID && !s.Voided {
			s.Voided = true
			t := at
			s.VoidedAt = &t
			r.data.sales[id] = s
		}
	}
	return nil
}

// --- customers ---

type memoryCustomers struct{ *memoryCore }

var _ CustomerRepository = (*memoryCustomers)(nil)

func (r *memoryCustomers) Create(ctx context.Context, c *models.Customer) error {
	defer r.lockWrite(ctx)()
	ensureID(&c.ID)
	r.data.customers[c.ID] = *c
	return nil
}

func (r *memoryCustomers) Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.data.customers[id]
	if !ok || !ownerMatches(ownerID, c.OwnerID) {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *memoryCustomers) List(ctx context.Context, ownerIDs []string) ([]models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Customer
	for _, c := range r.data.customers {
		for _, owner := range ownerIDs {
			if c.OwnerID == owner {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (r *memoryCustomers) Update(ctx context.Context, ownerID string, id primitive.ObjectID, c models.Customer) (*models.Customer, error) {
	defer r.lockWrite(ctx)()
	existing, ok := r.data.customers[id]
	if !ok || !ownerMatches(ownerID, existing.OwnerID) {
		return nil, ErrNotFound
	}
	existing.Name = c.Name
	existing.Address = c.Address
	existing.City = c.City
	existing.Contact = c.Contact
	existing.Email = c.Email
	existing.UpdatedAt = c.UpdatedAt
	r.data.customers[id] = existing
	return &existing, nil
}

func (r *memoryCustomers) Delete(ctx context.Context, ownerID string, id primitive.ObjectID) error {
	defer r.lockWrite(ctx)()
	c, ok := r.data.customers[id]
	if !ok || !ownerMatches(ownerID, c.OwnerID) {
		return ErrNotFound
	}
	delete(r.data.customers, id)
	return nil
}

// --- logs ---

type memoryLogs struct{ *memoryCore }

var _ LogRepository = (*memoryLogs)(nil)

func (r *memoryLogs) Append(ctx context.Context, stream models.LogStream, e *models.LogEntry) error {
	defer r.lockWrite(ctx)()
	ensureID(&e.ID)
	r.data.logs[stream] = append(r.data.logs[stream], *e)
	return nil
}

func (r *memoryLogs) List(ctx context.Context, stream models.LogStream, limit int) ([]models.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.data.logs[stream]
	var out []models.LogEntry
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, entries[i])
	}
	return out, nil
}

// --- users ---

type memoryUsers struct{ *memoryCore }

var _ UserRepository = (*memoryUsers)(nil)

func (r *memoryUsers) Create(ctx context.Context, u *models.User) error {
	defer r.lockWrite(ctx)()
	for _, existing := range r.data.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return ErrDuplicate
		}
	}
	ensureID(&u.ID)
	r.data.users[u.ID] = *u
	return nil
}

func (r *memoryUsers) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memoryUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.data.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUsers) List(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0, len(r.data.users))
	for _, u := range r.data.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memoryUsers) FirstByRole(ctx context.Context, role string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *models.User
	for _, u := range r.data.users {
		if u.Role != role {
			continue
		}
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			u := u
			found = &u
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// --- sessions ---

type memorySessions struct{ *memoryCore }

var _ SessionRepository = (*memorySessions)(nil)

func (r *memorySessions) Create(ctx context.Context, s *models.Session) error {
	defer r.lockWrite(ctx)()
	ensureID(&s.ID)
	r.data.sessions[s.ID] = *s
	return nil
}

func (r *memorySessions) Get(ctx context.Context, id primitive.ObjectID) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.data.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memorySessions) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.lockWrite(ctx)()
	if _, ok := r.data.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.data.sessions, id)
	return nil
}

func (r *memorySessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.lockWrite(ctx)()
	var n int64
	for id, s := range r.data.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.data.sessions, id)
			n++
		}
	}
	return n, nil
}
