package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"backoffice/models"
	"backoffice/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *Services
	store *repository.Store
	clock *testClock
	admin models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	store := repository.NewMemoryStore()
	svc := New(store, nil, zap.NewNop(), Options{
		RequestOrderTTL: time.Hour,
		JWTSecret:       []byte("test-secret"),
		Now:             clock.Now,
	})
	f := &fixture{svc: svc, store: store, clock: clock}

	u, err := svc.Auth.CreateAdmin(context.Background(), "admin", "secret123", "Admin")
	require.NoError(t, err)
	f.admin = actorFor(u)
	return f
}

func actorFor(u *models.User) models.Actor {
	return models.Actor{UserID: u.ID.Hex(), UserName: u.Username, Role: u.Role, OwnerID: u.ID.Hex()}
}

func (f *fixture) product(t *testing.T, name string, qty int, price float64) *models.Product {
	t.Helper()
	p, err := f.svc.Ledger.CreateProduct(context.Background(), f.admin, models.Product{
		Name:          name,
		Category:      "reagents",
		Quantity:      qty,
		CriticalStock: 2,
		PricePerPiece: price,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) quantity(t *testing.T, p *models.Product) int {
	t.Helper()
	got, err := f.svc.Ledger.GetProduct(context.Background(), p.ID.Hex())
	require.NoError(t, err)
	return got.Quantity
}

func (f *fixture) order(t *testing.T, lines ...models.LineInput) *models.Order {
	t.Helper()
	o, err := f.svc.Orders.CreateOrder(context.Background(), f.admin, models.CreateOrderInput{
		BuyerInfo: models.BuyerInfo{Name: "Clinic One", Contact: "+992 900 000 000"},
		Lines:     lines,
	})
	require.NoError(t, err)
	return o
}

func line(p *models.Product, qty int) models.LineInput {
	return models.LineInput{ProductID: p.ID.Hex(), Quantity: qty}
}
