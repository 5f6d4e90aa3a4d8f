package services

import (
	"context"
	"testing"
	"time"

	"backoffice/models"
	"backoffice/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.PaymentPending, models.PaymentUnpaid))
	assert.True(t, CanTransition(models.PaymentUnpaid, models.PaymentPaid))
	assert.True(t, CanTransition(models.PaymentPaid, models.PaymentCancelled))
	assert.False(t, CanTransition(models.PaymentPaid, models.PaymentUnpaid))
	assert.False(t, CanTransition(models.PaymentCancelled, models.PaymentPaid))
	assert.False(t, CanTransition(models.PaymentUnpaid, models.PaymentPending))
}

func TestCreateOrderPricesLinesWithoutTouchingStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "Reagent A", 10, 12.5)
	b, err := f.svc.Ledger.CreateProduct(ctx, f.admin, models.Product{Name: "Reagent B", Quantity: 4, PricePerPiece: 3, PricePerBox: 30})
	require.NoError(t, err)

	override := 9.99
	o, err := f.svc.Orders.CreateOrder(ctx, f.admin, models.CreateOrderInput{
		BuyerInfo: models.BuyerInfo{Name: "  Lab  "},
		Lines: []models.LineInput{
			{ProductID: a.ID.Hex(), Quantity: 2},
			{ProductID: b.ID.Hex(), Quantity: 1, Unit: models.UnitBox},
			{ProductID: b.ID.Hex(), Quantity: 1, Price: &override},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "Lab", o.BuyerInfo.Name)
	assert.Equal(t, 64.99, o.TotalAmount)
	assert.Equal(t, models.UnitPiece, o.Lines[0].Unit)
	assert.Equal(t, 30.0, o.Lines[1].Price)
	assert.Equal(t, 10, f.quantity(t, a))

	_, err = f.svc.Orders.CreateOrder(ctx, f.admin, models.CreateOrderInput{
		BuyerInfo:     models.BuyerInfo{Name: "Lab"},
		Lines:         []models.LineInput{line(a, 1)},
		PaymentStatus: models.PaymentPaid,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Orders.CreateOrder(ctx, f.admin, models.CreateOrderInput{BuyerInfo: models.BuyerInfo{Name: "Lab"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMarkPaidDeductsEveryLineAndRecordsOneSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 5)
	b := f.product(t, "B", 10, 2)
	o := f.order(t, line(a, 2), line(b, 3))

	paid, sale, err := f.svc.Orders.MarkPaid(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.True(t, paid.StockDeducted)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, o.TotalAmount, sale.TotalAmount)
	assert.Equal(t, 16.0, sale.TotalAmount)

	assert.Equal(t, 8, f.quantity(t, a))
	assert.Equal(t, 7, f.quantity(t, b))

	entries, err := f.store.Entries.ListByReference(ctx, o.ID.Hex())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, models.EntryOut, e.Type)
		assert.Equal(t, "Clinic One", e.CustomerName)
	}

	sales, err := f.svc.Sales.ListSales(ctx, models.SaleFilter{OwnerID: f.admin.OwnerID})
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

func TestMarkPaidTwiceKeepsOneSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 5)
	o := f.order(t, line(a, 4))

	_, first, err := f.svc.Orders.MarkPaid(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)
	_, second, err := f.svc.Orders.MarkPaid(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 6, f.quantity(t, a))
	sales, err := f.svc.Sales.ListSales(ctx, models.SaleFilter{OwnerID: f.admin.OwnerID})
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

func TestMarkPaidRollsBackOnInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 5, 1)
	b := f.product(t, "B", 1, 1)
	o := f.order(t, line(a, 1), line(b, 5))

	_, _, err := f.svc.Orders.MarkPaid(ctx, f.admin, o.ID.Hex())
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 5, f.quantity(t, a))
	assert.Equal(t, 1, f.quantity(t, b))

	got, err := f.svc.Orders.GetOrder(ctx, f.admin.OwnerID, o.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.PaymentStatus)
	assert.False(t, got.StockDeducted)

	entries, err := f.store.Entries.ListByReference(ctx, o.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, entries)
	sales, err := f.svc.Sales.ListSales(ctx, models.SaleFilter{OwnerID: f.admin.OwnerID})
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestCancelPaidOrderRestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 5)
	b := f.product(t, "B", 10, 2)
	o := f.order(t, line(a, 2), line(b, 3))

	_, _, err := f.svc.Orders.MarkPaid(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)

	cancelled, err := f.svc.Orders.Cancel(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCancelled, cancelled.PaymentStatus)
	assert.False(t, cancelled.StockDeducted)
	assert.Equal(t, 10, f.quantity(t, a))
	assert.Equal(t, 10, f.quantity(t, b))

	_, err = f.svc.Orders.Cancel(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 10, f.quantity(t, a))
	assert.Equal(t, 10, f.quantity(t, b))

	entries, err := f.store.Entries.ListByReference(ctx, o.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	sales, err := f.svc.Sales.ListSales(ctx, models.SaleFilter{OwnerID: f.admin.OwnerID})
	require.NoError(t, err)
	assert.Empty(t, sales)
	sales, err = f.svc.Sales.ListSales(ctx, models.SaleFilter{OwnerID: f.admin.OwnerID, IncludeVoided: true})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.True(t, sales[0].Voided)

	r, err := f.svc.Ledger.Reconcile(ctx, a.ID.Hex())
	require.NoError(t, err)
	assert.True(t, r.Consistent)
}

func TestCancelUnpaidOrderLeavesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 5)
	o := f.order(t, line(a, 2))

	_, err := f.svc.Orders.MarkUnpaid(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)
	_, err = f.svc.Orders.Cancel(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 10, f.quantity(t, a))

	_, _, err = f.svc.Orders.MarkPaid(ctx, f.admin, o.ID.Hex())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReplaceLinesAndDeleteRespectStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 5)
	o := f.order(t, line(a, 1))

	updated, err := f.svc.Orders.ReplaceLines(ctx, f.admin, o.ID.Hex(), []models.LineInput{line(a, 3)})
	require.NoError(t, err)
	assert.Equal(t, 15.0, updated.TotalAmount)

	_, _, err = f.svc.Orders.MarkPaid(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)

	_, err = f.svc.Orders.ReplaceLines(ctx, f.admin, o.ID.Hex(), []models.LineInput{line(a, 1)})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, f.svc.Orders.DeleteOrder(ctx, f.admin, o.ID.Hex()), ErrInvalidTransition)

	_, err = f.svc.Orders.Cancel(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)
	require.NoError(t, f.svc.Orders.DeleteOrder(ctx, f.admin, o.ID.Hex()))
	_, err = f.svc.Orders.GetOrder(ctx, f.admin.OwnerID, o.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrdersAreScopedToTheirOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 5)
	o := f.order(t, line(a, 1))

	u, err := f.svc.Auth.Register(ctx, f.admin, models.RegisterInput{Username: "emp", Password: "secret123", Name: "Emp"})
	require.NoError(t, err)
	emp := actorFor(u)

	_, err = f.svc.Orders.GetOrder(ctx, emp.OwnerID, o.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = f.svc.Orders.MarkPaid(ctx, emp, o.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestOrderExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 5)
	input := models.CreateOrderInput{BuyerInfo: models.BuyerInfo{Name: "Walk-in"}, Lines: []models.LineInput{line(a, 1)}}

	confirmed, err := f.svc.Orders.SubmitRequest(ctx, f.admin.OwnerID, input)
	require.NoError(t, err)
	pending, err := f.svc.Orders.SubmitRequest(ctx, f.admin.OwnerID, input)
	require.NoError(t, err)
	assert.NotEmpty(t, pending.ViewToken)
	assert.NotEqual(t, confirmed.ViewToken, pending.ViewToken)

	_, order, err := f.svc.Orders.ConfirmRequest(ctx, f.admin, confirmed.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, confirmed.ID.Hex(), order.RequestOrderID)

	view, err := f.svc.Orders.GetRequestByToken(ctx, pending.ViewToken)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), view.RemainingSeconds)
	assert.Equal(t, models.ConfirmationPending, view.Status)

	f.clock.Advance(time.Hour + time.Second)

	view, err = f.svc.Orders.GetRequestByToken(ctx, pending.ViewToken)
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.RemainingSeconds)
	assert.Equal(t, models.ConfirmationUnconfirmed, view.Status)

	_, _, err = f.svc.Orders.ConfirmRequest(ctx, f.admin, pending.ID.Hex())
	assert.ErrorIs(t, err, ErrRequestExpired)

	n, err := f.svc.Orders.ExpireRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.svc.Orders.GetRequest(ctx, f.admin.OwnerID, pending.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationUnconfirmed, got.Status)
	got, err = f.svc.Orders.GetRequest(ctx, f.admin.OwnerID, confirmed.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationConfirmed, got.Status)

	n, err = f.svc.Orders.ExpireRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRejectRequestOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 5)
	ro, err := f.svc.Orders.SubmitRequest(ctx, f.admin.OwnerID, models.CreateOrderInput{
		BuyerInfo: models.BuyerInfo{Name: "Walk-in"},
		Lines:     []models.LineInput{line(a, 1)},
	})
	require.NoError(t, err)

	rejected, err := f.svc.Orders.RejectRequest(ctx, f.admin, ro.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationUnconfirmed, rejected.Status)

	_, err = f.svc.Orders.RejectRequest(ctx, f.admin, ro.ID.Hex())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, _, err = f.svc.Orders.ConfirmRequest(ctx, f.admin, ro.ID.Hex())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitRequestNeedsKnownOwner(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 10, 5)
	_, err := f.svc.Orders.SubmitRequest(context.Background(), "65f0c0ffee0000000000beef", models.CreateOrderInput{
		BuyerInfo: models.BuyerInfo{Name: "Walk-in"},
		Lines:     []models.LineInput{line(a, 1)},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestOrdersAlwaysPayCatalogPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kit := f.product(t, "Test kit", 10, 100)

	cheap := 0.01
	_, err := f.svc.Orders.SubmitRequest(ctx, f.admin.OwnerID, models.CreateOrderInput{
		BuyerInfo: models.BuyerInfo{Name: "Walk-in"},
		Lines:     []models.LineInput{{ProductID: kit.ID.Hex(), Quantity: 2, Price: &cheap}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	ro, err := f.svc.Orders.SubmitRequest(ctx, f.admin.OwnerID, models.CreateOrderInput{
		BuyerInfo: models.BuyerInfo{Name: "Walk-in"},
		Lines:     []models.LineInput{line(kit, 2)},
	})
	require.NoError(t, err)
	assert.Equal(t, 200.0, ro.TotalAmount)
	assert.Equal(t, 100.0, ro.Lines[0].Price)

	_, order, err := f.svc.Orders.ConfirmRequest(ctx, f.admin, ro.ID.Hex())
	require.NoError(t, err)
	_, sale, err := f.svc.Orders.MarkPaid(ctx, f.admin, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 200.0, sale.TotalAmount)
}

func TestOperatorPriceIsRoundedToCents(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 10, 5)

	price := 1.005
	o, err := f.svc.Orders.CreateOrder(context.Background(), f.admin, models.CreateOrderInput{
		BuyerInfo: models.BuyerInfo{Name: "Lab"},
		Lines:     []models.LineInput{{ProductID: a.ID.Hex(), Quantity: 3, Price: &price}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.01, o.Lines[0].Price)
	assert.Equal(t, 3.03, o.TotalAmount)
}

func TestExpireRequestsLogsOncePerSweep(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	store := repository.NewMemoryStore()
	svc := New(store, nil, zap.New(core), Options{RequestOrderTTL: time.Hour, JWTSecret: []byte("test-secret"), Now: clock.Now})
	ctx := context.Background()

	u, err := svc.Auth.CreateAdmin(ctx, "admin", "secret123", "Admin")
	require.NoError(t, err)
	admin := actorFor(u)
	p, err := svc.Ledger.CreateProduct(ctx, admin, models.Product{Name: "A", Quantity: 3, PricePerPiece: 1})
	require.NoError(t, err)
	_, err = svc.Orders.SubmitRequest(ctx, admin.OwnerID, models.CreateOrderInput{
		BuyerInfo: models.BuyerInfo{Name: "Walk-in"},
		Lines:     []models.LineInput{line(p, 1)},
	})
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	n, err := svc.Orders.ExpireRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, logs.FilterMessage("request orders expired").Len())

	_, err = svc.Orders.ExpireRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("request orders expired").Len())
}
