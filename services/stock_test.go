package services

import (
	"context"
	"testing"
	"time"

	"backoffice/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestockAddsQuantityAndOneEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Glucose strips", 10, 1.5)

	expiry := f.clock.Now().AddDate(1, 0, 0)
	entry, err := f.svc.Ledger.Restock(ctx, f.admin, p.ID.Hex(), models.RestockInput{QuantityAdded: 5, ExpiryDate: &expiry})
	require.NoError(t, err)

	assert.Equal(t, 15, f.quantity(t, p))
	assert.Equal(t, models.EntryIn, entry.Type)
	assert.Equal(t, 10, entry.StockBefore)
	assert.Equal(t, 15, entry.StockAfter)
	assert.Contains(t, entry.BatchID, "batch_")

	history, err := f.svc.Ledger.History(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 5, history[0].Quantity)

	got, err := f.svc.Ledger.GetProduct(ctx, p.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, got.ExpiryDate)
	assert.True(t, got.ExpiryDate.Equal(expiry))

	r, err := f.svc.Ledger.Reconcile(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.True(t, r.Consistent)
	assert.Equal(t, 15, r.Expected)
}

func TestRestockRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Swabs", 3, 0.2)

	_, err := f.svc.Ledger.Restock(ctx, f.admin, p.ID.Hex(), models.RestockInput{QuantityAdded: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Ledger.Restock(ctx, f.admin, "not-an-id", models.RestockInput{QuantityAdded: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Ledger.Restock(ctx, f.admin, "65f0c0ffee0000000000beef", models.RestockInput{QuantityAdded: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 3, f.quantity(t, p))
}

func TestWriteOffNeverGoesBelowZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Buffer", 4, 2)

	entry, err := f.svc.Ledger.WriteOff(ctx, f.admin, p.ID.Hex(), models.WriteOffInput{Quantity: 3, Note: "expired batch"})
	require.NoError(t, err)
	assert.Equal(t, models.ReasonWriteOff, entry.Reason)
	assert.Equal(t, 1, f.quantity(t, p))

	_, err = f.svc.Ledger.WriteOff(ctx, f.admin, p.ID.Hex(), models.WriteOffInput{Quantity: 2})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 1, f.quantity(t, p))

	history, err := f.svc.Ledger.History(ctx, p.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestClassifyStock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	window := 30 * 24 * time.Hour
	soon := now.Add(10 * 24 * time.Hour)
	past := now.Add(-time.Hour)
	later := now.Add(90 * 24 * time.Hour)

	tests := []struct {
		name   string
		p      models.Product
		level  models.StockLevel
		expiry models.StockLevel
	}{
		{"below critical", models.Product{Quantity: 5, CriticalStock: 10}, models.StockLow, models.ExpiryUnknown},
		{"empty", models.Product{Quantity: 0, CriticalStock: 10}, models.StockOut, models.ExpiryUnknown},
		{"above critical", models.Product{Quantity: 15, CriticalStock: 10}, models.StockIn, models.ExpiryUnknown},
		{"at critical", models.Product{Quantity: 10, CriticalStock: 10}, models.StockLow, models.ExpiryUnknown},
		{"nearly expiring", models.Product{Quantity: 15, ExpiryDate: &soon}, models.StockIn, models.ExpiryNear},
		{"expired", models.Product{Quantity: 15, ExpiryDate: &past}, models.StockIn, models.ExpiryPassed},
		{"fresh", models.Product{Quantity: 15, ExpiryDate: &later}, models.StockIn, models.ExpiryOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyStock(tt.p, now, window)
			assert.Equal(t, tt.level, c.Level)
			assert.Equal(t, tt.expiry, c.Expiry)
		})
	}
}

func TestSummaryValuesStockAndTracksChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "Pipettes", 10, 2.5)
	f.product(t, "Gloves", 1, 4)
	f.product(t, "Masks", 0, 1)

	s, err := f.svc.Ledger.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalProducts)
	assert.Equal(t, 29.0, s.StockValue)
	assert.Len(t, s.LowStock, 1)
	assert.Len(t, s.OutOfStock, 1)

	_, err = f.svc.Ledger.Restock(ctx, f.admin, a.ID.Hex(), models.RestockInput{QuantityAdded: 2})
	require.NoError(t, err)
	s, err = f.svc.Ledger.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 34.0, s.StockValue)
}

func TestListProductsAndCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "Zinc test", 1, 1)
	f.product(t, "Albumin", 9, 1)
	_, err := f.svc.Ledger.CreateProduct(ctx, f.admin, models.Product{Name: "Tubes", Category: "consumables", Quantity: 5})
	require.NoError(t, err)

	list, err := f.svc.Ledger.ListProducts(ctx, models.ProductFilter{Category: "reagents", SortBy: "name"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Albumin", list[0].Name)

	list, err = f.svc.Ledger.ListProducts(ctx, models.ProductFilter{Search: "zinc"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.svc.Ledger.ListProducts(ctx, models.ProductFilter{SortBy: "price"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	cats, err := f.svc.Ledger.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryCount{{Category: "consumables", Products: 1}, {Category: "reagents", Products: 2}}, cats)
}

func TestUpdateProductLeavesQuantityAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Lancets", 7, 1)

	name := "  Safety lancets "
	price := 1.25
	got, err := f.svc.Ledger.UpdateProduct(ctx, f.admin, p.ID.Hex(), models.UpdateProduct{Name: &name, PricePerPiece: &price})
	require.NoError(t, err)
	assert.Equal(t, "Safety lancets", got.Name)
	assert.Equal(t, 1.25, got.PricePerPiece)
	assert.Equal(t, 7, got.Quantity)

	require.NoError(t, f.svc.Ledger.DeleteProduct(ctx, f.admin, p.ID.Hex()))
	_, err = f.svc.Ledger.GetProduct(ctx, p.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}
