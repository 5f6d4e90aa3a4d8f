package services

import (
	"context"
	"testing"
	"time"

	"backoffice/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesReportGroupsByDayAndProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "Alpha", 50, 10)
	b := f.product(t, "Beta", 50, 4)
	start := f.clock.Now()

	o1 := f.order(t, line(a, 1), line(b, 2))
	_, _, err := f.svc.Orders.MarkPaid(ctx, f.admin, o1.ID.Hex())
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	o2 := f.order(t, line(b, 5))
	_, _, err = f.svc.Orders.MarkPaid(ctx, f.admin, o2.ID.Hex())
	require.NoError(t, err)

	o3 := f.order(t, line(a, 3))
	_, _, err = f.svc.Orders.MarkPaid(ctx, f.admin, o3.ID.Hex())
	require.NoError(t, err)
	_, err = f.svc.Orders.Cancel(ctx, f.admin, o3.ID.Hex())
	require.NoError(t, err)

	report, err := f.svc.Sales.SalesReport(ctx, f.admin.OwnerID, start.Add(-time.Hour), f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count)
	assert.Equal(t, 38.0, report.Revenue)

	require.Len(t, report.ByDay, 2)
	assert.Equal(t, start.Format("2006-01-02"), report.ByDay[0].Day)
	assert.Equal(t, 18.0, report.ByDay[0].Amount)
	assert.Equal(t, 20.0, report.ByDay[1].Amount)

	require.Len(t, report.ByProduct, 2)
	assert.Equal(t, "Beta", report.ByProduct[0].Name)
	assert.Equal(t, 7, report.ByProduct[0].Quantity)
	assert.Equal(t, 28.0, report.ByProduct[0].Revenue)
	assert.Equal(t, "Alpha", report.ByProduct[1].Name)
}

func TestListSalesRejectsBackwardsRange(t *testing.T) {
	f := newFixture(t)
	from := f.clock.Now()
	to := from.Add(-time.Hour)
	_, err := f.svc.Sales.ListSales(context.Background(), models.SaleFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "Alpha", 3, 10)
	o := f.order(t, line(a, 2))
	_, _, err := f.svc.Orders.MarkPaid(ctx, f.admin, o.ID.Hex())
	require.NoError(t, err)
	f.order(t, line(a, 1))
	_, err = f.svc.Orders.SubmitRequest(ctx, f.admin.OwnerID, models.CreateOrderInput{
		BuyerInfo: models.BuyerInfo{Name: "Walk-in"},
		Lines:     []models.LineInput{line(a, 1)},
	})
	require.NoError(t, err)

	d, err := f.svc.Sales.Dashboard(ctx, f.admin.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Stock.TotalProducts)
	assert.Len(t, d.Stock.LowStock, 1)
	assert.Equal(t, 20.0, d.Last30Days.Revenue)
	assert.Equal(t, 1, d.OrdersByStatus[models.PaymentPaid])
	assert.Equal(t, 1, d.OrdersByStatus[models.PaymentPending])
	assert.Equal(t, 1, d.PendingRequest)
}

func TestCustomersMergeSharedAdminList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Auth.Register(ctx, f.admin, models.RegisterInput{Username: "emp", Password: "secret123", Name: "Emp"})
	require.NoError(t, err)
	emp := actorFor(u)

	for _, name := range []string{"Acme Clinic", "Beta Lab"} {
		_, err := f.svc.Customers.CreateCustomer(ctx, f.admin, models.Customer{Name: name, City: "Dushanbe"})
		require.NoError(t, err)
	}
	own, err := f.svc.Customers.CreateCustomer(ctx, emp, models.Customer{Name: "  acme clinic ", Contact: "+992"})
	require.NoError(t, err)

	list, err := f.svc.Customers.ListCustomers(ctx, emp.OwnerID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, own.ID, list[0].ID)
	assert.Equal(t, "Beta Lab", list[1].Name)

	adminList, err := f.svc.Customers.ListCustomers(ctx, f.admin.OwnerID)
	require.NoError(t, err)
	assert.Len(t, adminList, 2)

	_, err = f.svc.Customers.UpdateCustomer(ctx, emp, adminList[0].ID.Hex(), models.Customer{Name: "Taken"})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, f.svc.Customers.DeleteCustomer(ctx, emp, own.ID.Hex()))
	_, err = f.svc.Customers.CreateCustomer(ctx, emp, models.Customer{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuditTrailRecordsChangesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "Alpha", 3, 10)
	_, err := f.svc.Ledger.Restock(ctx, f.admin, a.ID.Hex(), models.RestockInput{QuantityAdded: 1})
	require.NoError(t, err)

	entries, err := f.svc.Audit.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "product_restocked", entries[0].Action)
	assert.Equal(t, "product_created", entries[1].Action)
	assert.Equal(t, "admin", entries[0].UserName)

	entries, err = f.svc.Audit.ListAudit(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
