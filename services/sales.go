package services

import (
	"context"
	"sort"
	"time"

	"backoffice/models"
	"backoffice/repository"
	"backoffice/utils"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dashboardWindow = 30 * 24 * time.Hour

type SalesService struct {
	store    *repository.Store
	ledger   *StockLedger
	location *time.Location
	now      func() time.Time
}

func (s *SalesService) ListSales(ctx context.Context, f models.SaleFilter) ([]models.Sale, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, invalid("range ends before it starts")
	}
	sales, err := s.store.Sales.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if sales == nil {
		sales = []models.Sale{}
	}
	return sales, nil
}

// SalesReport totals the non-voided sales of an owner between from and to, per day and per product.
func (s *SalesService) SalesReport(ctx context.Context, ownerID string, from, to time.Time) (*models.SalesReport, error) {
	sales, err := s.ListSales(ctx, models.SaleFilter{OwnerID: ownerID, From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	type productTotal struct {
		id       primitive.ObjectID
		name     string
		quantity int
		revenue  decimal.Decimal
	}
	type dayTotal struct {
		count  int
		amount decimal.Decimal
	}
	days := map[string]*dayTotal{}
	products := map[string]*productTotal{}
	revenue := decimal.Zero

	for _, sale := range sales {
		amount := decimal.NewFromFloat(sale.TotalAmount)
		revenue = revenue.Add(amount)

		key := sale.Date.In(s.location).Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &dayTotal{}
			days[key] = d
		}
		d.count++
		d.amount = d.amount.Add(amount)

		for _, line := range sale.Lines {
			pk := line.ProductID.Hex()
			p, ok := products[pk]
			if !ok {
				p = &productTotal{id: line.ProductID, name: line.Name}
				products[pk] = p
			}
			p.quantity += line.Quantity
			p.revenue = p.revenue.Add(utils.LineAmount(line.Quantity, line.Price))
		}
	}

	report := &models.SalesReport{
		From:      from,
		To:        to,
		Count:     len(sales),
		Revenue:   utils.SumMoney(revenue),
		ByDay:     make([]models.DailySales, 0, len(days)),
		ByProduct: make([]models.ProductSales, 0, len(products)),
	}
	for day, d := range days {
		report.ByDay = append(report.ByDay, models.DailySales{Day: day, Count: d.count, Amount: utils.SumMoney(d.amount)})
	}
	sort.Slice(report.ByDay, func(i, j int) bool { return report.ByDay[i].Day < report.ByDay[j].Day })

	for _, p := range products {
		report.ByProduct = append(report.ByProduct, models.ProductSales{
			ProductID: p.id,
			Name:      p.name,
			Quantity:  p.quantity,
			Revenue:   utils.SumMoney(p.revenue),
		})
	}
	sort.Slice(report.ByProduct, func(i, j int) bool {
		a, b := report.ByProduct[i], report.ByProduct[j]
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.Name < b.Name
	})
	return report, nil
}

// Dashboard combines the stock summary, the last 30 days of sales and the order counts of an owner.
func (s *SalesService) Dashboard(ctx context.Context, ownerID string) (*models.Dashboard, error) {
	summary, err := s.ledger.Summary(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	report, err := s.SalesReport(ctx, ownerID, now.Add(-dashboardWindow), now)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Orders.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.Requests.CountPending(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &models.Dashboard{
		Stock:          *summary,
		Last30Days:     *report,
		OrdersByStatus: counts,
		PendingRequest: pending,
	}, nil
}
