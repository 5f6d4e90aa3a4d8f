package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"backoffice/cache"
	"backoffice/models"
	"backoffice/repository"
	"backoffice/utils"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// StockLedger owns product quantities. Every change of a quantity goes through it and leaves
// exactly one journal entry.
type StockLedger struct {
	store        *repository.Store
	cache        cache.Cache
	cacheTTL     time.Duration
	expiryWindow time.Duration
	audit        *AuditLog
	metrics      Recorder
	logger       *zap.Logger
	now          func() time.Time
}

func (l *StockLedger) CreateProduct(ctx context.Context, actor models.Actor, p models.Product) (*models.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, invalid("product name is required")
	}
	if p.Quantity < 0 || p.CriticalStock < 0 {
		return nil, invalid("quantity and critical stock must not be negative")
	}
	if p.PricePerBox < 0 || p.PricePerTest < 0 || p.PricePerPiece < 0 {
		return nil, invalid("prices must not be negative")
	}

	now := l.now()
	p.ID = primitive.NilObjectID
	p.InitialQuantity = p.Quantity
	p.CreatedAt = now
	p.UpdatedAt = now

	err := l.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.store.Products.Create(ctx, &p); err != nil {
			return err
		}
		return l.audit.Audit(ctx, actor, "product_created", p.ID.Hex())
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	l.invalidate(ctx)
	return &p, nil
}

func (l *StockLedger) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	oid, err := parseID(id, "product")
	if err != nil {
		return nil, err
	}
	p, err := l.store.Products.Get(ctx, oid)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return p, nil
}

func (l *StockLedger) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	switch f.SortBy {
	case "", "name", "quantity", "expiry":
	default:
		return nil, invalid("unknown sort %q", f.SortBy)
	}
	products, err := l.store.Products.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// UpdateProduct changes catalog fields only; quantities move through Restock, Deduct and Reverse.
func (l *StockLedger) UpdateProduct(ctx context.Context, actor models.Actor, id string, upd models.UpdateProduct) (*models.Product, error) {
	oid, err := parseID(id, "product")
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, invalid("product name is required")
		}
		upd.Name = &name
	}
	if upd.CriticalStock != nil && *upd.CriticalStock < 0 {
		return nil, invalid("critical stock must not be negative")
	}
	for _, price := range []*float64{upd.PricePerBox, upd.PricePerTest, upd.PricePerPiece} {
		if price != nil && *price < 0 {
			return nil, invalid("prices must not be negative")
		}
	}

	var p *models.Product
	err = l.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = l.store.Products.Update(ctx, oid, upd, l.now()); err != nil {
			return notFound(err, "product", id)
		}
		return l.audit.Audit(ctx, actor, "product_updated", id)
	})
	if err != nil {
		return nil, err
	}
	l.invalidate(ctx)
	return p, nil
}

// DeleteProduct removes the product. Its journal entries are kept.
func (l *StockLedger) DeleteProduct(ctx context.Context, actor models.Actor, id string) error {
	oid, err := parseID(id, "product")
	if err != nil {
		return err
	}
	err = l.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.store.Products.Delete(ctx, oid); err != nil {
			return notFound(err, "product", id)
		}
		return l.audit.Audit(ctx, actor, "product_deleted", id)
	})
	if err != nil {
		return err
	}
	l.invalidate(ctx)
	return nil
}

// Restock adds stock and journals one IN entry in the same transaction.
func (l *StockLedger) Restock(ctx context.Context, actor models.Actor, productID string, in models.RestockInput) (*models.StockEntry, error) {
	oid, err := parseID(productID, "product")
	if err != nil {
		return nil, err
	}
	if in.QuantityAdded <= 0 {
		return nil, invalid("quantity added must be positive")
	}

	now := l.now()
	date := now
	if in.RestockDate != nil {
		date = *in.RestockDate
	}

	var entry *models.StockEntry
	err = l.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := l.store.Products.AdjustQuantity(ctx, oid, in.QuantityAdded, repository.AdjustOptions{
			ExpiryDate: in.ExpiryDate,
			At:         now,
		})
		if err != nil {
			return notFound(err, "product", productID)
		}
		entry = &models.StockEntry{
			ProductID:   oid,
			Type:        models.EntryIn,
			Quantity:    in.QuantityAdded,
			StockBefore: p.Quantity - in.QuantityAdded,
			StockAfter:  p.Quantity,
			BatchID:     fmt.Sprintf("batch_%d", now.UnixMilli()),
			ExpiryDate:  in.ExpiryDate,
			Date:        date,
			Reason:      models.ReasonRestock,
			ActorID:     actor.UserID,
			OwnerID:     actor.OwnerID,
			CreatedAt:   now,
		}
		if err := l.store.Entries.Append(ctx, entry); err != nil {
			return err
		}
		return l.audit.Audit(ctx, actor, "product_restocked", productID)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("restock",
		zap.String("product", productID),
		zap.Int("delta", in.QuantityAdded),
		zap.Int("stock", entry.StockAfter))
	l.metrics.StockMoved(models.EntryIn, in.QuantityAdded)
	l.invalidate(ctx)
	return entry, nil
}

// Deduct removes quantity for an order. It never takes a product below zero: a short product
// fails with ErrInsufficientStock and nothing is written. Call it inside the order transaction.
func (l *StockLedger) Deduct(ctx context.Context, actor models.Actor, line models.OrderLine, orderID, customerName string) (*models.StockEntry, error) {
	if line.Quantity <= 0 {
		return nil, invalid("quantity removed must be positive")
	}
	now := l.now()
	p, err := l.store.Products.AdjustQuantity(ctx, line.ProductID, -line.Quantity, repository.AdjustOptions{
		RequireAvailable: true,
		At:               now,
	})
	if errors.Is(err, repository.ErrInsufficient) {
		return nil, fmt.Errorf("%w: %s needs %d", ErrInsufficientStock, line.Name, line.Quantity)
	}
	if err != nil {
		return nil, notFound(err, "product", line.ProductID.Hex())
	}

	entry := &models.StockEntry{
		ProductID:    line.ProductID,
		Type:         models.EntryOut,
		Quantity:     line.Quantity,
		StockBefore:  p.Quantity + line.Quantity,
		StockAfter:   p.Quantity,
		Date:         now,
		Reason:       models.ReasonOrder,
		ReferenceID:  orderID,
		CustomerName: customerName,
		ActorID:      actor.UserID,
		OwnerID:      actor.OwnerID,
		CreatedAt:    now,
	}
	if err := l.store.Entries.Append(ctx, entry); err != nil {
		return nil, err
	}
	l.logger.Info("deduct",
		zap.String("product", line.ProductID.Hex()),
		zap.Int("delta", -line.Quantity),
		zap.String("reference", orderID))
	return entry, nil
}

// Reverse puts back everything an order took that has not been put back yet, one IN entry per
// product. Running it twice restores nothing the second time.
func (l *StockLedger) Reverse(ctx context.Context, actor models.Actor, orderID string) ([]models.StockEntry, error) {
	entries, err := l.store.Entries.ListByReference(ctx, orderID)
	if err != nil {
		return nil, err
	}

	outstanding := map[string]int{}
	var order []models.StockEntry
	for _, e := range entries {
		key := e.ProductID.Hex()
		switch {
		case e.Type == models.EntryOut && e.Reason == models.ReasonOrder:
			if _, seen := outstanding[key]; !seen {
				order = append(order, e)
			}
			outstanding[key] += e.Quantity
		case e.Type == models.EntryIn && e.Reason == models.ReasonCancellation:
			outstanding[key] -= e.Quantity
		}
	}

	now := l.now()
	var reversed []models.StockEntry
	for _, out := range order {
		qty := outstanding[out.ProductID.Hex()]
		if qty <= 0 {
			continue
		}
		p, err := l.store.Products.AdjustQuantity(ctx, out.ProductID, qty, repository.AdjustOptions{At: now})
		if errors.Is(err, repository.ErrNotFound) {
			l.logger.Warn("reverse skipped deleted product",
				zap.String("product", out.ProductID.Hex()),
				zap.String("reference", orderID))
			continue
		}
		if err != nil {
			return nil, err
		}
		entry := models.StockEntry{
			ProductID:    out.ProductID,
			Type:         models.EntryIn,
			Quantity:     qty,
			StockBefore:  p.Quantity - qty,
			StockAfter:   p.Quantity,
			Date:         now,
			Reason:       models.ReasonCancellation,
			ReferenceID:  orderID,
			CustomerName: out.CustomerName,
			ActorID:      actor.UserID,
			OwnerID:      actor.OwnerID,
			CreatedAt:    now,
		}
		if err := l.store.Entries.Append(ctx, &entry); err != nil {
			return nil, err
		}
		l.logger.Info("reverse",
			zap.String("product", out.ProductID.Hex()),
			zap.Int("delta", qty),
			zap.String("reference", orderID))
		reversed = append(reversed, entry)
	}
	return reversed, nil
}

// WriteOff removes damaged or expired stock outside any order. Like Deduct it never goes below
// zero.
func (l *StockLedger) WriteOff(ctx context.Context, actor models.Actor, productID string, in models.WriteOffInput) (*models.StockEntry, error) {
	oid, err := parseID(productID, "product")
	if err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, invalid("quantity written off must be positive")
	}

	now := l.now()
	var entry *models.StockEntry
	err = l.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := l.store.Products.AdjustQuantity(ctx, oid, -in.Quantity, repository.AdjustOptions{
			RequireAvailable: true,
			At:               now,
		})
		if errors.Is(err, repository.ErrInsufficient) {
			return fmt.Errorf("%w: cannot write off %d", ErrInsufficientStock, in.Quantity)
		}
		if err != nil {
			return notFound(err, "product", productID)
		}
		entry = &models.StockEntry{
			ProductID:   oid,
			Type:        models.EntryOut,
			Quantity:    in.Quantity,
			StockBefore: p.Quantity + in.Quantity,
			StockAfter:  p.Quantity,
			Date:        now,
			Reason:      models.ReasonWriteOff,
			ReferenceID: fmt.Sprintf("writeoff_%d", now.UnixMilli()),
			Note:        strings.TrimSpace(in.Note),
			ActorID:     actor.UserID,
			OwnerID:     actor.OwnerID,
			CreatedAt:   now,
		}
		if err := l.store.Entries.Append(ctx, entry); err != nil {
			return err
		}
		return l.audit.Audit(ctx, actor, "product_written_off", productID)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("write-off",
		zap.String("product", productID),
		zap.Int("delta", -in.Quantity),
		zap.Int("stock", entry.StockAfter))
	l.metrics.StockMoved(models.EntryOut, in.Quantity)
	l.invalidate(ctx)
	return entry, nil
}

// Categories lists the product categories in use with their product counts, by name.
func (l *StockLedger) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	products, err := l.store.Products.List(ctx, models.ProductFilter{SortBy: "name"})
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, p := range products {
		counts[p.Category]++
	}
	out := make([]models.CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.CategoryCount{Category: name, Products: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// History returns the journal of a product, newest first.
func (l *StockLedger) History(ctx context.Context, productID string) ([]models.StockEntry, error) {
	oid, err := parseID(productID, "product")
	if err != nil {
		return nil, err
	}
	entries, err := l.store.Entries.ListByProduct(ctx, oid)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.StockEntry{}
	}
	return entries, nil
}

// Reconcile checks the stored quantity against initial quantity plus the journal.
func (l *StockLedger) Reconcile(ctx context.Context, productID string) (*models.Reconciliation, error) {
	p, err := l.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	entries, err := l.store.Entries.ListByProduct(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	r := &models.Reconciliation{
		ProductID:       p.ID,
		Quantity:        p.Quantity,
		InitialQuantity: p.InitialQuantity,
	}
	for _, e := range entries {
		switch e.Type {
		case models.EntryIn:
			r.TotalIn += e.Quantity
		case models.EntryOut:
			r.TotalOut += e.Quantity
		}
	}
	r.Expected = r.InitialQuantity + r.TotalIn - r.TotalOut
	r.Consistent = r.Expected == r.Quantity
	return r, nil
}

func (l *StockLedger) Classify(p models.Product) models.StockClassification {
	return ClassifyStock(p, l.now(), l.expiryWindow)
}

// ClassifyStock reports the stock level and the expiry state of p at now. A product with nothing
// left is out of stock whatever its critical level.
func ClassifyStock(p models.Product, now time.Time, window time.Duration) models.StockClassification {
	c := models.StockClassification{Level: models.StockIn, Expiry: models.ExpiryUnknown}
	switch {
	case p.Quantity <= 0:
		c.Level = models.StockOut
	case p.Quantity <= p.CriticalStock:
		c.Level = models.StockLow
	}
	if p.ExpiryDate != nil {
		switch {
		case p.ExpiryDate.Before(now):
			c.Expiry = models.ExpiryPassed
		case p.ExpiryDate.Before(now.Add(window)):
			c.Expiry = models.ExpiryNear
		default:
			c.Expiry = models.ExpiryOK
		}
	}
	return c
}

// Summary is served from the cache while no ledger write happened since it was computed.
func (l *StockLedger) Summary(ctx context.Context) (*models.StockSummary, error) {
	var cached models.StockSummary
	hit, err := l.cache.Get(ctx, cache.StockSummaryKey, &cached)
	if err != nil {
		l.logger.Warn("stock summary cache read failed", zap.Error(err))
	}
	if hit {
		return &cached, nil
	}

	products, err := l.store.Products.List(ctx, models.ProductFilter{SortBy: "name"})
	if err != nil {
		return nil, err
	}
	now := l.now()
	s := &models.StockSummary{
		TotalProducts:  len(products),
		LowStock:       []models.Product{},
		OutOfStock:     []models.Product{},
		NearlyExpiring: []models.Product{},
		Expired:        []models.Product{},
		GeneratedAt:    now,
	}
	var values []decimal.Decimal
	for _, p := range products {
		c := ClassifyStock(p, now, l.expiryWindow)
		switch c.Level {
		case models.StockLow:
			s.LowStock = append(s.LowStock, p)
		case models.StockOut:
			s.OutOfStock = append(s.OutOfStock, p)
		}
		switch c.Expiry {
		case models.ExpiryNear:
			s.NearlyExpiring = append(s.NearlyExpiring, p)
		case models.ExpiryPassed:
			s.Expired = append(s.Expired, p)
		}
		if p.Quantity > 0 {
			values = append(values, utils.LineAmount(p.Quantity, p.PricePerPiece))
		}
	}
	s.StockValue = utils.SumMoney(values...)

	if err := l.cache.Set(ctx, cache.StockSummaryKey, s, l.cacheTTL); err != nil {
		l.logger.Warn("stock summary cache write failed", zap.Error(err))
	}
	return s, nil
}

func (l *StockLedger) invalidate(ctx context.Context) {
	if err := l.cache.Delete(ctx, cache.StockSummaryKey); err != nil {
		l.logger.Warn("stock summary cache invalidation failed", zap.Error(err))
	}
}
