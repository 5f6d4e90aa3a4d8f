package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/models"
	"backoffice/repository"
	"backoffice/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	editableStatuses  = []models.PaymentStatus{models.PaymentPending, models.PaymentUnpaid}
	deletableStatuses = []models.PaymentStatus{models.PaymentPending, models.PaymentUnpaid, models.PaymentCancelled}
)

// transitions lists, per current status, the statuses an order may move to.
var transitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending:   {models.PaymentUnpaid, models.PaymentPaid, models.PaymentCancelled},
	models.PaymentUnpaid:    {models.PaymentPaid, models.PaymentCancelled},
	models.PaymentPaid:      {models.PaymentCancelled},
	models.PaymentCancelled: nil,
}

func CanTransition(from, to models.PaymentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type OrderService struct {
	store      *repository.Store
	ledger     *StockLedger
	audit      *AuditLog
	metrics    Recorder
	logger     *zap.Logger
	now        func() time.Time
	requestTTL time.Duration
}

// RequestOrderView is what the public link shows: the request plus its countdown.
type RequestOrderView struct {
	models.RequestOrder
	RemainingSeconds int64 `json:"remainingSeconds"`
}

// buildLines resolves cart lines against the catalog and totals them. Operator price overrides are
// honoured only when operatorPrices is set; public submissions always pay the catalog price.
func (s *OrderService) buildLines(ctx context.Context, inputs []models.LineInput, operatorPrices bool) ([]models.OrderLine, float64, error) {
	if len(inputs) == 0 {
		return nil, 0, invalid("order needs at least one line")
	}
	lines := make([]models.OrderLine, 0, len(inputs))
	amounts := make([]decimal.Decimal, 0, len(inputs))
	for i, in := range inputs {
		if in.Quantity <= 0 {
			return nil, 0, invalid("line %d: quantity must be positive", i+1)
		}
		oid, err := parseID(in.ProductID, "product")
		if err != nil {
			return nil, 0, err
		}
		p, err := s.store.Products.Get(ctx, oid)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, invalid("line %d: product %s does not exist", i+1, in.ProductID)
		}
		if err != nil {
			return nil, 0, err
		}

		unit := in.Unit
		switch unit {
		case "":
			unit = models.UnitPiece
		case models.UnitPiece, models.UnitBox, models.UnitTest:
		default:
			return nil, 0, invalid("line %d: unknown unit %q", i+1, in.Unit)
		}
		price := p.PriceFor(unit)
		if in.Price != nil {
			if !operatorPrices {
				return nil, 0, invalid("line %d: price cannot be set on a request order", i+1)
			}
			if *in.Price < 0 {
				return nil, 0, invalid("line %d: price must not be negative", i+1)
			}
			price = utils.RoundMoney(*in.Price)
		}

		lines = append(lines, models.OrderLine{
			ProductID: p.ID,
			Name:      p.Name,
			Unit:      unit,
			Quantity:  in.Quantity,
			Price:     price,
		})
		amounts = append(amounts, utils.LineAmount(in.Quantity, price))
	}
	return lines, utils.SumMoney(amounts...), nil
}

func normalizeBuyer(b models.BuyerInfo) (models.BuyerInfo, error) {
	b.Name = strings.TrimSpace(b.Name)
	b.Address = strings.TrimSpace(b.Address)
	b.City = strings.TrimSpace(b.City)
	b.Contact = strings.TrimSpace(b.Contact)
	b.Email = strings.TrimSpace(b.Email)
	if b.Name == "" {
		return b, invalid("buyer name is required")
	}
	return b, nil
}

// CreateOrder captures an order. Stock is untouched until the order is paid.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, in models.CreateOrderInput) (*models.Order, error) {
	buyer, err := normalizeBuyer(in.BuyerInfo)
	if err != nil {
		return nil, err
	}
	status := in.PaymentStatus
	switch status {
	case "":
		status = models.PaymentPending
	case models.PaymentPending, models.PaymentUnpaid:
	default:
		return nil, invalid("an order cannot be created as %q", status)
	}
	lines, total, err := s.buildLines(ctx, in.Lines, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &models.Order{
		OwnerID:       actor.OwnerID,
		BuyerInfo:     buyer,
		Lines:         lines,
		TotalAmount:   total,
		PaymentStatus: status,
		CreatedBy:     actor.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.Orders.Create(ctx, o); err != nil {
			return err
		}
		return s.audit.Audit(ctx, actor, "order_created", o.ID.Hex())
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

func (s *OrderService) GetOrder(ctx context.Context, ownerID, id string) (*models.Order, error) {
	oid, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}
	o, err := s.store.Orders.Get(ctx, ownerID, oid)
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return o, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	orders, err := s.store.Orders.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// ReplaceLines swaps the cart of an order that is not yet paid or cancelled and recomputes the total.
func (s *OrderService) ReplaceLines(ctx context.Context, actor models.Actor, id string, inputs []models.LineInput) (*models.Order, error) {
	oid, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}
	lines, total, err := s.buildLines(ctx, inputs, true)
	if err != nil {
		return nil, err
	}
	var o *models.Order
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.store.Orders.ReplaceLines(ctx, actor.OwnerID, oid, lines, total, editableStatuses, s.now())
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: only pending or unpaid orders can be edited", ErrInvalidTransition)
		}
		if err != nil {
			return notFound(err, "order", id)
		}
		return s.audit.Audit(ctx, actor, "order_lines_replaced", id)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// MarkPaid deducts every line, records the sale and mirrors the invoice in one transaction.
// Paying a paid order again returns its existing sale.
func (s *OrderService) MarkPaid(ctx context.Context, actor models.Actor, id string) (*models.Order, *models.Sale, error) {
	oid, err := parseID(id, "order")
	if err != nil {
		return nil, nil, err
	}

	var (
		order   *models.Order
		sale    *models.Sale
		changed bool
	)
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		changed = false
		current, err := s.store.Orders.Get(ctx, actor.OwnerID, oid)
		if err != nil {
			return notFound(err, "order", id)
		}
		if current.PaymentStatus == models.PaymentPaid {
			order = current
			sale, err = s.store.Sales.GetByOrder(ctx, oid)
			return notFound(err, "sale for order", id)
		}
		if !CanTransition(current.PaymentStatus, models.PaymentPaid) {
			return fmt.Errorf("%w: %s order cannot be paid", ErrInvalidTransition, current.PaymentStatus)
		}

		now := s.now()
		deducted := true
		order, err = s.store.Orders.TransitionStatus(ctx, actor.OwnerID, oid,
			[]models.PaymentStatus{current.PaymentStatus},
			models.OrderStatusChange{To: models.PaymentPaid, StockDeducted: &deducted, PaidAt: &now, At: now})
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		if err != nil {
			return err
		}

		for _, line := range order.Lines {
			if _, err := s.ledger.Deduct(ctx, actor, line, id, order.BuyerInfo.Name); err != nil {
				return err
			}
		}

		sale = &models.Sale{
			OwnerID:         order.OwnerID,
			OrderID:         order.ID,
			TotalAmount:     order.TotalAmount,
			Date:            now,
			Lines:           order.Lines,
			CustomerName:    order.BuyerInfo.Name,
			CustomerContact: order.BuyerInfo.Contact,
		}
		if err := s.store.Sales.Create(ctx, sale); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: order already has a sale", ErrInvalidTransition)
			}
			return err
		}
		if err := s.store.Invoices.SetPaymentStatus(ctx, oid, models.PaymentPaid, now); err != nil {
			return err
		}
		changed = true
		return s.audit.Audit(ctx, actor, "order_paid", id)
	})
	if err != nil {
		return nil, nil, err
	}

	if changed {
		for _, line := range order.Lines {
			s.metrics.StockMoved(models.EntryOut, line.Quantity)
		}
		s.metrics.OrderTransitioned(models.PaymentPaid)
		s.ledger.invalidate(ctx)
		s.logger.Info("order paid", zap.String("order", id), zap.Float64("total", order.TotalAmount))
	}
	return order, sale, nil
}

// MarkUnpaid moves a pending order to Unpaid. An Unpaid order is returned unchanged.
func (s *OrderService) MarkUnpaid(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	oid, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}
	var (
		order   *models.Order
		changed bool
	)
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		changed = false
		current, err := s.store.Orders.Get(ctx, actor.OwnerID, oid)
		if err != nil {
			return notFound(err, "order", id)
		}
		if current.PaymentStatus == models.PaymentUnpaid {
			order = current
			return nil
		}
		if !CanTransition(current.PaymentStatus, models.PaymentUnpaid) {
			return fmt.Errorf("%w: %s order cannot become unpaid", ErrInvalidTransition, current.PaymentStatus)
		}
		now := s.now()
		order, err = s.store.Orders.TransitionStatus(ctx, actor.OwnerID, oid,
			[]models.PaymentStatus{current.PaymentStatus},
			models.OrderStatusChange{To: models.PaymentUnpaid, At: now})
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		if err != nil {
			return err
		}
		if err := s.store.Invoices.SetPaymentStatus(ctx, oid, models.PaymentUnpaid, now); err != nil {
			return err
		}
		changed = true
		return s.audit.Audit(ctx, actor, "order_unpaid", id)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.OrderTransitioned(models.PaymentUnpaid)
	}
	return order, nil
}

// Cancel ends an order. Stock taken by a payment is restored and the sale voided, all in one
// transaction. Cancelling a cancelled order changes nothing.
func (s *OrderService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	oid, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}
	var (
		order    *models.Order
		reversed []models.StockEntry
		changed  bool
	)
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		changed = false
		current, err := s.store.Orders.Get(ctx, actor.OwnerID, oid)
		if err != nil {
			return notFound(err, "order", id)
		}
		if current.PaymentStatus == models.PaymentCancelled {
			order = current
			return nil
		}

		now := s.now()
		notDeducted := false
		order, err = s.store.Orders.TransitionStatus(ctx, actor.OwnerID, oid,
			[]models.PaymentStatus{current.PaymentStatus},
			models.OrderStatusChange{To: models.PaymentCancelled, StockDeducted: &notDeducted, CancelledAt: &now, At: now})
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		if err != nil {
			return err
		}

		if current.StockDeducted {
			if reversed, err = s.ledger.Reverse(ctx, actor, id); err != nil {
				return err
			}
			if err := s.store.Sales.Void(ctx, oid, now); err != nil {
				return err
			}
		}
		if err := s.store.Invoices.SetPaymentStatus(ctx, oid, models.PaymentCancelled, now); err != nil {
			return err
		}
		changed = true
		return s.audit.Audit(ctx, actor, "order_cancelled", id)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		for _, e := range reversed {
			s.metrics.StockMoved(models.EntryIn, e.Quantity)
		}
		s.metrics.OrderTransitioned(models.PaymentCancelled)
		if len(reversed) > 0 {
			s.ledger.invalidate(ctx)
		}
		s.logger.Info("order cancelled", zap.String("order", id), zap.Int("reversed", len(reversed)))
	}
	return order, nil
}

// DeleteOrder removes an order that holds no stock. Paid orders must be cancelled first.
func (s *OrderService) DeleteOrder(ctx context.Context, actor models.Actor, id string) error {
	oid, err := parseID(id, "order")
	if err != nil {
		return err
	}
	return s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		err := s.store.Orders.Delete(ctx, actor.OwnerID, oid, deletableStatuses)
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: paid orders must be cancelled before deletion", ErrInvalidTransition)
		}
		if err != nil {
			return notFound(err, "order", id)
		}
		return s.audit.Audit(ctx, actor, "order_deleted", id)
	})
}

// SubmitRequest records an order placed through an owner's public link. It waits for the owner's
// confirmation until it expires.
func (s *OrderService) SubmitRequest(ctx context.Context, ownerID string, in models.CreateOrderInput) (*models.RequestOrder, error) {
	uid, err := parseID(ownerID, "owner")
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Users.Get(ctx, uid); err != nil {
		return nil, notFound(err, "owner", ownerID)
	}
	buyer, err := normalizeBuyer(in.BuyerInfo)
	if err != nil {
		return nil, err
	}
	lines, total, err := s.buildLines(ctx, in.Lines, false)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ro := &models.RequestOrder{
		OwnerID:     ownerID,
		BuyerInfo:   buyer,
		Lines:       lines,
		TotalAmount: total,
		Status:      models.ConfirmationPending,
		ViewToken:   uuid.NewString(),
		Expiry:      now.Add(s.requestTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Requests.Create(ctx, ro); err != nil {
		return nil, fmt.Errorf("create request order: %w", err)
	}
	return ro, nil
}

// GetRequestByToken serves the public view. A pending request past its expiry already reads as
// unconfirmed, even before the sweep has flipped it.
func (s *OrderService) GetRequestByToken(ctx context.Context, token string) (*RequestOrderView, error) {
	ro, err := s.store.Requests.GetByToken(ctx, token)
	if err != nil {
		return nil, notFound(err, "request order", token)
	}
	now := s.now()
	view := &RequestOrderView{RequestOrder: *ro, RemainingSeconds: remainingSeconds(ro.Expiry, now)}
	if ro.Status == models.ConfirmationPending && view.RemainingSeconds == 0 {
		view.Status = models.ConfirmationUnconfirmed
	}
	return view, nil
}

func remainingSeconds(expiry, now time.Time) int64 {
	left := expiry.Sub(now)
	if left <= 0 {
		return 0
	}
	secs := int64(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs
}

func (s *OrderService) GetRequest(ctx context.Context, ownerID, id string) (*models.RequestOrder, error) {
	oid, err := parseID(id, "request order")
	if err != nil {
		return nil, err
	}
	ro, err := s.store.Requests.Get(ctx, ownerID, oid)
	if err != nil {
		return nil, notFound(err, "request order", id)
	}
	return ro, nil
}

func (s *OrderService) ListRequests(ctx context.Context, f models.RequestOrderFilter) ([]models.RequestOrder, error) {
	list, err := s.store.Requests.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.RequestOrder{}
	}
	return list, nil
}

// ConfirmRequest accepts a pending, unexpired request and opens an Unpaid order for it.
func (s *OrderService) ConfirmRequest(ctx context.Context, actor models.Actor, id string) (*models.RequestOrder, *models.Order, error) {
	oid, err := parseID(id, "request order")
	if err != nil {
		return nil, nil, err
	}
	var (
		ro    *models.RequestOrder
		order *models.Order
	)
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.store.Requests.Get(ctx, actor.OwnerID, oid)
		if err != nil {
			return notFound(err, "request order", id)
		}
		now := s.now()
		if current.Status != models.ConfirmationPending {
			return fmt.Errorf("%w: request order is %s", ErrInvalidTransition, current.Status)
		}
		if !now.Before(current.Expiry) {
			return ErrRequestExpired
		}

		orderID := primitive.NewObjectID()
		ro, err = s.store.Requests.Resolve(ctx, actor.OwnerID, oid, models.ConfirmationConfirmed, &now, orderID.Hex(), now)
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: request order changed concurrently", ErrInvalidTransition)
		}
		if err != nil {
			return err
		}

		order = &models.Order{
			ID:             orderID,
			OwnerID:        current.OwnerID,
			BuyerInfo:      current.BuyerInfo,
			Lines:          current.Lines,
			TotalAmount:    current.TotalAmount,
			PaymentStatus:  models.PaymentUnpaid,
			RequestOrderID: id,
			CreatedBy:      actor.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.store.Orders.Create(ctx, order); err != nil {
			return err
		}
		return s.audit.Audit(ctx, actor, "request_confirmed", id)
	})
	if err != nil {
		return nil, nil, err
	}
	return ro, order, nil
}

// RejectRequest marks a pending request unconfirmed.
func (s *OrderService) RejectRequest(ctx context.Context, actor models.Actor, id string) (*models.RequestOrder, error) {
	oid, err := parseID(id, "request order")
	if err != nil {
		return nil, err
	}
	var ro *models.RequestOrder
	err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ro, err = s.store.Requests.Resolve(ctx, actor.OwnerID, oid, models.ConfirmationUnconfirmed, nil, "", s.now())
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: only pending request orders can be rejected", ErrInvalidTransition)
		}
		if err != nil {
			return notFound(err, "request order", id)
		}
		return s.audit.Audit(ctx, actor, "request_rejected", id)
	})
	if err != nil {
		return nil, err
	}
	return ro, nil
}

// ExpireRequests flips every pending request past its expiry to unconfirmed. Confirmed requests
// are never touched.
func (s *OrderService) ExpireRequests(ctx context.Context) (int64, error) {
	n, err := s.store.Requests.ExpirePending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire request orders: %w", err)
	}
	if n > 0 {
		s.metrics.RequestsExpired(n)
		s.logger.Info("request orders expired", zap.Int64("count", n))
	}
	return n, nil
}
