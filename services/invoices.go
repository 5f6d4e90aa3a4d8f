package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backoffice/models"
	"backoffice/repository"

	"go.uber.org/zap"
)

const invoiceNumberAttempts = 3

type InvoiceService struct {
	store  *repository.Store
	audit  *AuditLog
	logger *zap.Logger
	now    func() time.Time
}

func invoiceCounter(ownerID string) string {
	return "invoice:" + ownerID
}

// nextNumber draws the next invoice number of an owner from its counter. A missing counter is
// seeded with the highest number already issued.
func (s *InvoiceService) nextNumber(ctx context.Context, ownerID string) (int64, error) {
	name := invoiceCounter(ownerID)
	n, err := s.store.Counters.Increment(ctx, name)
	if !errors.Is(err, repository.ErrNotFound) {
		return n, err
	}

	highest, err := s.store.Invoices.MaxNumber(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if err := s.store.Counters.Init(ctx, name, highest); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return 0, err
	}
	return s.store.Counters.Increment(ctx, name)
}

// CreateInvoice issues the single invoice of an order. Numbers are drawn outside any transaction,
// so a failed insert leaves a gap rather than a duplicate.
func (s *InvoiceService) CreateInvoice(ctx context.Context, actor models.Actor, orderID string) (*models.Invoice, error) {
	oid, err := parseID(orderID, "order")
	if err != nil {
		return nil, err
	}
	order, err := s.store.Orders.Get(ctx, actor.OwnerID, oid)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	if _, err := s.store.Invoices.GetByOrder(ctx, oid); err == nil {
		return nil, ErrInvoiceExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < invoiceNumberAttempts; attempt++ {
		n, err := s.nextNumber(ctx, order.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("invoice number: %w", err)
		}
		now := s.now()
		inv := &models.Invoice{
			OwnerID:       order.OwnerID,
			OrderID:       order.ID,
			InvoiceNumber: models.FormatInvoiceNumber(n),
			BuyerInfo:     order.BuyerInfo,
			Lines:         order.Lines,
			TotalAmount:   order.TotalAmount,
			PaymentStatus: order.PaymentStatus,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err = s.store.Invoices.Create(ctx, inv)
		if err == nil {
			if err := s.audit.Audit(ctx, actor, "invoice_created", inv.InvoiceNumber); err != nil {
				s.logger.Warn("audit invoice", zap.Error(err))
			}
			return inv, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		if _, lookupErr := s.store.Invoices.GetByOrder(ctx, oid); lookupErr == nil {
			return nil, ErrInvoiceExists
		}
		s.logger.Warn("invoice number already taken, drawing another", zap.String("number", inv.InvoiceNumber))
	}
	return nil, fmt.Errorf("invoice number: no free number after %d attempts", invoiceNumberAttempts)
}

func (s *InvoiceService) GetInvoice(ctx context.Context, ownerID, id string) (*models.Invoice, error) {
	oid, err := parseID(id, "invoice")
	if err != nil {
		return nil, err
	}
	inv, err := s.store.Invoices.Get(ctx, ownerID, oid)
	if err != nil {
		return nil, notFound(err, "invoice", id)
	}
	return inv, nil
}

func (s *InvoiceService) ListInvoices(ctx context.Context, ownerID string) ([]models.Invoice, error) {
	list, err := s.store.Invoices.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Invoice{}
	}
	return list, nil
}
