// Package repository holds the persistence interfaces of the back office and their MongoDB and
// in-memory implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"backoffice/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("current status does not allow this change")
	ErrDuplicate    = errors.New("duplicate key")
	ErrInsufficient = errors.New("insufficient quantity")
)

// TxRunner runs fn so that every repository call made with the ctx it receives commits or
// rolls back together. Calls nested inside an open transaction join it.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AdjustOptions struct {
	// RequireAvailable makes a negative delta fail with ErrInsufficient instead of going below zero.
	RequireAvailable bool
	ExpiryDate       *time.Time
	At               time.Time
}

type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	Update(ctx context.Context, id primitive.ObjectID, upd models.UpdateProduct, at time.Time) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// AdjustQuantity adds delta in a single atomic write and returns the product after the change.
	AdjustQuantity(ctx context.Context, id primitive.ObjectID, delta int, opts AdjustOptions) (*models.Product, error)
}

type EntryRepository interface {
	Append(ctx context.Context, e *models.StockEntry) error
	// ListByProduct returns the journal of one product, newest first.
	ListByProduct(ctx context.Context, productID primitive.ObjectID) ([]models.StockEntry, error)
	// ListByReference returns every entry written for a reference (order id), oldest first.
	ListByReference(ctx context.Context, referenceID string) ([]models.StockEntry, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
	// ReplaceLines succeeds only while the order is in one of the given statuses.
	ReplaceLines(ctx context.Context, ownerID string, id primitive.ObjectID, lines []models.OrderLine, total float64, allowed []models.PaymentStatus, at time.Time) (*models.Order, error)
	// TransitionStatus is a compare-and-set on payment_status: it fails with ErrConflict when the
	// stored status is not in from.
	TransitionStatus(ctx context.Context, ownerID string, id primitive.ObjectID, from []models.PaymentStatus, change models.OrderStatusChange) (*models.Order, error)
	Delete(ctx context.Context, ownerID string, id primitive.ObjectID, allowed []models.PaymentStatus) error
	CountByStatus(ctx context.Context, ownerID string) (map[models.PaymentStatus]int, error)
}

type RequestOrderRepository interface {
	Create(ctx context.Context, r *models.RequestOrder) error
	Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.RequestOrder, error)
	GetByToken(ctx context.Context, token string) (*models.RequestOrder, error)
	List(ctx context.Context, f models.RequestOrderFilter) ([]models.RequestOrder, error)
	// Resolve moves a pending request to status. When before is set the request must also
	// expire after it.
	Resolve(ctx context.Context, ownerID string, id primitive.ObjectID, status models.ConfirmationStatus, before *time.Time, orderID string, at time.Time) (*models.RequestOrder, error)
	// ExpirePending flips every pending request with expiry <= now to unconfirmed.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
	CountPending(ctx context.Context, ownerID string) (int, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *models.Invoice) error
	Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Invoice, error)
	GetByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Invoice, error)
	List(ctx context.Context, ownerID string) ([]models.Invoice, error)
	SetPaymentStatus(ctx context.Context, orderID primitive.ObjectID, status models.PaymentStatus, at time.Time) error
	// MaxNumber returns the highest invoice number issued for an owner, 0 when none.
	MaxNumber(ctx context.Context, ownerID string) (int64, error)
}

type CounterRepository interface {
	// Increment atomically adds one and returns the new value, ErrNotFound when the counter does not exist.
	Increment(ctx context.Context, name string) (int64, error)
	// Init creates the counter at value, ErrDuplicate when it already exists.
	Init(ctx context.Context, name string, value int64) error
}

type SaleRepository interface {
	Create(ctx context.Context, s *models.Sale) error
	GetByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Sale, error)
	List(ctx context.Context, f models.SaleFilter) ([]models.Sale, error)
	Void(ctx context.Context, orderID primitive.ObjectID, at time.Time) error
}

type CustomerRepository interface {
	Create(ctx context.Context, c *models.Customer) error
	Get(ctx context.Context, ownerID string, id primitive.ObjectID) (*models.Customer, error)
	List(ctx context.Context, ownerIDs []string) ([]models.Customer, error)
	Update(ctx context.Context, ownerID string, id primitive.ObjectID, c models.Customer) (*models.Customer, error)
	Delete(ctx context.Context, ownerID string, id primitive.ObjectID) error
}

type LogRepository interface {
	Append(ctx context.Context, stream models.LogStream, e *models.LogEntry) error
	List(ctx context.Context, stream models.LogStream, limit int) ([]models.LogEntry, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	FirstByRole(ctx context.Context, role string) (*models.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Session, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store bundles every repository behind one transaction runner.
type Store struct {
	Tx        TxRunner
	Products  ProductRepository
	Entries   EntryRepository
	Orders    OrderRepository
	Requests  RequestOrderRepository
	Invoices  InvoiceRepository
	Counters  CounterRepository
	Sales     SaleRepository
	Customers CustomerRepository
	Logs      LogRepository
	Users     UserRepository
	Sessions  SessionRepository
}

func containsStatus(list []models.PaymentStatus, s models.PaymentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
