// Package services implements the stock ledger, order lifecycle and the rest of the back office
// on top of the repository interfaces.
package services

import (
	"time"

	"backoffice/cache"
	"backoffice/models"
	"backoffice/repository"

	"go.uber.org/zap"
)

// Recorder receives ledger events for metrics.
type Recorder interface {
	StockMoved(entryType models.EntryType, quantity int)
	OrderTransitioned(status models.PaymentStatus)
	RequestsExpired(n int64)
}

type nopRecorder struct{}

func (nopRecorder) StockMoved(models.EntryType, int) {}
func (nopRecorder) OrderTransitioned(models.PaymentStatus) {}
func (nopRecorder) RequestsExpired(int64) {}

type Options struct {
	RequestOrderTTL time.Duration
	ExpiryWindow    time.Duration
	CacheTTL        time.Duration
	TokenTTL        time.Duration
	JWTSecret       []byte
	// AdminUID is the owner whose customers every employee also sees. Empty means the first admin.
	AdminUID string
	Location *time.Location
	Now      func() time.Time
	Metrics  Recorder
}

func (o *Options) setDefaults() {
	if o.RequestOrderTTL <= 0 {
		o.RequestOrderTTL = 24 * time.Hour
	}
	if o.ExpiryWindow <= 0 {
		o.ExpiryWindow = 30 * 24 * time.Hour
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Minute
	}
	if o.TokenTTL <= 0 {
		o.TokenTTL = 24 * time.Hour
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Metrics == nil {
		o.Metrics = nopRecorder{}
	}
}

type Services struct {
	Ledger    *StockLedger
	Orders    *OrderService
	Invoices  *InvoiceService
	Sales     *SalesService
	Customers *CustomerService
	Audit     *AuditLog
	Auth      *AuthService
}

func New(store *repository.Store, c cache.Cache, logger *zap.Logger, opts Options) *Services {
	opts.setDefaults()
	if c == nil {
		c = cache.Nop{}
	}

	audit := &AuditLog{logs: store.Logs, now: opts.Now}
	ledger := &StockLedger{
		store:        store,
		cache:        c,
		cacheTTL:     opts.CacheTTL,
		expiryWindow: opts.ExpiryWindow,
		audit:        audit,
		metrics:      opts.Metrics,
		logger:       logger.Named("ledger"),
		now:          opts.Now,
	}
	return &Services{
		Ledger: ledger,
		Orders: &OrderService{
			store:      store,
			ledger:     ledger,
			audit:      audit,
			metrics:    opts.Metrics,
			logger:     logger.Named("orders"),
			now:        opts.Now,
			requestTTL: opts.RequestOrderTTL,
		},
		Invoices: &InvoiceService{store: store, audit: audit, logger: logger.Named("invoices"), now: opts.Now},
		Sales: &SalesService{
			store:    store,
			ledger:   ledger,
			location: opts.Location,
			now:      opts.Now,
		},
		Customers: &CustomerService{store: store, adminUID: opts.AdminUID, now: opts.Now},
		Audit:     audit,
		Auth: &AuthService{
			store:    store,
			audit:    audit,
			secret:   opts.JWTSecret,
			tokenTTL: opts.TokenTTL,
			logger:   logger.Named("auth"),
			now:      opts.Now,
		},
	}
}
