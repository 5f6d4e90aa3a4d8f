package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"backoffice/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *Store, qty int) *models.Product {
	t.Helper()
	p := &models.Product{Name: "Reagent", Quantity: qty}
	require.NoError(t, s.Products.Create(context.Background(), p))
	return p
}

func TestMemoryTxRollsBackEveryWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := seedProduct(t, s, 10)
	boom := errors.New("boom")

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.Products.AdjustQuantity(ctx, p.ID, -4, AdjustOptions{RequireAvailable: true}); err != nil {
			return err
		}
		if err := s.Entries.Append(ctx, &models.StockEntry{ProductID: p.ID, Type: models.EntryOut, Quantity: 4, ReferenceID: "o1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
	entries, err := s.Entries.ListByReference(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryTxNestedCallsJoinTheOuterTx(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := seedProduct(t, s, 10)

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
			_, err := s.Products.AdjustQuantity(ctx, p.ID, 5, AdjustOptions{})
			return err
		}); err != nil {
			return err
		}
		return ErrConflict
	})
	require.ErrorIs(t, err, ErrConflict)

	got, err := s.Products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
}

func TestMemoryAdjustQuantityIsConditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := seedProduct(t, s, 3)

	_, err := s.Products.AdjustQuantity(ctx, p.ID, -4, AdjustOptions{RequireAvailable: true})
	assert.ErrorIs(t, err, ErrInsufficient)

	got, err := s.Products.AdjustQuantity(ctx, p.ID, -3, AdjustOptions{RequireAvailable: true})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestMemoryTransitionStatusIsCompareAndSet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	o := &models.Order{OwnerID: "owner", PaymentStatus: models.PaymentPending}
	require.NoError(t, s.Orders.Create(ctx, o))

	now := time.Now()
	_, err := s.Orders.TransitionStatus(ctx, "owner", o.ID, []models.PaymentStatus{models.PaymentPending},
		models.OrderStatusChange{To: models.PaymentPaid, PaidAt: &now, At: now})
	require.NoError(t, err)

	_, err = s.Orders.TransitionStatus(ctx, "owner", o.ID, []models.PaymentStatus{models.PaymentPending},
		models.OrderStatusChange{To: models.PaymentCancelled, At: now})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.Orders.TransitionStatus(ctx, "someone-else", o.ID, []models.PaymentStatus{models.PaymentPaid},
		models.OrderStatusChange{To: models.PaymentCancelled, At: now})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUniqueKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Users.Create(ctx, &models.User{Username: "alice"}))
	assert.ErrorIs(t, s.Users.Create(ctx, &models.User{Username: "ALICE"}), ErrDuplicate)

	require.NoError(t, s.Counters.Init(ctx, "invoice:x", 4))
	assert.ErrorIs(t, s.Counters.Init(ctx, "invoice:x", 0), ErrDuplicate)
	n, err := s.Counters.Increment(ctx, "invoice:x")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	_, err = s.Counters.Increment(ctx, "invoice:y")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryExpirePendingSkipsResolved(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	overdue := &models.RequestOrder{OwnerID: "o", Status: models.ConfirmationPending, ViewToken: "a", Expiry: now.Add(-time.Minute)}
	fresh := &models.RequestOrder{OwnerID: "o", Status: models.ConfirmationPending, ViewToken: "b", Expiry: now.Add(time.Minute)}
	done := &models.RequestOrder{OwnerID: "o", Status: models.ConfirmationConfirmed, ViewToken: "c", Expiry: now.Add(-time.Minute)}
	for _, ro := range []*models.RequestOrder{overdue, fresh, done} {
		require.NoError(t, s.Requests.Create(ctx, ro))
	}

	n, err := s.Requests.ExpirePending(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Requests.GetByToken(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationConfirmed, got.Status)
}
