package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/repository"
)

// fakeCreditStore 用互斥锁模拟行锁
type fakeCreditStore struct {
	mu       sync.Mutex
	accounts map[string]*model.CreditAccount
}

func newFakeCreditStore() *fakeCreditStore {
	return &fakeCreditStore{accounts: map[string]*model.CreditAccount{}}
}

func (f *fakeCreditStore) Consume(_ context.Context, kind model.CreditOwnerKind, ownerID string, amount, limit int, now time.Time) (*model.CreditAccount, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(kind) + ":" + ownerID
	acc, ok := f.accounts[key]
	if !ok {
		acc = &model.CreditAccount{OwnerKind: kind, OwnerID: ownerID}
		f.accounts[key] = acc
	}
	charged := acc.Consume(amount, limit, now)
	cp := *acc
	return &cp, charged, nil
}

func (f *fakeCreditStore) Refund(_ context.Context, kind model.CreditOwnerKind, ownerID string, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[string(kind)+":"+ownerID]; ok {
		acc.Refund(amount)
	}
	return nil
}

func (f *fakeCreditStore) Find(_ context.Context, kind model.CreditOwnerKind, ownerID string) (*model.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[string(kind)+":"+ownerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func TestResolveCreditOwner(t *testing.T) {
	require.Equal(t, CreditOwner{Kind: model.CreditOwnerUser, ID: "42"}, ResolveCreditOwner(42, "device-123", "h"))
	require.Equal(t, CreditOwner{Kind: model.CreditOwnerDevice, ID: "device-123"}, ResolveCreditOwner(0, "  device-123 ", "h"))
	require.Equal(t, CreditOwner{Kind: model.CreditOwnerDevice, ID: "ip:h"}, ResolveCreditOwner(0, "abc", "h"))
}

func TestChargeUntilExhausted(t *testing.T) {
	svc := NewCreditService(newFakeCreditStore(), 20, 4)
	ctx := context.Background()
	owner := ResolveCreditOwner(0, "device-123", "")

	acc, err := svc.Charge(ctx, owner, model.CreditsPerImageRequest)
	require.NoError(t, err)
	require.Equal(t, 1, acc.Available)

	acc, err = svc.Charge(ctx, owner, 2)
	require.ErrorIs(t, err, ErrInsufficientCredits)
	require.Equal(t, 1, acc.Available)

	_, err = svc.Charge(ctx, owner, 1)
	require.NoError(t, err)
}

func TestChargeConcurrentNeverOverspends(t *testing.T) {
	svc := NewCreditService(newFakeCreditStore(), 10, 10)
	owner := ResolveCreditOwner(7, "", "")

	var wg sync.WaitGroup
	var mu sync.Mutex
	charged := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Charge(context.Background(), owner, 1); err == nil {
				mu.Lock()
				charged++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 10, charged)
}

func TestChargeResetsAfterPeriod(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := NewCreditService(newFakeCreditStore(), 2, 2)
	svc.now = func() time.Time { return now }
	ctx := context.Background()
	owner := ResolveCreditOwner(1, "", "")

	_, err := svc.Charge(ctx, owner, 2)
	require.NoError(t, err)
	_, err = svc.Charge(ctx, owner, 1)
	require.ErrorIs(t, err, ErrInsufficientCredits)

	now = now.Add(model.CreditResetPeriod)
	acc, err := svc.Charge(ctx, owner, 1)
	require.NoError(t, err)
	require.Equal(t, 1, acc.Available)
}

func TestRefundAndBalance(t *testing.T) {
	store := newFakeCreditStore()
	svc := NewCreditService(store, 5, 2)
	ctx := context.Background()
	owner := ResolveCreditOwner(3, "", "")

	fresh, err := svc.Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 5, fresh.Available)
	require.Empty(t, store.accounts, "balance must not create the account")

	_, err = svc.Charge(ctx, owner, 4)
	require.NoError(t, err)
	svc.Refund(ctx, owner, 4)

	acc, err := svc.Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 5, acc.Available)
}
