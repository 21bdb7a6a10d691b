package registration

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistration() PendingRegistration {
	return PendingRegistration{
		RegistrationID: "reg-1",
		SessionID:      "cs_test_1",
		CompanyName:    "Acme",
		CompanyEmail:   "acme@example.com",
		AdminEmail:     "owner@example.com",
		PasswordHash:   "$2a$10$hash",
		PlanName:       "Basic",
		BillingCycle:   "MONTHLY",
		Modules:        []string{"SALES", "INVENTORY"},
		Amount:         decimal.NewFromInt(2499),
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	ctx := context.Background()

	_, err := store.Get(ctx, "reg-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "reg-1", sampleRegistration(), 2*time.Hour))
	assert.Equal(t, 2*time.Hour, mr.TTL("compugear:pending_registration:reg-1"))

	got, err := store.Get(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, "acme@example.com", got.CompanyEmail)
	assert.Equal(t, []string{"SALES", "INVENTORY"}, got.Modules)
	assert.True(t, decimal.NewFromInt(2499).Equal(got.Amount))

	mr.FastForward(2*time.Hour + time.Second)
	_, err = store.Get(ctx, "reg-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreRemove(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "reg-1", sampleRegistration(), time.Hour))
	require.NoError(t, store.Remove(ctx, "reg-1"))
	require.NoError(t, store.Remove(ctx, "reg-1"))

	_, err := store.Get(ctx, "reg-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "reg-1", sampleRegistration(), time.Hour))

	got, err := store.Get(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, "Basic", got.PlanName)

	now = now.Add(time.Hour)
	_, err = store.Get(ctx, "reg-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRemove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "reg-1", sampleRegistration(), time.Hour))
	require.NoError(t, store.Remove(ctx, "reg-1"))

	_, err := store.Get(ctx, "reg-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
