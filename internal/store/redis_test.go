package store

import (
	"context"
	"testing"
	"time"

	"invoiceflow/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis testcontainer and returns a store over it.
func setupRedis(t *testing.T) (*Redis, func()) {
	if testing.Short() {
		t.Skip("Skipping Redis store test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())

	cleanup := func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	}

	return NewRedis(client, "test", zerolog.Nop()), cleanup
}

func TestRedis_CreateAndList(t *testing.T) {
	s, cleanup := setupRedis(t)
	defer cleanup()
	ctx := context.Background()

	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	mouse, err := s.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)
	cable, err := s.Create(ctx, testDraft("USB-C Cable", 100))
	require.NoError(t, err)

	products, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, mouse, products[0].ID)
	assert.Equal(t, cable, products[1].ID)
	assert.True(t, products[0].SellingPrice.Equal(decimal.RequireFromString("699.5")))
	assert.Equal(t, int64(10), products[0].MinStock)
}

func TestRedis_PatchAndRemove(t *testing.T) {
	s, cleanup := setupRedis(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)

	price := decimal.NewFromInt(470)
	stock := int64(45)
	require.NoError(t, s.Patch(ctx, id, model.ProductPatch{PurchasePrice: &price}))
	require.NoError(t, s.Patch(ctx, id, model.ProductPatch{Stock: &stock}))

	products, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].PurchasePrice.Equal(price))
	assert.Equal(t, int64(45), products[0].Stock)
	assert.Equal(t, "Wireless Mouse", products[0].Name)

	negative := int64(-3)
	assert.ErrorIs(t, s.Patch(ctx, id, model.ProductPatch{Stock: &negative}), ErrNegativeStock)
	assert.ErrorIs(t, s.Patch(ctx, "missing", model.ProductPatch{Stock: &stock}), ErrNotFound)

	require.NoError(t, s.Remove(ctx, id))
	assert.ErrorIs(t, s.Remove(ctx, id), ErrNotFound)
}

func TestRedis_AdjustStock(t *testing.T) {
	s, cleanup := setupRedis(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft("Wireless Mouse", 5))
	require.NoError(t, err)

	level, err := s.AdjustStock(ctx, id, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(12), level)

	_, err = s.AdjustStock(ctx, id, -13)
	assert.ErrorIs(t, err, ErrNegativeStock)

	_, err = s.AdjustStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_SubscribeFollowsChanges(t *testing.T) {
	s, cleanup := setupRedis(t)
	defer cleanup()
	ctx := context.Background()

	var f syncFeed
	unsubscribe, err := s.Subscribe(ctx, f.onSnapshot, f.onError)
	require.NoError(t, err)

	require.Equal(t, 1, f.count())
	assert.Empty(t, f.last())

	id, err := s.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(f.last()) == 1
	}, 10*time.Second, 50*time.Millisecond)

	stock := int64(49)
	require.NoError(t, s.Patch(ctx, id, model.ProductPatch{Stock: &stock}))
	require.Eventually(t, func() bool {
		last := f.last()
		return len(last) == 1 && last[0].Stock == 49
	}, 10*time.Second, 50*time.Millisecond)

	unsubscribe()
	seen := f.count()

	require.NoError(t, s.Remove(ctx, id))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, seen, f.count())
}
