package store

import (
	"context"
	"errors"
	"testing"

	"invoiceflow/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDraft(name string, stock int64) model.ProductDraft {
	return model.ProductDraft{
		Name:          name,
		Category:      "General",
		Unit:          "Pcs",
		GST:           decimal.NewFromInt(18),
		PurchasePrice: decimal.RequireFromString("450"),
		SellingPrice:  decimal.RequireFromString("699.50"),
		Stock:         stock,
		MinStock:      10,
		HSN:           "8471",
	}
}

// feed collects every snapshot a subscription receives.
type feed struct {
	snapshots [][]model.Product
	errs      []error
}

func (f *feed) onSnapshot(products []model.Product) {
	f.snapshots = append(f.snapshots, products)
}

func (f *feed) onError(err error) {
	f.errs = append(f.errs, err)
}

func (f *feed) last() []model.Product {
	if len(f.snapshots) == 0 {
		return nil
	}
	return f.snapshots[len(f.snapshots)-1]
}

func TestMemory_SubscribePushesInitialSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zerolog.Nop())

	_, err := m.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)

	var f feed
	unsubscribe, err := m.Subscribe(ctx, f.onSnapshot, f.onError)
	require.NoError(t, err)
	defer unsubscribe()

	require.Len(t, f.snapshots, 1)
	require.Len(t, f.last(), 1)
	assert.Equal(t, "Wireless Mouse", f.last()[0].Name)
}

func TestMemory_CreationOrderAndIDs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zerolog.Nop())

	var f feed
	unsubscribe, err := m.Subscribe(ctx, f.onSnapshot, f.onError)
	require.NoError(t, err)
	defer unsubscribe()

	first, err := m.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)
	second, err := m.Create(ctx, testDraft("USB-C Cable", 100))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.Len(t, f.snapshots, 3)
	require.Len(t, f.last(), 2)
	assert.Equal(t, first, f.last()[0].ID)
	assert.Equal(t, second, f.last()[1].ID)

	require.NoError(t, m.Remove(ctx, first))
	third, err := m.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	ids := []string{f.last()[0].ID, f.last()[1].ID}
	assert.Equal(t, []string{second, third}, ids)
}

func TestMemory_Patch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zerolog.Nop())

	id, err := m.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)

	price := decimal.NewFromInt(470)
	require.NoError(t, m.Patch(ctx, id, model.ProductPatch{PurchasePrice: &price}))
	stock := int64(45)
	require.NoError(t, m.Patch(ctx, id, model.ProductPatch{Stock: &stock}))

	p := m.Products()[0]
	assert.True(t, p.PurchasePrice.Equal(price))
	assert.Equal(t, int64(45), p.Stock)
	assert.Equal(t, "Wireless Mouse", p.Name)

	negative := int64(-1)
	assert.ErrorIs(t, m.Patch(ctx, id, model.ProductPatch{Stock: &negative}), ErrNegativeStock)
	assert.ErrorIs(t, m.Patch(ctx, "missing", model.ProductPatch{Stock: &stock}), ErrNotFound)
}

func TestMemory_Remove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zerolog.Nop())

	id, err := m.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)

	require.NoError(t, m.Remove(ctx, id))
	assert.Empty(t, m.Products())
	assert.ErrorIs(t, m.Remove(ctx, id), ErrNotFound)
}

func TestMemory_AdjustStock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zerolog.Nop())

	id, err := m.Create(ctx, testDraft("Wireless Mouse", 5))
	require.NoError(t, err)

	tests := []struct {
		name        string
		id          string
		delta       int64
		expectLevel int64
		expectError error
	}{
		{name: "Restock", id: id, delta: 10, expectLevel: 15},
		{name: "Sell down to zero", id: id, delta: -15, expectLevel: 0},
		{name: "Below zero", id: id, delta: -1, expectError: ErrNegativeStock},
		{name: "Unknown product", id: "missing", delta: 1, expectError: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := m.AdjustStock(ctx, tt.id, tt.delta)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectLevel, level)
		})
	}

	assert.Equal(t, int64(0), m.Products()[0].Stock)
}

func TestMemory_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zerolog.Nop())

	var f feed
	unsubscribe, err := m.Subscribe(ctx, f.onSnapshot, f.onError)
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()

	_, err = m.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)
	m.Disconnect(errors.New("gone"))

	assert.Len(t, f.snapshots, 1)
	assert.Empty(t, f.errs)
}

func TestMemory_Disconnect(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zerolog.Nop())

	var f feed
	_, err := m.Subscribe(ctx, f.onSnapshot, f.onError)
	require.NoError(t, err)

	m.Disconnect(errors.New("network partition"))
	_, err = m.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)

	require.Len(t, f.errs, 1)
	assert.EqualError(t, f.errs[0], "network partition")
	assert.Len(t, f.snapshots, 1)
}

func TestMemory_CanceledContext(t *testing.T) {
	m := NewMemory(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Create(ctx, testDraft("Wireless Mouse", 50))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.Products())
}

func TestMemory_SnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(zerolog.Nop())

	var f feed
	_, err := m.Subscribe(ctx, f.onSnapshot, f.onError)
	require.NoError(t, err)
	_, err = m.Create(ctx, testDraft("Wireless Mouse", 50))
	require.NoError(t, err)

	f.last()[0].Name = "tampered"
	assert.Equal(t, "Wireless Mouse", m.Products()[0].Name)
}
