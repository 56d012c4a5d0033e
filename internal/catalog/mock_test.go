package catalog

import (
	"context"
	"sync"

	"invoiceflow/internal/model"
	"invoiceflow/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockCatalogStore is a mock implementation of store.CatalogStore. Subscribe
// keeps the callbacks so tests can push snapshots by hand.
type MockCatalogStore struct {
	mock.Mock

	feedMu       sync.Mutex
	onSnapshot   store.SnapshotFunc
	onError      store.ErrorFunc
	unsubscribed int
}

func (m *MockCatalogStore) Subscribe(ctx context.Context, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	m.feedMu.Lock()
	m.onSnapshot = onSnapshot
	m.onError = onError
	m.feedMu.Unlock()
	return func() {
		m.feedMu.Lock()
		m.unsubscribed++
		m.feedMu.Unlock()
	}, nil
}

func (m *MockCatalogStore) Create(ctx context.Context, draft model.ProductDraft) (string, error) {
	args := m.Called(ctx, draft)
	return args.String(0), args.Error(1)
}

func (m *MockCatalogStore) Patch(ctx context.Context, id string, patch model.ProductPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockCatalogStore) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// push simulates the store delivering a snapshot, even after unsubscribe.
func (m *MockCatalogStore) push(products []model.Product) {
	m.feedMu.Lock()
	fn := m.onSnapshot
	m.feedMu.Unlock()
	fn(products)
}

func (m *MockCatalogStore) drop(err error) {
	m.feedMu.Lock()
	fn := m.onError
	m.feedMu.Unlock()
	fn(err)
}

func (m *MockCatalogStore) unsubscribeCount() int {
	m.feedMu.Lock()
	defer m.feedMu.Unlock()
	return m.unsubscribed
}

type countingRecorder struct {
	mu         sync.Mutex
	snapshots  int
	lowStock   int
	writes     map[string]int
	failures   map[string]int
	rejections map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		writes:     make(map[string]int),
		failures:   make(map[string]int),
		rejections: make(map[string]int),
	}
}

func (r *countingRecorder) SnapshotApplied(products, lowStock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots++
	r.lowStock = lowStock
}

func (r *countingRecorder) WriteCompleted(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes[op]++
	if err != nil {
		r.failures[op]++
	}
}

func (r *countingRecorder) ValidationFailed(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections[code]++
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func wirelessMouse() model.Product {
	return model.Product{
		ID:            "1",
		Name:          "Wireless Mouse",
		Category:      "Electronics",
		Unit:          "Pcs",
		GST:           dec("18"),
		PurchasePrice: dec("450"),
		SellingPrice:  dec("699"),
		Stock:         50,
		MinStock:      10,
		Brand:         "Logitech",
		HSN:           "8471",
	}
}

func paperReam() model.Product {
	return model.Product{
		ID:            "2",
		Name:          "A4 Paper Ream",
		Category:      "Stationery",
		Unit:          "Pkt",
		GST:           dec("12"),
		PurchasePrice: dec("220"),
		SellingPrice:  dec("280"),
		Stock:         5,
		MinStock:      20,
	}
}

func penInput() model.ProductInput {
	return model.ProductInput{
		Name:          "Gel Pen",
		Category:      "Stationery",
		Unit:          "Pcs",
		GST:           "12",
		PurchasePrice: "5",
		SellingPrice:  "10",
		Stock:         "100",
		MinStock:      "20",
	}
}

// openWith returns a synchronizer subscribed to a mock store that has
// already pushed products.
func openWith(products ...model.Product) (*Synchronizer, *MockCatalogStore, *Subscription) {
	mockStore := new(MockCatalogStore)
	mockStore.On("Subscribe", mock.Anything).Return(nil)

	s := New(mockStore, zerolog.Nop())
	sub, err := s.Open(context.Background())
	if err != nil {
		panic(err)
	}
	mockStore.push(products)
	return s, mockStore, sub
}
