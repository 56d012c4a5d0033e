package store

import (
	"context"
	"sync"
	"sync/atomic"

	"invoiceflow/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Memory is an in-process CatalogStore. Snapshots are pushed synchronously
// on the writer's goroutine, in write order, once the write is committed.
// Subscribers must not write to the store from inside their callbacks.
type Memory struct {
	mu          sync.RWMutex
	order       []string
	products    map[string]model.Product
	subscribers map[uint64]*memorySubscriber
	nextSubID   uint64

	// deliverMu keeps pushes in commit order.
	deliverMu sync.Mutex
	logger    zerolog.Logger
}

type memorySubscriber struct {
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	active     atomic.Bool
}

// Ensure interfaces
var (
	_ CatalogStore  = (*Memory)(nil)
	_ StockAdjuster = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory(logger zerolog.Logger) *Memory {
	return &Memory{
		products:    make(map[string]model.Product),
		subscribers: make(map[uint64]*memorySubscriber),
		logger:      logger.With().Str("store", "memory").Logger(),
	}
}

// Subscribe registers the callbacks and pushes the current collection.
func (m *Memory) Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscriber{onSnapshot: onSnapshot, onError: onError}
	sub.active.Store(true)

	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.subscribers[id] = sub
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Debug().Uint64("subscriber", id).Int("products", len(snapshot)).Msg("subscriber registered")
	onSnapshot(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
			m.logger.Debug().Uint64("subscriber", id).Msg("subscriber removed")
		})
	}, nil
}

// Create assigns a fresh ID and appends the product to the collection.
func (m *Memory) Create(ctx context.Context, draft model.ProductDraft) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	err := m.commit(func() error {
		m.products[id] = draft.WithID(id)
		m.order = append(m.order, id)
		return nil
	})
	if err != nil {
		return "", err
	}

	m.logger.Debug().Str("product_id", id).Msg("product created")
	return id, nil
}

// Patch applies the changed fields to an existing product.
func (m *Memory) Patch(ctx context.Context, id string, patch model.ProductPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.commit(func() error {
		p, ok := m.products[id]
		if !ok {
			return ErrNotFound
		}
		next := patch.Apply(p)
		if next.Stock < 0 {
			return ErrNegativeStock
		}
		m.products[id] = next
		return nil
	})
}

// Remove deletes a product. IDs are never handed out again.
func (m *Memory) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.commit(func() error {
		if _, ok := m.products[id]; !ok {
			return ErrNotFound
		}
		delete(m.products, id)
		for i, existing := range m.order {
			if existing == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
		return nil
	})
}

// AdjustStock adds delta to the stock of a product, refusing to go negative.
func (m *Memory) AdjustStock(ctx context.Context, id string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var level int64
	err := m.commit(func() error {
		p, ok := m.products[id]
		if !ok {
			return ErrNotFound
		}
		if p.Stock+delta < 0 {
			return ErrNegativeStock
		}
		p.Stock += delta
		m.products[id] = p
		level = p.Stock
		return nil
	})
	return level, err
}

// Disconnect drops every subscriber with err, as if the channel was lost.
func (m *Memory) Disconnect(err error) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	subs := make([]*memorySubscriber, 0, len(m.subscribers))
	for id, sub := range m.subscribers {
		subs = append(subs, sub)
		delete(m.subscribers, id)
	}
	m.mu.Unlock()

	m.logger.Warn().Err(err).Int("subscribers", len(subs)).Msg("dropping subscribers")
	for _, sub := range subs {
		if sub.active.Swap(false) && sub.onError != nil {
			sub.onError(err)
		}
	}
}

// Products returns the current collection without subscribing.
func (m *Memory) Products() []model.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// commit runs mutate under the write lock and, if it succeeds, pushes the
// resulting snapshot to every active subscriber.
func (m *Memory) commit(mutate func() error) error {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	if err := mutate(); err != nil {
		m.mu.Unlock()
		return err
	}
	snapshot := m.snapshotLocked()
	subs := make([]*memorySubscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.onSnapshot(cloneProducts(snapshot))
		}
	}
	return nil
}

func (m *Memory) snapshotLocked() []model.Product {
	out := make([]model.Product, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.products[id])
	}
	return out
}

func cloneProducts(in []model.Product) []model.Product {
	out := make([]model.Product, len(in))
	copy(out, in)
	return out
}
