// Package catalog keeps an in-memory product catalog in step with a shared
// remote store and mediates every write to it.
//
// The local view is replaced wholesale by each snapshot the store pushes.
// Writes go straight to the store and never touch the local view; the next
// snapshot is the only way a write becomes visible.
package catalog

import (
	"context"
	"errors"
	"sync"

	"invoiceflow/internal/model"
	"invoiceflow/internal/store"

	"github.com/rs/zerolog"
)

// ErrAlreadySubscribed is returned by Open while another subscription is live.
var ErrAlreadySubscribed = errors.New("catalog subscription already open")

// Recorder observes catalog activity. It is implemented by the metrics package.
type Recorder interface {
	SnapshotApplied(products, lowStock int)
	WriteCompleted(op string, err error)
	ValidationFailed(code string)
}

type nopRecorder struct{}

func (nopRecorder) SnapshotApplied(int, int) {}

func (nopRecorder) WriteCompleted(string, error) {}

func (nopRecorder) ValidationFailed(string) {}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Synchronizer owns the local catalog view. The view is written only by the
// subscription callback; everything else reads copies of it.
type Synchronizer struct {
	store    store.CatalogStore
	logger   zerolog.Logger
	recorder Recorder

	mu       sync.RWMutex
	products []model.Product
	loaded   bool

	// deliverMu orders snapshot application against Close so that nothing is
	// applied or announced once Close has returned.
	deliverMu sync.Mutex
	current   *Subscription

	listenersMu  sync.RWMutex
	listeners    map[uint64]func([]model.Product)
	nextListener uint64
}

// New creates a Synchronizer over the given store.
func New(catalogStore store.CatalogStore, logger zerolog.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:     catalogStore,
		logger:    logger.With().Str("component", "catalog").Logger(),
		recorder:  nopRecorder{},
		listeners: make(map[uint64]func([]model.Product)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscription is a live feed of store snapshots into a Synchronizer.
type Subscription struct {
	sync  *Synchronizer
	errCh chan error

	// closed and failed are guarded by sync.deliverMu.
	closed bool
	failed bool

	unsubMu     sync.Mutex
	unsubscribe store.Unsubscribe
	released    bool
}

// Open subscribes to the store. The first snapshot may be applied before
// Open returns. The store is never resubscribed automatically: when the
// channel drops the error is sent on Err and the caller decides what to do.
func (s *Synchronizer) Open(ctx context.Context) (*Subscription, error) {
	s.deliverMu.Lock()
	if s.current != nil && !s.current.closed && !s.current.failed {
		s.deliverMu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	sub := &Subscription{sync: s, errCh: make(chan error, 1)}
	s.current = sub
	s.deliverMu.Unlock()

	unsubscribe, err := s.store.Subscribe(ctx, sub.deliver, sub.fail)
	if err != nil {
		s.deliverMu.Lock()
		sub.closed = true
		if s.current == sub {
			s.current = nil
		}
		s.deliverMu.Unlock()

		s.logger.Error().Err(err).Msg("failed to subscribe to catalog")
		return nil, &model.StoreSubscriptionError{Err: err}
	}

	sub.unsubMu.Lock()
	sub.unsubscribe = unsubscribe
	sub.unsubMu.Unlock()

	// Close may have run while the store was subscribing.
	s.deliverMu.Lock()
	closed := sub.closed
	s.deliverMu.Unlock()
	if closed {
		sub.release()
	}

	s.logger.Info().Msg("catalog subscription opened")
	return sub, nil
}

// Err delivers at most one StoreSubscriptionError when the channel drops.
func (sub *Subscription) Err() <-chan error {
	return sub.errCh
}

// Close ends the subscription. It is idempotent, and once it returns no
// snapshot is applied and no listener is called on its behalf.
func (sub *Subscription) Close() {
	s := sub.sync

	s.deliverMu.Lock()
	if sub.closed {
		s.deliverMu.Unlock()
		return
	}
	sub.closed = true
	if s.current == sub {
		s.current = nil
	}
	s.deliverMu.Unlock()

	sub.release()
	s.logger.Info().Msg("catalog subscription closed")
}

func (sub *Subscription) release() {
	sub.unsubMu.Lock()
	defer sub.unsubMu.Unlock()
	if sub.released || sub.unsubscribe == nil {
		return
	}
	sub.released = true
	sub.unsubscribe()
}

// deliver replaces the catalog with the pushed snapshot.
func (sub *Subscription) deliver(products []model.Product) {
	s := sub.sync

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if sub.closed || sub.failed {
		return
	}

	snapshot := cloneProducts(products)

	s.mu.Lock()
	s.products = snapshot
	s.loaded = true
	s.mu.Unlock()

	s.recorder.SnapshotApplied(len(snapshot), countLowStock(snapshot))
	s.logger.Debug().Int("products", len(snapshot)).Msg("catalog snapshot applied")

	for _, fn := range s.listenerList() {
		fn(cloneProducts(snapshot))
	}
}

// fail records that the store dropped the channel.
func (sub *Subscription) fail(err error) {
	s := sub.sync

	s.deliverMu.Lock()
	if sub.closed || sub.failed {
		s.deliverMu.Unlock()
		return
	}
	sub.failed = true
	s.deliverMu.Unlock()

	s.logger.Error().Err(err).Msg("catalog subscription lost")
	sub.errCh <- &model.StoreSubscriptionError{Err: err}
}

// OnChange registers fn to receive a copy of every applied snapshot. fn runs
// on the delivery path and must not close the subscription.
func (s *Synchronizer) OnChange(fn func([]model.Product)) (remove func()) {
	s.listenersMu.Lock()
	s.nextListener++
	id := s.nextListener
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Synchronizer) listenerList() []func([]model.Product) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	out := make([]func([]model.Product), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

// Ready reports whether at least one snapshot has been applied.
func (s *Synchronizer) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Snapshot returns a copy of the current catalog in store order.
func (s *Synchronizer) Snapshot() []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProducts(s.products)
}

// Product looks up a product in the current catalog.
func (s *Synchronizer) Product(id string) (model.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

func cloneProducts(in []model.Product) []model.Product {
	out := make([]model.Product, len(in))
	copy(out, in)
	return out
}
