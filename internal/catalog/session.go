package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"

	"invoiceflow/internal/model"
)

var (
	// ErrSessionClosed is returned when a saved or cancelled session is used again.
	ErrSessionClosed = errors.New("edit session is closed")
	// ErrSessionBusy is returned while a save is in flight.
	ErrSessionBusy = errors.New("edit session is saving")
)

// SessionState is the lifecycle position of an EditSession.
type SessionState int

const (
	SessionEditing SessionState = iota
	SessionSaving
	SessionSaved
	SessionCancelled
)

func (st SessionState) String() string {
	switch st {
	case SessionEditing:
		return "editing"
	case SessionSaving:
		return "saving"
	case SessionSaved:
		return "saved"
	case SessionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// EditSession is one edit of one product, pinned to the version of the
// product that was current when the edit began. It is for callers that hold
// an edit form open in process, such as a terminal or desktop front end.
// Stateless callers like the HTTP API keep the base version themselves and
// call Update with it as lastKnown.
type EditSession struct {
	sync *Synchronizer
	base model.Product

	mu    sync.Mutex
	state SessionState
}

// Begin opens an edit session against the product as it is right now.
func (s *Synchronizer) Begin(id string) (*EditSession, error) {
	p, ok := s.Product(id)
	if !ok {
		return nil, model.ErrProductNotFound
	}
	return &EditSession{sync: s, base: p, state: SessionEditing}, nil
}

// Base is the product version the session diffs against.
func (e *EditSession) Base() model.Product {
	return e.base
}

// Input is the edit form prefilled from Base.
func (e *EditSession) Input() model.ProductInput {
	return model.InputFromProduct(e.base)
}

// State is where the session is in its lifecycle.
func (e *EditSession) State() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Warning reports whether another product already carries name. It is only
// advisory; Save does not block on it.
func (e *EditSession) Warning(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, p := range e.sync.Snapshot() {
		if p.ID != e.base.ID && strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return true
		}
	}
	return false
}

// Save sends the changes in input. On failure the session stays open so the
// form can be corrected and saved again.
func (e *EditSession) Save(ctx context.Context, input model.ProductInput) (model.ProductPatch, error) {
	e.mu.Lock()
	switch e.state {
	case SessionSaving:
		e.mu.Unlock()
		return model.ProductPatch{}, ErrSessionBusy
	case SessionSaved, SessionCancelled:
		e.mu.Unlock()
		return model.ProductPatch{}, ErrSessionClosed
	}
	e.state = SessionSaving
	e.mu.Unlock()

	patch, err := e.sync.Update(ctx, e.base.ID, input, e.base)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = SessionEditing
		return model.ProductPatch{}, err
	}
	e.state = SessionSaved
	return patch, nil
}

// Cancel abandons the session without touching the store.
func (e *EditSession) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case SessionSaving:
		return ErrSessionBusy
	case SessionSaved, SessionCancelled:
		return ErrSessionClosed
	}
	e.state = SessionCancelled
	return nil
}
