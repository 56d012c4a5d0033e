package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invoiceflow/internal/model"
	"invoiceflow/internal/store"
)

// Store operation names used in errors and metrics.
const (
	OpCreate      = "create"
	OpPatch       = "patch"
	OpRemove      = "remove"
	OpAdjustStock = "adjust_stock"
)

// Add validates the input, rejects names already in the catalog and creates
// the product in the store. The product shows up locally only once the store
// pushes the next snapshot.
func (s *Synchronizer) Add(ctx context.Context, input model.ProductInput) (string, error) {
	draft, err := input.Parse()
	if err != nil {
		s.rejected(err)
		return "", err
	}

	if !s.Ready() {
		return "", model.ErrCatalogNotReady
	}
	if s.nameTaken(draft.Name) {
		s.rejected(model.ErrDuplicateName)
		s.logger.Debug().Str("name", draft.Name).Msg("duplicate product name rejected")
		return "", model.ErrDuplicateName
	}

	id, err := s.store.Create(ctx, draft)
	s.recorder.WriteCompleted(OpCreate, err)
	if err != nil {
		werr := model.NewStoreWriteError(OpCreate, "", err)
		s.logger.Error().Err(err).Str("name", draft.Name).Bool("unknown_outcome", werr.Unknown).Msg("failed to create product")
		return "", werr
	}

	s.logger.Info().Str("product_id", id).Str("name", draft.Name).Msg("product created")
	return id, nil
}

// Update sends only the fields of edited that differ from lastKnown, the
// version of the product the edit started from. Fields changed remotely but
// not locally are left alone. An unchanged form makes no store call.
func (s *Synchronizer) Update(ctx context.Context, id string, edited model.ProductInput, lastKnown model.Product) (model.ProductPatch, error) {
	if id == "" || (lastKnown.ID != "" && lastKnown.ID != id) {
		return model.ProductPatch{}, model.ErrProductNotFound
	}

	draft, err := edited.Parse()
	if err != nil {
		s.rejected(err)
		return model.ProductPatch{}, err
	}

	patch := Diff(lastKnown, draft)
	if patch.IsEmpty() {
		s.logger.Debug().Str("product_id", id).Msg("no changes to save")
		return patch, nil
	}

	err = s.store.Patch(ctx, id, patch)
	s.recorder.WriteCompleted(OpPatch, err)
	if err != nil {
		if errors.Is(err, store.ErrNegativeStock) {
			return model.ProductPatch{}, model.ErrInsufficientStock
		}
		werr := model.NewStoreWriteError(OpPatch, id, err)
		s.logger.Error().Err(err).Str("product_id", id).Strs("fields", patch.Fields()).Bool("unknown_outcome", werr.Unknown).Msg("failed to update product")
		return model.ProductPatch{}, werr
	}

	s.logger.Info().Str("product_id", id).Strs("fields", patch.Fields()).Msg("product updated")
	return patch, nil
}

// Remove asks for confirmation and deletes the product. A refusal returns
// false with no error and no store call.
func (s *Synchronizer) Remove(ctx context.Context, id string, confirmer Confirmer) (bool, error) {
	if confirmer == nil {
		return false, errors.New("remove requires a confirmer")
	}

	ok, err := confirmer.Confirm(ctx, DeleteConfirmation)
	if err != nil {
		return false, fmt.Errorf("failed to confirm deletion: %w", err)
	}
	if !ok {
		s.logger.Debug().Str("product_id", id).Msg("deletion declined")
		return false, nil
	}

	err = s.store.Remove(ctx, id)
	s.recorder.WriteCompleted(OpRemove, err)
	if err != nil {
		werr := model.NewStoreWriteError(OpRemove, id, err)
		s.logger.Error().Err(err).Str("product_id", id).Bool("unknown_outcome", werr.Unknown).Msg("failed to delete product")
		return false, werr
	}

	s.logger.Info().Str("product_id", id).Msg("product deleted")
	return true, nil
}

// AdjustStock adds delta to a product's stock and returns the new level.
// Stock never goes below zero: the latest snapshot is checked first, and
// stores that support it re-check atomically.
func (s *Synchronizer) AdjustStock(ctx context.Context, id string, delta int64) (int64, error) {
	product, ok := s.Product(id)
	if !ok {
		return 0, model.ErrProductNotFound
	}
	if delta == 0 {
		return product.Stock, nil
	}
	if product.Stock+delta < 0 {
		s.rejected(model.ErrInsufficientStock)
		return 0, model.ErrInsufficientStock
	}

	var (
		level int64
		err   error
	)
	if adjuster, ok := s.store.(store.StockAdjuster); ok {
		level, err = adjuster.AdjustStock(ctx, id, delta)
	} else {
		level = product.Stock + delta
		err = s.store.Patch(ctx, id, model.ProductPatch{Stock: &level})
	}
	s.recorder.WriteCompleted(OpAdjustStock, err)
	if err != nil {
		if errors.Is(err, store.ErrNegativeStock) {
			return 0, model.ErrInsufficientStock
		}
		werr := model.NewStoreWriteError(OpAdjustStock, id, err)
		s.logger.Error().Err(err).Str("product_id", id).Int64("delta", delta).Bool("unknown_outcome", werr.Unknown).Msg("failed to adjust stock")
		return 0, werr
	}

	s.logger.Info().Str("product_id", id).Int64("delta", delta).Int64("stock", level).Msg("stock adjusted")
	return level, nil
}

func (s *Synchronizer) nameTaken(name string) bool {
	name = strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return true
		}
	}
	return false
}

func (s *Synchronizer) rejected(err error) {
	var de *model.DomainError
	if errors.As(err, &de) {
		s.recorder.ValidationFailed(de.Code)
	}
}
