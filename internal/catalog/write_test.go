package catalog

import (
	"context"
	"errors"
	"testing"

	"invoiceflow/internal/model"
	"invoiceflow/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSynchronizer_Add(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		input       func() model.ProductInput
		createID    string
		createErr   error
		expectCall  bool
		expectError error
		checkError  func(t *testing.T, err error)
	}{
		{
			name:       "Success",
			input:      penInput,
			createID:   "new-id",
			expectCall: true,
		},
		{
			name: "Duplicate name differing in case and spaces",
			input: func() model.ProductInput {
				in := penInput()
				in.Name = "  wireless MOUSE "
				return in
			},
			expectError: model.ErrDuplicateName,
		},
		{
			name: "Empty name",
			input: func() model.ProductInput {
				in := penInput()
				in.Name = "   "
				return in
			},
			expectError: model.ErrValidation,
		},
		{
			name: "Non-numeric stock",
			input: func() model.ProductInput {
				in := penInput()
				in.Stock = "lots"
				return in
			},
			expectError: model.ErrValidation,
		},
		{
			name:        "Store rejects the write",
			input:       penInput,
			createErr:   errors.New("permission denied"),
			expectCall:  true,
			expectError: nil,
			checkError: func(t *testing.T, err error) {
				var werr *model.StoreWriteError
				require.ErrorAs(t, err, &werr)
				assert.Equal(t, OpCreate, werr.Op)
				assert.False(t, werr.Unknown)
			},
		},
		{
			name:       "Store times out",
			input:      penInput,
			createErr:  context.DeadlineExceeded,
			expectCall: true,
			checkError: func(t *testing.T, err error) {
				var werr *model.StoreWriteError
				require.ErrorAs(t, err, &werr)
				assert.True(t, werr.Unknown)
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mockStore, sub := openWith(wirelessMouse())
			defer sub.Close()

			if tt.expectCall {
				mockStore.On("Create", mock.Anything, mock.MatchedBy(func(d model.ProductDraft) bool {
					return d.Name == "Gel Pen" && d.Stock == 100 && d.GST.Equal(dec("12"))
				})).Return(tt.createID, tt.createErr).Once()
			}

			id, err := s.Add(ctx, tt.input())

			switch {
			case tt.expectError != nil:
				assert.ErrorIs(t, err, tt.expectError)
				assert.Empty(t, id)
			case tt.checkError != nil:
				require.Error(t, err)
				tt.checkError(t, err)
				assert.Empty(t, id)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.createID, id)
			}

			if !tt.expectCall {
				mockStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
			mockStore.AssertExpectations(t)

			// Writes never touch the local view.
			assert.Equal(t, []model.Product{wirelessMouse()}, s.Snapshot())
		})
	}
}

func TestSynchronizer_AddBeforeFirstSnapshot(t *testing.T) {
	mockStore := new(MockCatalogStore)
	s := New(mockStore, zerolog.Nop())

	_, err := s.Add(context.Background(), penInput())

	assert.ErrorIs(t, err, model.ErrCatalogNotReady)
	mockStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSynchronizer_AddRecordsOutcome(t *testing.T) {
	recorder := newCountingRecorder()
	mockStore := new(MockCatalogStore)
	mockStore.On("Subscribe", mock.Anything).Return(nil)
	mockStore.On("Create", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	s := New(mockStore, zerolog.Nop(), WithRecorder(recorder))
	sub, err := s.Open(context.Background())
	require.NoError(t, err)
	defer sub.Close()
	mockStore.push([]model.Product{wirelessMouse()})

	_, _ = s.Add(context.Background(), penInput())
	dup := penInput()
	dup.Name = "Wireless Mouse"
	_, _ = s.Add(context.Background(), dup)

	assert.Equal(t, 1, recorder.writes[OpCreate])
	assert.Equal(t, 1, recorder.failures[OpCreate])
	assert.Equal(t, 1, recorder.rejections[model.ErrCodeDuplicateName])
}

func TestSynchronizer_Update(t *testing.T) {
	ctx := context.Background()
	base := wirelessMouse()

	t.Run("Sends only changed fields", func(t *testing.T) {
		s, mockStore, sub := openWith(base)
		defer sub.Close()

		mockStore.On("Patch", mock.Anything, "1", mock.MatchedBy(func(p model.ProductPatch) bool {
			return assert.ObjectsAreEqual([]string{model.FieldPurchasePrice}, p.Fields()) &&
				p.PurchasePrice.Equal(dec("470"))
		})).Return(nil).Once()

		edited := model.InputFromProduct(base)
		edited.PurchasePrice = "470"

		patch, err := s.Update(ctx, "1", edited, base)
		require.NoError(t, err)
		assert.Equal(t, []string{model.FieldPurchasePrice}, patch.Fields())
		mockStore.AssertExpectations(t)
	})

	t.Run("Equal numbers in another spelling make no call", func(t *testing.T) {
		s, mockStore, sub := openWith(base)
		defer sub.Close()

		edited := model.InputFromProduct(base)
		edited.Stock = "50"
		edited.MinStock = " 10 "
		edited.PurchasePrice = "450.00"
		edited.GST = "18.0"

		patch, err := s.Update(ctx, "1", edited, base)
		require.NoError(t, err)
		assert.True(t, patch.IsEmpty())
		mockStore.AssertNotCalled(t, "Patch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Invalid input makes no call", func(t *testing.T) {
		s, mockStore, sub := openWith(base)
		defer sub.Close()

		edited := model.InputFromProduct(base)
		edited.PurchasePrice = ""

		_, err := s.Update(ctx, "1", edited, base)
		var de *model.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, model.FieldPurchasePrice, de.Field)
		mockStore.AssertNotCalled(t, "Patch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Duplicate names are not enforced", func(t *testing.T) {
		s, mockStore, sub := openWith(base, paperReam())
		defer sub.Close()

		mockStore.On("Patch", mock.Anything, "1", mock.Anything).Return(nil).Once()

		edited := model.InputFromProduct(base)
		edited.Name = "A4 Paper Ream"

		_, err := s.Update(ctx, "1", edited, base)
		require.NoError(t, err)
		mockStore.AssertExpectations(t)
	})

	t.Run("Mismatched last known product", func(t *testing.T) {
		s, mockStore, sub := openWith(base)
		defer sub.Close()

		_, err := s.Update(ctx, "2", model.InputFromProduct(base), base)
		assert.ErrorIs(t, err, model.ErrProductNotFound)
		mockStore.AssertNotCalled(t, "Patch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Store failure is a write error", func(t *testing.T) {
		s, mockStore, sub := openWith(base)
		defer sub.Close()

		mockStore.On("Patch", mock.Anything, "1", mock.Anything).Return(store.ErrNotFound).Once()

		edited := model.InputFromProduct(base)
		edited.Brand = "HP"

		_, err := s.Update(ctx, "1", edited, base)
		var werr *model.StoreWriteError
		require.ErrorAs(t, err, &werr)
		assert.Equal(t, OpPatch, werr.Op)
		assert.Equal(t, "1", werr.ProductID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, base, s.Snapshot()[0])
	})
}

func TestSynchronizer_Remove(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		confirmer   Confirmer
		removeErr   error
		expectCall  bool
		expectOK    bool
		expectError bool
	}{
		{
			name:       "Confirmed",
			confirmer:  Answer(true),
			expectCall: true,
			expectOK:   true,
		},
		{
			name:      "Declined",
			confirmer: Answer(false),
		},
		{
			name: "Confirmer fails",
			confirmer: ConfirmFunc(func(context.Context, string) (bool, error) {
				return false, errors.New("dialog dismissed")
			}),
			expectError: true,
		},
		{
			name:        "No confirmer",
			expectError: true,
		},
		{
			name:        "Store failure",
			confirmer:   Answer(true),
			removeErr:   errors.New("permission denied"),
			expectCall:  true,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mockStore, sub := openWith(wirelessMouse())
			defer sub.Close()

			if tt.expectCall {
				mockStore.On("Remove", mock.Anything, "1").Return(tt.removeErr).Once()
			}

			ok, err := s.Remove(ctx, "1", tt.confirmer)

			assert.Equal(t, tt.expectOK, ok)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if !tt.expectCall {
				mockStore.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
			}
			mockStore.AssertExpectations(t)
			assert.Len(t, s.Snapshot(), 1)
		})
	}
}

func TestSynchronizer_RemoveAsksTheQuestion(t *testing.T) {
	s, _, sub := openWith(wirelessMouse())
	defer sub.Close()

	var asked string
	ok, err := s.Remove(context.Background(), "1", ConfirmFunc(func(_ context.Context, msg string) (bool, error) {
		asked = msg
		return false, nil
	}))

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Are you sure you want to delete this product?", asked)
}

func TestSynchronizer_AdjustStock(t *testing.T) {
	ctx := context.Background()

	t.Run("Atomic store", func(t *testing.T) {
		mem := store.NewMemory(zerolog.Nop())
		id, err := mem.Create(ctx, wirelessMouse().Draft())
		require.NoError(t, err)

		s := New(mem, zerolog.Nop())
		sub, err := s.Open(ctx)
		require.NoError(t, err)
		defer sub.Close()

		level, err := s.AdjustStock(ctx, id, -20)
		require.NoError(t, err)
		assert.Equal(t, int64(30), level)

		p, _ := s.Product(id)
		assert.Equal(t, int64(30), p.Stock)

		_, err = s.AdjustStock(ctx, id, -31)
		assert.ErrorIs(t, err, model.ErrInsufficientStock)
		assert.True(t, model.IsValidation(err))

		level, err = s.AdjustStock(ctx, id, -30)
		require.NoError(t, err)
		assert.Equal(t, int64(0), level)
	})

	t.Run("Falls back to a stock patch", func(t *testing.T) {
		s, mockStore, sub := openWith(wirelessMouse())
		defer sub.Close()

		mockStore.On("Patch", mock.Anything, "1", mock.MatchedBy(func(p model.ProductPatch) bool {
			return p.Stock != nil && *p.Stock == 45 && len(p.Fields()) == 1
		})).Return(nil).Once()

		level, err := s.AdjustStock(ctx, "1", -5)
		require.NoError(t, err)
		assert.Equal(t, int64(45), level)
		mockStore.AssertExpectations(t)
	})

	t.Run("Rejected locally", func(t *testing.T) {
		s, mockStore, sub := openWith(wirelessMouse())
		defer sub.Close()

		_, err := s.AdjustStock(ctx, "1", -51)
		assert.ErrorIs(t, err, model.ErrInsufficientStock)

		_, err = s.AdjustStock(ctx, "missing", 1)
		assert.ErrorIs(t, err, model.ErrProductNotFound)

		mockStore.AssertNotCalled(t, "Patch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Store enforces the floor", func(t *testing.T) {
		s, mockStore, sub := openWith(wirelessMouse())
		defer sub.Close()

		mockStore.On("Patch", mock.Anything, "1", mock.Anything).Return(store.ErrNegativeStock).Once()

		_, err := s.AdjustStock(ctx, "1", -50)
		assert.ErrorIs(t, err, model.ErrInsufficientStock)
	})
}

// Two clients edit different fields of the same product from the same
// starting snapshot. Neither edit may clobber the other.
func TestSynchronizer_ConcurrentEditsKeepBothFields(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(zerolog.Nop())
	id, err := mem.Create(ctx, wirelessMouse().Draft())
	require.NoError(t, err)

	clientA := New(mem, zerolog.Nop())
	clientB := New(mem, zerolog.Nop())
	subA, err := clientA.Open(ctx)
	require.NoError(t, err)
	defer subA.Close()
	subB, err := clientB.Open(ctx)
	require.NoError(t, err)
	defer subB.Close()

	editA, err := clientA.Begin(id)
	require.NoError(t, err)
	editB, err := clientB.Begin(id)
	require.NoError(t, err)

	inputA := editA.Input()
	inputA.PurchasePrice = "470"
	patchA, err := editA.Save(ctx, inputA)
	require.NoError(t, err)
	assert.Equal(t, []string{model.FieldPurchasePrice}, patchA.Fields())

	inputB := editB.Input()
	inputB.Stock = "45"
	patchB, err := editB.Save(ctx, inputB)
	require.NoError(t, err)
	assert.Equal(t, []string{model.FieldStock}, patchB.Fields())

	final := mem.Products()
	require.Len(t, final, 1)
	assert.Equal(t, int64(45), final[0].Stock)
	assert.True(t, final[0].PurchasePrice.Equal(dec("470")))

	for _, client := range []*Synchronizer{clientA, clientB} {
		p, ok := client.Product(id)
		require.True(t, ok)
		assert.Equal(t, int64(45), p.Stock)
		assert.True(t, p.PurchasePrice.Equal(dec("470")))
	}
}
