package catalog

import "context"

// DeleteConfirmation is the question asked before a product is removed.
const DeleteConfirmation = "Are you sure you want to delete this product?"

// Confirmer asks the user a yes/no question and waits for the answer.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, message string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// Answer returns a Confirmer that always gives the same reply, for callers
// that collected the answer up front.
func Answer(yes bool) Confirmer {
	return ConfirmFunc(func(context.Context, string) (bool, error) {
		return yes, nil
	})
}
