package catalog

import (
	"invoiceflow/internal/model"

	"github.com/shopspring/decimal"
)

// Diff returns the fields of edited that differ from base. Strings compare
// exactly; numbers compare by value, so 450 and 450.00 are equal.
func Diff(base model.Product, edited model.ProductDraft) model.ProductPatch {
	var patch model.ProductPatch

	patch.Name = diffString(base.Name, edited.Name)
	patch.Category = diffString(base.Category, edited.Category)
	patch.Unit = diffString(base.Unit, edited.Unit)
	patch.GST = diffDecimal(base.GST, edited.GST)
	patch.PurchasePrice = diffDecimal(base.PurchasePrice, edited.PurchasePrice)
	patch.SellingPrice = diffDecimal(base.SellingPrice, edited.SellingPrice)
	patch.Stock = diffInt(base.Stock, edited.Stock)
	patch.MinStock = diffInt(base.MinStock, edited.MinStock)
	patch.Brand = diffString(base.Brand, edited.Brand)
	patch.Batch = diffString(base.Batch, edited.Batch)
	patch.MfgDate = diffString(base.MfgDate, edited.MfgDate)
	patch.ExpDate = diffString(base.ExpDate, edited.ExpDate)
	patch.HSN = diffString(base.HSN, edited.HSN)

	return patch
}

func diffString(before, after string) *string {
	if before == after {
		return nil
	}
	return &after
}

func diffDecimal(before, after decimal.Decimal) *decimal.Decimal {
	if before.Equal(after) {
		return nil
	}
	return &after
}

func diffInt(before, after int64) *int64 {
	if before == after {
		return nil
	}
	return &after
}
