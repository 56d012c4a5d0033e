package model

import (
	"github.com/shopspring/decimal"
)

// Product field names as they appear on the wire and in patches.
const (
	FieldName          = "name"
	FieldCategory      = "category"
	FieldUnit          = "unit"
	FieldGST           = "gst"
	FieldPurchasePrice = "purchasePrice"
	FieldSellingPrice  = "sellingPrice"
	FieldStock         = "stock"
	FieldMinStock      = "minStock"
	FieldBrand         = "brand"
	FieldBatch         = "batch"
	FieldMfgDate       = "mfgDate"
	FieldExpDate       = "expDate"
	FieldHSN           = "hsn"
)

// ProductPatch holds the subset of product fields that changed.
// A nil field is left untouched by the store.
type ProductPatch struct {
	Name          *string          `json:"name,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Unit          *string          `json:"unit,omitempty"`
	GST           *decimal.Decimal `json:"gst,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty"`
	SellingPrice  *decimal.Decimal `json:"sellingPrice,omitempty"`
	Stock         *int64           `json:"stock,omitempty"`
	MinStock      *int64           `json:"minStock,omitempty"`
	Brand         *string          `json:"brand,omitempty"`
	Batch         *string          `json:"batch,omitempty"`
	MfgDate       *string          `json:"mfgDate,omitempty"`
	ExpDate       *string          `json:"expDate,omitempty"`
	HSN           *string          `json:"hsn,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields returns the names of the changed fields in declaration order.
func (p ProductPatch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Name != nil, FieldName)
	add(p.Category != nil, FieldCategory)
	add(p.Unit != nil, FieldUnit)
	add(p.GST != nil, FieldGST)
	add(p.PurchasePrice != nil, FieldPurchasePrice)
	add(p.SellingPrice != nil, FieldSellingPrice)
	add(p.Stock != nil, FieldStock)
	add(p.MinStock != nil, FieldMinStock)
	add(p.Brand != nil, FieldBrand)
	add(p.Batch != nil, FieldBatch)
	add(p.MfgDate != nil, FieldMfgDate)
	add(p.ExpDate != nil, FieldExpDate)
	add(p.HSN != nil, FieldHSN)
	return fields
}

// Apply returns a copy of the product with the patch applied.
func (p ProductPatch) Apply(product Product) Product {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Unit != nil {
		product.Unit = *p.Unit
	}
	if p.GST != nil {
		product.GST = *p.GST
	}
	if p.PurchasePrice != nil {
		product.PurchasePrice = *p.PurchasePrice
	}
	if p.SellingPrice != nil {
		product.SellingPrice = *p.SellingPrice
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.MinStock != nil {
		product.MinStock = *p.MinStock
	}
	if p.Brand != nil {
		product.Brand = *p.Brand
	}
	if p.Batch != nil {
		product.Batch = *p.Batch
	}
	if p.MfgDate != nil {
		product.MfgDate = *p.MfgDate
	}
	if p.ExpDate != nil {
		product.ExpDate = *p.ExpDate
	}
	if p.HSN != nil {
		product.HSN = *p.HSN
	}
	return product
}
