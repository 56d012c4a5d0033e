package model

import (
	"github.com/shopspring/decimal"
)

// Product represents one row of the shop's product catalog.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Unit          string          `json:"unit"`
	GST           decimal.Decimal `json:"gst"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	SellingPrice  decimal.Decimal `json:"sellingPrice"`
	Stock         int64           `json:"stock"`
	MinStock      int64           `json:"minStock"`
	Brand         string          `json:"brand,omitempty"`
	Batch         string          `json:"batch,omitempty"`
	MfgDate       string          `json:"mfgDate,omitempty"`
	ExpDate       string          `json:"expDate,omitempty"`
	HSN           string          `json:"hsn,omitempty"`
}

// ProductDraft is a validated product payload that has not been assigned an ID yet.
type ProductDraft struct {
	Name          string
	Category      string
	Unit          string
	GST           decimal.Decimal
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
	Stock         int64
	MinStock      int64
	Brand         string
	Batch         string
	MfgDate       string
	ExpDate       string
	HSN           string
}

// WithID turns the draft into a catalog product carrying the given ID.
func (d ProductDraft) WithID(id string) Product {
	return Product{
		ID:            id,
		Name:          d.Name,
		Category:      d.Category,
		Unit:          d.Unit,
		GST:           d.GST,
		PurchasePrice: d.PurchasePrice,
		SellingPrice:  d.SellingPrice,
		Stock:         d.Stock,
		MinStock:      d.MinStock,
		Brand:         d.Brand,
		Batch:         d.Batch,
		MfgDate:       d.MfgDate,
		ExpDate:       d.ExpDate,
		HSN:           d.HSN,
	}
}

// Draft strips the ID from a product.
func (p Product) Draft() ProductDraft {
	return ProductDraft{
		Name:          p.Name,
		Category:      p.Category,
		Unit:          p.Unit,
		GST:           p.GST,
		PurchasePrice: p.PurchasePrice,
		SellingPrice:  p.SellingPrice,
		Stock:         p.Stock,
		MinStock:      p.MinStock,
		Brand:         p.Brand,
		Batch:         p.Batch,
		MfgDate:       p.MfgDate,
		ExpDate:       p.ExpDate,
		HSN:           p.HSN,
	}
}

// Role is the access level of the user driving the catalog.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// CanSeeCost reports whether the role may see purchase prices.
func (r Role) CanSeeCost() bool {
	return r == RoleAdmin
}

// CanDelete reports whether the role may remove products from the catalog.
func (r Role) CanDelete() bool {
	return r == RoleAdmin
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleStaff:
		return RoleStaff, true
	default:
		return "", false
	}
}
