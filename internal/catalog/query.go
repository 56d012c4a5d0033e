package catalog

import (
	"strings"

	"invoiceflow/internal/model"
)

// DuplicateReport is the result of a name lookup while a user is typing.
type DuplicateReport struct {
	// Suggestions are products whose name contains the typed text, other
	// than exact matches.
	Suggestions []model.Product `json:"suggestions"`
	// Exact reports whether a product already has exactly this name.
	Exact bool `json:"exact"`
}

// FindDuplicates looks up partial against the current catalog names,
// ignoring case.
func (s *Synchronizer) FindDuplicates(partial string) DuplicateReport {
	report := DuplicateReport{Suggestions: []model.Product{}}
	if partial == "" {
		return report
	}

	needle := strings.ToLower(partial)
	exact := strings.TrimSpace(partial)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if strings.EqualFold(strings.TrimSpace(p.Name), exact) {
			report.Exact = true
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), needle) {
			report.Suggestions = append(report.Suggestions, p)
		}
	}
	return report
}

// Search filters the catalog by a case-insensitive substring of name or
// category. An empty query returns everything. Catalog order is kept.
func (s *Synchronizer) Search(query string) []model.Product {
	snapshot := s.Snapshot()
	if query == "" {
		return snapshot
	}

	needle := strings.ToLower(query)
	out := make([]model.Product, 0, len(snapshot))
	for _, p := range snapshot {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Category), needle) {
			out = append(out, p)
		}
	}
	return out
}

// StockStatus classifies a product's stock level.
type StockStatus struct {
	Low bool `json:"low"`
}

// ClassifyStock marks a product low when stock is at or below its minimum.
func ClassifyStock(p model.Product) StockStatus {
	return StockStatus{Low: p.Stock <= p.MinStock}
}

// LowStock returns the products that are currently low, in catalog order.
func (s *Synchronizer) LowStock() []model.Product {
	out := []model.Product{}
	for _, p := range s.Snapshot() {
		if ClassifyStock(p).Low {
			out = append(out, p)
		}
	}
	return out
}

func countLowStock(products []model.Product) int {
	n := 0
	for _, p := range products {
		if ClassifyStock(p).Low {
			n++
		}
	}
	return n
}

// ExportRecord is one product flattened for a spreadsheet, keyed by column.
type ExportRecord map[string]any

var exportColumns = []string{
	"id",
	model.FieldName,
	model.FieldCategory,
	model.FieldBrand,
	model.FieldBatch,
	model.FieldMfgDate,
	model.FieldExpDate,
	model.FieldUnit,
	model.FieldHSN,
	model.FieldGST,
	model.FieldPurchasePrice,
	model.FieldSellingPrice,
	model.FieldStock,
	model.FieldMinStock,
}

// ExportColumns lists the columns a role may export, in sheet order.
func ExportColumns(role model.Role) []string {
	cols := make([]string, 0, len(exportColumns))
	for _, c := range exportColumns {
		if c == model.FieldPurchasePrice && !role.CanSeeCost() {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// ProjectForExport flattens the catalog for the given role. Roles that may
// not see costs get records without a purchasePrice key.
func (s *Synchronizer) ProjectForExport(role model.Role) []ExportRecord {
	return Project(s.Snapshot(), role)
}

// Project flattens products for the given role without touching them.
func Project(products []model.Product, role model.Role) []ExportRecord {
	records := make([]ExportRecord, 0, len(products))
	for _, p := range products {
		rec := ExportRecord{
			"id":                     p.ID,
			model.FieldName:          p.Name,
			model.FieldCategory:      p.Category,
			model.FieldBrand:         p.Brand,
			model.FieldBatch:         p.Batch,
			model.FieldMfgDate:       p.MfgDate,
			model.FieldExpDate:       p.ExpDate,
			model.FieldUnit:          p.Unit,
			model.FieldHSN:           p.HSN,
			model.FieldGST:           p.GST,
			model.FieldPurchasePrice: p.PurchasePrice,
			model.FieldSellingPrice:  p.SellingPrice,
			model.FieldStock:         p.Stock,
			model.FieldMinStock:      p.MinStock,
		}
		if !role.CanSeeCost() {
			delete(rec, model.FieldPurchasePrice)
		}
		records = append(records, rec)
	}
	return records
}
