package server

import (
	"context"
	"errors"
	"fmt"

	"invoiceflow/internal/catalog"
	"invoiceflow/internal/model"

	"github.com/rs/zerolog"
)

// DefaultCatalog is the starter inventory loaded by the seed command.
func DefaultCatalog() []model.ProductInput {
	return []model.ProductInput{
		{Name: "Wireless Mouse", Category: "Electronics", Brand: "Logitech", Batch: "WM-001", MfgDate: "2024-01-01", Unit: "Pcs", HSN: "8471", GST: "18", PurchasePrice: "450", SellingPrice: "650", Stock: "50", MinStock: "10"},
		{Name: "A4 Paper Ream", Category: "Stationery", Brand: "JK Copier", Batch: "P-100", MfgDate: "2024-02-15", Unit: "Packet", HSN: "4802", GST: "12", PurchasePrice: "180", SellingPrice: "240", Stock: "100", MinStock: "20"},
		{Name: "USB-C Cable", Category: "Accessories", Brand: "Samsung", Batch: "CB-22", MfgDate: "2024-03-10", Unit: "Pcs", HSN: "8544", GST: "18", PurchasePrice: "120", SellingPrice: "250", Stock: "30", MinStock: "5"},
		{Name: "LED Bulb 9W", Category: "Electrical", Brand: "Philips", Batch: "L-99", MfgDate: "2024-01-20", Unit: "Pcs", HSN: "8539", GST: "12", PurchasePrice: "85", SellingPrice: "120", Stock: "200", MinStock: "50"},
	}
}

// SeedResult counts what Seed did.
type SeedResult struct {
	Added   int
	Skipped int
}

// Seed adds every input whose name is not in the catalog yet. The
// synchronizer must hold a snapshot.
func Seed(ctx context.Context, sync *catalog.Synchronizer, inputs []model.ProductInput, logger zerolog.Logger) (SeedResult, error) {
	var result SeedResult
	if !sync.Ready() {
		return result, model.ErrCatalogNotReady
	}

	for _, in := range inputs {
		name := string(in.Name)
		if sync.FindDuplicates(name).Exact {
			result.Skipped++
			logger.Debug().Str("name", name).Msg("product already exists, skipping")
			continue
		}

		id, err := sync.Add(ctx, in)
		switch {
		case errors.Is(err, model.ErrDuplicateName):
			result.Skipped++
		case err != nil:
			return result, fmt.Errorf("failed to seed %q: %w", name, err)
		default:
			result.Added++
			logger.Info().Str("product_id", id).Str("name", name).Msg("product seeded")
		}
	}

	return result, nil
}
