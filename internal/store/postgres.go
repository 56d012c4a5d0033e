package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"invoiceflow/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ChangeChannel is the LISTEN/NOTIFY channel raised on every catalog write.
const ChangeChannel = "catalog_changes"

// Schema creates the products table and the trigger that announces changes.
const Schema = `
	CREATE TABLE IF NOT EXISTS products (
		seq            BIGSERIAL,
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		category       TEXT NOT NULL DEFAULT '',
		unit           TEXT NOT NULL DEFAULT '',
		gst            NUMERIC NOT NULL,
		purchase_price NUMERIC NOT NULL CHECK (purchase_price >= 0),
		selling_price  NUMERIC NOT NULL DEFAULT 0 CHECK (selling_price >= 0),
		stock          BIGINT NOT NULL CHECK (stock >= 0),
		min_stock      BIGINT NOT NULL CHECK (min_stock >= 0),
		brand          TEXT NOT NULL DEFAULT '',
		batch          TEXT NOT NULL DEFAULT '',
		mfg_date       TEXT NOT NULL DEFAULT '',
		exp_date       TEXT NOT NULL DEFAULT '',
		hsn            TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_products_seq ON products(seq);

	CREATE OR REPLACE FUNCTION notify_catalog_change() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('catalog_changes', TG_OP);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql;

	DROP TRIGGER IF EXISTS products_changed ON products;
	CREATE TRIGGER products_changed
		AFTER INSERT OR UPDATE OR DELETE ON products
		FOR EACH STATEMENT EXECUTE FUNCTION notify_catalog_change();
`

const selectProducts = `
	SELECT id, name, category, unit, gst::text, purchase_price::text, selling_price::text,
		stock, min_stock, brand, batch, mfg_date, exp_date, hsn
	FROM products
	ORDER BY seq
`

// patchColumns maps patch field names to table columns.
var patchColumns = map[string]string{
	model.FieldName:          "name",
	model.FieldCategory:      "category",
	model.FieldUnit:          "unit",
	model.FieldGST:           "gst",
	model.FieldPurchasePrice: "purchase_price",
	model.FieldSellingPrice:  "selling_price",
	model.FieldStock:         "stock",
	model.FieldMinStock:      "min_stock",
	model.FieldBrand:         "brand",
	model.FieldBatch:         "batch",
	model.FieldMfgDate:       "mfg_date",
	model.FieldExpDate:       "exp_date",
	model.FieldHSN:           "hsn",
}

// Postgres is a CatalogStore backed by PostgreSQL. Subscriptions hold a
// dedicated pooled connection that LISTENs on ChangeChannel.
type Postgres struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Ensure interfaces
var (
	_ CatalogStore  = (*Postgres)(nil)
	_ StockAdjuster = (*Postgres)(nil)
)

// NewPostgres creates a PostgreSQL-backed catalog store.
func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) *Postgres {
	return &Postgres{
		pool:   pool,
		logger: logger.With().Str("store", "postgres").Logger(),
	}
}

// Migrate creates the schema if it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		s.logger.Error().Err(err).Msg("failed to apply schema")
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Info().Msg("schema applied")
	return nil
}

// List retrieves the whole catalog in creation order.
func (s *Postgres) List(ctx context.Context) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx, selectProducts)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		s.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Subscribe pushes the catalog now and after every change notification.
func (s *Postgres) Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to acquire listener connection")
		return nil, fmt.Errorf("failed to acquire listener connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		conn.Release()
		s.logger.Error().Err(err).Msg("failed to listen for catalog changes")
		return nil, fmt.Errorf("failed to listen for catalog changes: %w", err)
	}

	// Load after LISTEN so that no change between the two is missed.
	products, err := s.List(ctx)
	if err != nil {
		s.releaseListener(conn)
		return nil, err
	}
	onSnapshot(products)

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			notification, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() != nil {
					return
				}
				s.logger.Error().Err(err).Msg("catalog listener stopped")
				if onError != nil {
					onError(fmt.Errorf("failed to wait for catalog change: %w", err))
				}
				return
			}

			s.logger.Debug().Str("operation", notification.Payload).Msg("catalog change notified")

			products, err := s.List(listenCtx)
			if err != nil {
				if listenCtx.Err() != nil {
					return
				}
				if onError != nil {
					onError(err)
				}
				return
			}
			if listenCtx.Err() != nil {
				return
			}
			onSnapshot(products)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			s.releaseListener(conn)
		})
	}, nil
}

// releaseListener stops listening and hands the connection back to the pool.
func (s *Postgres) releaseListener(conn *pgxpool.Conn) {
	if !conn.Conn().IsClosed() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, "UNLISTEN "+ChangeChannel); err != nil {
			s.logger.Warn().Err(err).Msg("failed to unlisten catalog changes")
		}
	}
	conn.Release()
}

// Create inserts a new product and returns its generated ID.
func (s *Postgres) Create(ctx context.Context, draft model.ProductDraft) (string, error) {
	query := `
		INSERT INTO products (id, name, category, unit, gst, purchase_price, selling_price,
			stock, min_stock, brand, batch, mfg_date, exp_date, hsn)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13, $14)
	`

	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, query,
		id, draft.Name, draft.Category, draft.Unit,
		draft.GST.String(), draft.PurchasePrice.String(), draft.SellingPrice.String(),
		draft.Stock, draft.MinStock,
		draft.Brand, draft.Batch, draft.MfgDate, draft.ExpDate, draft.HSN,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("name", draft.Name).Msg("failed to insert product")
		return "", fmt.Errorf("failed to insert product: %w", err)
	}

	s.logger.Debug().Str("product_id", id).Msg("product created")
	return id, nil
}

// Patch updates only the columns present in the patch.
func (s *Postgres) Patch(ctx context.Context, id string, patch model.ProductPatch) error {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}

	values := patchValues(patch)
	sets := make([]string, 0, len(fields))
	args := []any{id}
	for _, field := range fields {
		args = append(args, values[field])
		placeholder := fmt.Sprintf("$%d", len(args))
		switch field {
		case model.FieldGST, model.FieldPurchasePrice, model.FieldSellingPrice:
			placeholder += "::numeric"
		}
		sets = append(sets, patchColumns[field]+" = "+placeholder)
	}

	query := "UPDATE products SET " + strings.Join(sets, ", ") + " WHERE id = $1"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Strs("fields", fields).Msg("failed to patch product")
		return fmt.Errorf("failed to patch product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug().Str("product_id", id).Strs("fields", fields).Msg("product patched")
	return nil
}

// Remove deletes a product.
func (s *Postgres) Remove(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to delete product")
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug().Str("product_id", id).Msg("product deleted")
	return nil
}

// AdjustStock changes stock in a single conditional statement.
func (s *Postgres) AdjustStock(ctx context.Context, id string, delta int64) (int64, error) {
	query := `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock
	`

	var level int64
	err := s.pool.QueryRow(ctx, query, id, delta).Scan(&level)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error().Err(err).Str("product_id", id).Int64("delta", delta).Msg("failed to adjust stock")
		return 0, fmt.Errorf("failed to adjust stock: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return 0, ErrNotFound
	}
	return 0, ErrNegativeStock
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	var gst, purchasePrice, sellingPrice string
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Unit,
		&gst, &purchasePrice, &sellingPrice,
		&p.Stock, &p.MinStock,
		&p.Brand, &p.Batch, &p.MfgDate, &p.ExpDate, &p.HSN,
	)
	if err != nil {
		return model.Product{}, err
	}

	if p.GST, err = decimal.NewFromString(gst); err != nil {
		return model.Product{}, fmt.Errorf("invalid gst %q: %w", gst, err)
	}
	if p.PurchasePrice, err = decimal.NewFromString(purchasePrice); err != nil {
		return model.Product{}, fmt.Errorf("invalid purchase price %q: %w", purchasePrice, err)
	}
	if p.SellingPrice, err = decimal.NewFromString(sellingPrice); err != nil {
		return model.Product{}, fmt.Errorf("invalid selling price %q: %w", sellingPrice, err)
	}
	return p, nil
}

// patchValues flattens a patch into driver-friendly values keyed by field.
func patchValues(patch model.ProductPatch) map[string]any {
	values := make(map[string]any)
	str := func(field string, v *string) {
		if v != nil {
			values[field] = *v
		}
	}
	dec := func(field string, v *decimal.Decimal) {
		if v != nil {
			values[field] = v.String()
		}
	}
	num := func(field string, v *int64) {
		if v != nil {
			values[field] = *v
		}
	}
	str(model.FieldName, patch.Name)
	str(model.FieldCategory, patch.Category)
	str(model.FieldUnit, patch.Unit)
	dec(model.FieldGST, patch.GST)
	dec(model.FieldPurchasePrice, patch.PurchasePrice)
	dec(model.FieldSellingPrice, patch.SellingPrice)
	num(model.FieldStock, patch.Stock)
	num(model.FieldMinStock, patch.MinStock)
	str(model.FieldBrand, patch.Brand)
	str(model.FieldBatch, patch.Batch)
	str(model.FieldMfgDate, patch.MfgDate)
	str(model.FieldExpDate, patch.ExpDate)
	str(model.FieldHSN, patch.HSN)
	return values
}
