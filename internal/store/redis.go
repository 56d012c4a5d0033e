package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"invoiceflow/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxTxAttempts bounds optimistic transaction retries on WATCH conflicts.
const maxTxAttempts = 3

// Redis is a CatalogStore backed by Redis. Each product is a hash, so a
// patch only overwrites the fields it carries. A sorted set keeps creation
// order and a pub/sub channel announces changes.
type Redis struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// Ensure interfaces
var (
	_ CatalogStore  = (*Redis)(nil)
	_ StockAdjuster = (*Redis)(nil)
)

// NewRedis creates a Redis-backed catalog store. All keys live under prefix.
func NewRedis(client *redis.Client, prefix string, logger zerolog.Logger) *Redis {
	if prefix == "" {
		prefix = "catalog"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("store", "redis").Str("prefix", prefix).Logger(),
	}
}

func (s *Redis) indexKey() string { return s.prefix + ":products" }

func (s *Redis) seqKey() string { return s.prefix + ":seq" }

func (s *Redis) channel() string { return s.prefix + ":changes" }

func (s *Redis) productKey(id string) string { return s.prefix + ":product:" + id }

// List retrieves the whole catalog in creation order.
func (s *Redis) List(ctx context.Context) ([]model.Product, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read product index")
		return nil, fmt.Errorf("failed to read product index: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.productKey(id))
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read products")
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	products := make([]model.Product, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Removed between the index read and the pipeline.
			continue
		}
		p, err := decodeProduct(ids[i], fields)
		if err != nil {
			s.logger.Error().Err(err).Str("product_id", ids[i]).Msg("failed to decode product")
			return nil, fmt.Errorf("failed to decode product %s: %w", ids[i], err)
		}
		products = append(products, p)
	}

	return products, nil
}

// Subscribe pushes the catalog now and after every change message.
func (s *Redis) Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	pubsub := s.client.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		s.logger.Error().Err(err).Msg("failed to subscribe to catalog changes")
		return nil, fmt.Errorf("failed to subscribe to catalog changes: %w", err)
	}

	products, err := s.List(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	onSnapshot(products)

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	messages := pubsub.Channel()

	go func() {
		defer close(done)
		for {
			select {
			case <-listenCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					if listenCtx.Err() == nil && onError != nil {
						onError(errors.New("catalog change channel closed"))
					}
					return
				}

				s.logger.Debug().Str("operation", msg.Payload).Msg("catalog change published")

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
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			if err := pubsub.Close(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to close catalog subscription")
			}
		})
	}, nil
}

// Create stores a new product hash and appends it to the index.
func (s *Redis) Create(ctx context.Context, draft model.ProductDraft) (string, error) {
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to allocate sequence")
		return "", fmt.Errorf("failed to allocate sequence: %w", err)
	}

	id := uuid.NewString()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.productKey(id), encodeDraft(draft))
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(seq), Member: id})
		pipe.Publish(ctx, s.channel(), "create")
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("name", draft.Name).Msg("failed to create product")
		return "", fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Debug().Str("product_id", id).Msg("product created")
	return id, nil
}

// Patch sets only the patched hash fields of an existing product.
func (s *Redis) Patch(ctx context.Context, id string, patch model.ProductPatch) error {
	values := encodePatch(patch)
	if len(values) == 0 {
		return nil
	}

	key := s.productKey(id)
	err := s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		if patch.Stock != nil && *patch.Stock < 0 {
			return ErrNegativeStock
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			pipe.Publish(ctx, s.channel(), "patch")
			return nil
		})
		return err
	}, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNegativeStock) {
			s.logger.Error().Err(err).Str("product_id", id).Msg("failed to patch product")
		}
		return err
	}

	s.logger.Debug().Str("product_id", id).Strs("fields", patch.Fields()).Msg("product patched")
	return nil
}

// Remove deletes the product hash and its index entry.
func (s *Redis) Remove(ctx context.Context, id string) error {
	key := s.productKey(id)
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.indexKey(), id)
		pipe.Del(ctx, key)
		pipe.Publish(ctx, s.channel(), "remove")
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to delete product")
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}

	s.logger.Debug().Str("product_id", id).Msg("product deleted")
	return nil
}

// AdjustStock changes stock under WATCH so a concurrent sale cannot push it
// below zero.
func (s *Redis) AdjustStock(ctx context.Context, id string, delta int64) (int64, error) {
	key := s.productKey(id)
	var level int64
	err := s.watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, model.FieldStock).Int64()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if current+delta < 0 {
			return ErrNegativeStock
		}
		level = current + delta
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, model.FieldStock, strconv.FormatInt(level, 10))
			pipe.Publish(ctx, s.channel(), "stock")
			return nil
		})
		return err
	}, key)
	if err != nil {
		return 0, err
	}
	return level, nil
}

// watch runs fn in an optimistic transaction, retrying WATCH conflicts.
func (s *Redis) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug().Int("attempt", attempt).Strs("keys", keys).Msg("transaction conflict, retrying")
	}
	return fmt.Errorf("transaction kept conflicting: %w", err)
}

func encodeDraft(d model.ProductDraft) map[string]any {
	return map[string]any{
		model.FieldName:          d.Name,
		model.FieldCategory:      d.Category,
		model.FieldUnit:          d.Unit,
		model.FieldGST:           d.GST.String(),
		model.FieldPurchasePrice: d.PurchasePrice.String(),
		model.FieldSellingPrice:  d.SellingPrice.String(),
		model.FieldStock:         strconv.FormatInt(d.Stock, 10),
		model.FieldMinStock:      strconv.FormatInt(d.MinStock, 10),
		model.FieldBrand:         d.Brand,
		model.FieldBatch:         d.Batch,
		model.FieldMfgDate:       d.MfgDate,
		model.FieldExpDate:       d.ExpDate,
		model.FieldHSN:           d.HSN,
	}
}

func encodePatch(patch model.ProductPatch) map[string]any {
	values := patchValues(patch)
	for field, v := range values {
		if n, ok := v.(int64); ok {
			values[field] = strconv.FormatInt(n, 10)
		}
	}
	return values
}

func decodeProduct(id string, fields map[string]string) (model.Product, error) {
	p := model.Product{
		ID:       id,
		Name:     fields[model.FieldName],
		Category: fields[model.FieldCategory],
		Unit:     fields[model.FieldUnit],
		Brand:    fields[model.FieldBrand],
		Batch:    fields[model.FieldBatch],
		MfgDate:  fields[model.FieldMfgDate],
		ExpDate:  fields[model.FieldExpDate],
		HSN:      fields[model.FieldHSN],
	}

	var err error
	if p.GST, err = decodeDecimal(fields[model.FieldGST]); err != nil {
		return model.Product{}, fmt.Errorf("gst: %w", err)
	}
	if p.PurchasePrice, err = decodeDecimal(fields[model.FieldPurchasePrice]); err != nil {
		return model.Product{}, fmt.Errorf("purchase price: %w", err)
	}
	if p.SellingPrice, err = decodeDecimal(fields[model.FieldSellingPrice]); err != nil {
		return model.Product{}, fmt.Errorf("selling price: %w", err)
	}
	if p.Stock, err = decodeInt(fields[model.FieldStock]); err != nil {
		return model.Product{}, fmt.Errorf("stock: %w", err)
	}
	if p.MinStock, err = decodeInt(fields[model.FieldMinStock]); err != nil {
		return model.Product{}, fmt.Errorf("min stock: %w", err)
	}
	return p, nil
}

func decodeDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func decodeInt(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
