package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ecommerce-backend/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ecommerce"

var ErrInProgress = errors.New("request with this idempotency key is still in progress")

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, id)
}

// OrderCache is a read-through cache of joined orders keyed by id.
type OrderCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewOrderCache(client redis.Cmdable, ttl time.Duration) *OrderCache {
	return &OrderCache{client: client, ttl: ttl}
}

func (c *OrderCache) Get(ctx context.Context, id int64) (*models.Order, bool, error) {
	raw, err := c.client.Get(ctx, key("order", strconv.FormatInt(id, 10))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var order models.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, false, fmt.Errorf("decode cached order %d: %w", id, err)
	}
	return &order, true, nil
}

func (c *OrderCache) Set(ctx context.Context, order *models.Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key("order", strconv.FormatInt(order.ID, 10)), raw, c.ttl).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, key("order", strconv.FormatInt(id, 10))).Err()
}

// IdempotencyStore maps a client supplied Idempotency-Key to the order it created.
type IdempotencyStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewIdempotencyStore(client redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

const pending = "pending"

// Begin claims k. It returns the order id when k already completed, 0 when
// the caller now owns k, and ErrInProgress while another request holds it.
func (s *IdempotencyStore) Begin(ctx context.Context, k string) (int64, error) {
	ok, err := s.client.SetNX(ctx, key("idempotency", k), pending, s.ttl).Result()
	if err != nil {
		return 0, err
	}
	if ok {
		return 0, nil
	}

	val, err := s.client.Get(ctx, key("idempotency", k)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.Begin(ctx, k)
	}
	if err != nil {
		return 0, err
	}
	if val == pending {
		return 0, ErrInProgress
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt idempotency record %q: %w", k, err)
	}
	return id, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, k string, orderID int64) error {
	return s.client.Set(ctx, key("idempotency", k), strconv.FormatInt(orderID, 10), s.ttl).Err()
}

// Release drops a claim after a failed attempt so the client may retry.
func (s *IdempotencyStore) Release(ctx context.Context, k string) error {
	return s.client.Del(ctx, key("idempotency", k)).Err()
}
