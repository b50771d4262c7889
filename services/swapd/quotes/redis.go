package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
)

// Redis stores quotes as JSON values that expire at ValidUntil.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ Cache = (*Redis)(nil)

// NewRedis connects a quote cache to the given server.
func NewRedis(addr, password string, db int, prefix string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

// Put implements Cache.
func (r *Redis) Put(ctx context.Context, quote swapledger.Quote) error {
	if quote.ID == "" {
		return fmt.Errorf("quote id required")
	}
	ttl := quote.ValidUntil.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(toRecord(quote))
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	return r.client.Set(ctx, r.key(quote.ID), data, ttl).Err()
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, id string) (swapledger.Quote, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return swapledger.Quote{}, ErrNotFound
		}
		return swapledger.Quote{}, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return swapledger.Quote{}, fmt.Errorf("unmarshal quote: %w", err)
	}
	return fromRecord(rec)
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
