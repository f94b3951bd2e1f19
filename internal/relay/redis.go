// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jeranaias/tutorchat/internal/history"
	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/model"
)

// ErrConflict is returned when an optimistic history update keeps losing
// races with other writers.
var ErrConflict = errors.New("history update conflict")

const maxTxRetries = 5

// RedisOptions configures the shared redis client.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient dials redis and verifies the connection.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*goredis.Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// =============================================================================
// REDIS HISTORY
// =============================================================================

// RedisHistory stores one JSON message per list element under key.
type RedisHistory struct {
	rdb       *goredis.Client
	key       string
	retention int
	log       *logging.Logger
}

// NewRedisHistory uses the list at key.
func NewRedisHistory(rdb *goredis.Client, key string, retention int, log *logging.Logger) *RedisHistory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if log == nil {
		log = logging.Nop()
	}
	return &RedisHistory{rdb: rdb, key: key, retention: retention, log: log.With("service", "RedisHistory")}
}

func (h *RedisHistory) Load(ctx context.Context) (model.History, error) {
	vals, err := h.rdb.LRange(ctx, h.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	return h.decode(vals), nil
}

func (h *RedisHistory) Append(ctx context.Context, m model.Message) error {
	_, err := h.Merge(ctx, model.History{m})
	return err
}

// Merge reads, merges and rewrites the list inside a WATCH transaction.
func (h *RedisHistory) Merge(ctx context.Context, incoming model.History) (int, error) {
	admitted := 0
	txf := func(tx *goredis.Tx) error {
		vals, err := tx.LRange(ctx, h.key, 0, -1).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		merged, stats := history.MergeStats(h.decode(vals), incoming)
		admitted = stats.Admitted
		if admitted == 0 {
			return nil
		}
		merged = merged.Tail(h.retention)

		encoded := make([]interface{}, 0, len(merged))
		for _, m := range merged {
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			encoded = append(encoded, data)
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Del(ctx, h.key)
			p.RPush(ctx, h.key, encoded...)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := h.rdb.Watch(ctx, txf, h.key)
		if err == nil {
			return admitted, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return 0, fmt.Errorf("redis merge: %w", err)
	}
	return 0, ErrConflict
}

func (h *RedisHistory) decode(vals []string) model.History {
	out := make(model.History, 0, len(vals))
	for _, v := range vals {
		var m model.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			h.log.Warn("bad redis history entry", "error", err)
			continue
		}
		if m.Validate() != nil {
			continue
		}
		out = append(out, m.Normalize())
	}
	history.SortByTime(out)
	return out
}

// =============================================================================
// REDIS BUS
// =============================================================================

// RedisBus publishes deliveries on a redis pub/sub channel.
type RedisBus struct {
	rdb     *goredis.Client
	channel string
	log     *logging.Logger
}

// NewRedisBus uses channel on rdb.
func NewRedisBus(rdb *goredis.Client, channel string, log *logging.Logger) *RedisBus {
	if channel == "" {
		channel = "tutorchat"
	}
	if log == nil {
		log = logging.Nop()
	}
	return &RedisBus{rdb: rdb, channel: channel, log: log.With("service", "RedisBus")}
}

func (b *RedisBus) Publish(ctx context.Context, d Delivery) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, fn func(Delivery)) error {
	if fn == nil {
		return fmt.Errorf("delivery callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var d Delivery
				if err := json.Unmarshal([]byte(m.Payload), &d); err != nil {
					b.log.Warn("bad redis delivery payload", "error", err)
					continue
				}
				fn(d)
			}
		}
	}()
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBus) Close() error { return nil }
