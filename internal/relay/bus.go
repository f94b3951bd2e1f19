// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"encoding/json"
	"sync"
)

// Delivery is an envelope addressed to a subset of peers.
type Delivery struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// ExcludePeer skips the peer with this id (the originator).
	ExcludePeer string `json:"excludePeer,omitempty"`
	// TargetUser restricts delivery to peers joined with this user id.
	TargetUser string `json:"targetUser,omitempty"`
}

// Bus fans deliveries out to every subscribed hub, including the publisher.
type Bus interface {
	Publish(ctx context.Context, d Delivery) error
	// Subscribe calls fn for every delivery until ctx is done.
	Subscribe(ctx context.Context, fn func(Delivery)) error
	Close() error
}

// MemoryBus delivers synchronously within one process.
type MemoryBus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Delivery)
}

// NewMemoryBus returns a bus with no subscribers.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]func(Delivery))}
}

func (b *MemoryBus) Publish(_ context.Context, d Delivery) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.subs {
		fn(d)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, fn func(Delivery)) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.subs = make(map[int]func(Delivery))
	b.mu.Unlock()
	return nil
}
