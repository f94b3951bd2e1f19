// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/protocol"
)

// Set TUTORCHAT_TEST_REDIS=localhost:6379 to run against a live redis.
func redisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("TUTORCHAT_TEST_REDIS")
	if addr == "" {
		t.Skip("TUTORCHAT_TEST_REDIS not set")
	}
	return addr
}

func TestRedisHistory_MergeDedupesAndTrims(t *testing.T) {
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, RedisOptions{Addr: redisAddr(t)})
	require.NoError(t, err)
	defer rdb.Close()

	key := "tutorchat:test:" + uuid.NewString()
	defer rdb.Del(ctx, key)

	h := NewRedisHistory(rdb, key, 2, nil)
	a := model.NewMessage(identity("a", "1"), "one", t0)
	b := model.NewMessage(identity("a", "1"), "two", t0.Add(time.Second))
	c := model.NewMessage(identity("a", "1"), "three", t0.Add(2*time.Second))

	n, err := h.Merge(ctx, model.History{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = h.Merge(ctx, model.History{b, c})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, c.ID, got[1].ID)
}

func TestRedisBus_FansOutAcrossHubs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rdb, err := NewRedisClient(ctx, RedisOptions{Addr: redisAddr(t)})
	require.NoError(t, err)
	defer rdb.Close()

	channel := "tutorchat:test:" + uuid.NewString()
	hist := NewMemoryHistory(10)
	hubA := NewHub(hist, NewRedisBus(rdb, channel, nil))
	hubB := NewHub(hist, NewRedisBus(rdb, channel, nil))
	require.NoError(t, hubA.Start(ctx))
	require.NoError(t, hubB.Start(ctx))

	alice, bob := hubA.Attach(), hubB.Attach()
	join(t, hubA, alice, identity("alice", "1"))
	drain(alice)
	join(t, hubB, bob, identity("bob", "2"))

	assert.Equal(t, protocol.EventUserJoined, recv(t, alice, 2*time.Second).Event)
}
