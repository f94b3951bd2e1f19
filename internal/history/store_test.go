// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/storage"
)

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	s := NewStore(storage.NewMemoryKV())
	require.NoError(t, s.Load(context.Background()))
	assert.True(t, s.Empty())
}

func TestStore_LoadMalformedIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, storage.KeyChatHistory, []byte("{{{ not json")))

	s := NewStore(kv)
	require.NoError(t, s.Load(ctx))
	assert.True(t, s.Empty())
}

func TestStore_MergePersists(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()

	s := NewStore(kv)
	stats, err := s.Merge(ctx, model.History{msg("m2", 2), msg("m1", 1)})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Admitted)

	reopened := NewStore(kv)
	require.NoError(t, reopened.Load(ctx))
	assert.Equal(t, []string{"m1", "m2"}, ids(reopened.Messages()))
}

func TestStore_CapsAtLimit(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := NewStore(kv, WithLimit(200))

	var batch model.History
	for i := 0; i < 250; i++ {
		batch = append(batch, msg(fmt.Sprintf("m%03d", i), i))
	}
	_, err := s.Merge(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, 200, s.Len())
	assert.Equal(t, "m050", s.Messages()[0].ID, "oldest entries are evicted first")

	raw, err := kv.Get(ctx, storage.KeyChatHistory)
	require.NoError(t, err)
	persisted, _, err := Decode(raw)
	require.NoError(t, err)
	assert.Len(t, persisted, 200)
}

func TestStore_ReplaceAndClear(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := NewStore(kv)

	_, err := s.Merge(ctx, model.History{msg("old", 1)})
	require.NoError(t, err)

	require.NoError(t, s.Replace(ctx, model.History{msg("m5", 5), msg("m6", 6)}))
	assert.Equal(t, []string{"m5", "m6"}, ids(s.Messages()))

	require.NoError(t, s.Clear(ctx))
	assert.True(t, s.Empty())
	_, err = kv.Get(ctx, storage.KeyChatHistory)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_MessagesIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryKV())
	_, _ = s.Merge(ctx, model.History{msg("a", 1)})

	h := s.Messages()
	h[0].Text = "tampered"
	assert.Equal(t, "text a", s.Messages()[0].Text)
}

func TestStore_ReloadPicksUpOtherWriter(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()

	mine := NewStore(kv)
	_, _ = mine.Merge(ctx, model.History{msg("a", 1)})

	theirs := NewStore(kv)
	require.NoError(t, theirs.Load(ctx))
	_, _ = theirs.Merge(ctx, model.History{msg("b", 2)})

	stats, err := mine.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Admitted)
	assert.Equal(t, []string{"a", "b"}, ids(mine.Messages()))
}
