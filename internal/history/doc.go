// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history reconciles chat histories and keeps the local copy.
//
// # Merge
//
// Merge folds an incoming sequence into an existing one. Messages already
// present (by identity key) are dropped, malformed entries are skipped one by
// one, and the result is re-sorted by timestamp. Merge is pure: neither input
// is modified, and merging an empty sequence returns the existing one as is.
//
// # Store
//
// Store is the bounded local history. It is loaded from a storage.KV at
// startup, merged into as events arrive, and persisted after every change
// that admits new messages. Store is owned by a single event timeline and is
// not safe for concurrent use.
//
// # Usage
//
//	store := history.NewStore(kv, history.WithLimit(200), history.WithLogger(log))
//	if err := store.Load(ctx); err != nil { ... }
//	stats, err := store.Merge(ctx, pushed)
package history
