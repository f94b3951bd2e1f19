// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key/value layer beneath the local
// chat history and client flags.
//
// # Key Types
//
//   - KV: byte-oriented key/value store with Get/Set/Delete
//   - FileKV: one JSON file per key, written atomically, optionally watched
//   - SQLiteKV, PebbleKV: embedded database backends
//   - MemoryKV: process-local backend for tests and ephemeral sessions
//   - Flags: small string flags persisted as one JSON document
//
// # Usage
//
//	kv, err := storage.Open(storage.Options{Backend: "file", Dir: dataDir})
//	if err != nil { ... }
//	defer kv.Close()
//
//	raw, err := kv.Get(ctx, storage.KeyChatHistory)
//	if errors.Is(err, storage.ErrNotFound) { ... }
//
// # Storage Location
//
// The file backend writes to ~/.tutorchat/data/<key>.json by default.
package storage
