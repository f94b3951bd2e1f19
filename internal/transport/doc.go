// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport connects a chat client to the relay.
//
// Every Transport delivers inbound envelopes, including the synthetic
// connect and disconnect events, on a single channel in arrival order.
// Delivery waits for the consumer, so a slow reader backs up the link rather
// than losing envelopes; only Close abandons undelivered ones.
// Emit only queues; it never waits on the network.
//
// # Implementations
//
//   - WebSocket: dials a relay server, reconnects a bounded number of times
//   - Local: attaches directly to an in-process relay.Hub. Backed by memory
//     (offline and tests) or by redis history and pub/sub (brokered)
//
// # Usage
//
//	t, err := transport.New(ctx, transport.Config{Kind: "websocket", URL: url}, log, m)
//	if err := t.Connect(ctx); err != nil { ... }
//	for env := range t.Inbound() { ... }
package transport
