// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay implements the server side of the chat channel.
//
// A Hub keeps the server-held history and fans envelopes out to attached
// peers. Deliveries go through a Bus so several relay processes can share
// one channel; each hub subscribes to the bus and hands matching deliveries
// to its local peers.
//
// # Key Types
//
//   - Hub: event handling and peer fan-out
//   - Peer: one attached client with a buffered outbound queue
//   - History: server-held history (MemoryHistory, RedisHistory)
//   - Bus: delivery fan-out (MemoryBus, RedisBus)
//   - Server: gin HTTP server exposing /ws, /healthz and /metrics
//
// # Endpoints
//
//   - GET /ws      - WebSocket upgrade, one Envelope per text frame
//   - GET /healthz - Health check
//   - GET /metrics - Prometheus metrics
//
// # Usage
//
//	hub := relay.NewHub(relay.NewMemoryHistory(100), relay.NewMemoryBus(), relay.WithLogger(log))
//	if err := hub.Start(ctx); err != nil { ... }
//	srv := relay.NewServer(hub, relay.ServerConfig{Listen: ":8080"}, log, m)
//	err := srv.Run(ctx)
package relay
