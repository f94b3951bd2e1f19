// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router turns inbound transport envelopes into typed events and
// applies each one to the session's history store and render pipeline.
//
// # Key Types
//
//   - Event: tagged union of inbound events (MessageReceived, HistoryPushed,
//     PeerJoined, PeerLeft, PeerHistoryShared, Connected, Disconnected,
//     StoreChanged)
//   - Router: single dispatch function over Event
//   - Effect: what the caller must do next (schedule a drain, show a notice)
//
// # Ordering
//
// Dispatch must be called from one goroutine, in arrival order. Each event's
// store mutation completes before the next event is looked at.
//
// # Usage
//
//	r := router.New(ctrl, pipe)
//	for env := range tr.Inbound() {
//	    eff := r.Handle(ctx, env)
//	    if eff.Drain {
//	        scheduleDrain()
//	    }
//	}
package router
