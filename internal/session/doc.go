// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the lifecycle of one chat session.
//
// A Controller is created when the chat view opens and torn down on leave.
// It holds the identity, the local history store and the transport, and walks
// the session through its states:
//
//	Init -> AwaitingHistoryChoice -> Connected <-> Disconnected
//
// # Key Types
//
//   - Controller: session state machine and outbound actions
//   - State: lifecycle state
//   - Choice: the user's answer to the load/discard prompt
//   - Provider: resolves the current identity (StaticProvider, HTTPProvider)
//
// # Usage
//
//	ctrl := session.NewController(ident, store, flags, tr, session.DefaultConfig())
//	if err := ctrl.Start(ctx); err != nil {
//	    return err
//	}
//	if ctrl.State() == session.StateAwaitingHistoryChoice {
//	    err = ctrl.ChooseLoad(ctx)
//	}
//
// The controller is not safe for concurrent use. It is driven from the single
// event loop that also dispatches inbound transport events.
package session
