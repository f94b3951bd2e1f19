// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages and identities.
//
// This package defines the core domain types shared by the history store,
// the merge engine, the event router and the rendering pipeline.
//
// # Key Types
//
//   - Message: a single chat message (id, username, type, text, timestamp)
//   - History: an ordered sequence of messages, ascending by timestamp
//   - Identity: the current user as resolved by the session provider
//   - Type: message type enumeration (user, tutor, system)
//
// # Identity Keys
//
// Messages are deduplicated by their identity key: the message id when
// present, otherwise the (username, text, timestamp) tuple. The tuple form is
// a weak key: a user repeating identical text within one timestamp tick
// collapses into a single message.
//
// # Usage
//
//	me := model.Identity{Username: "olena", Role: model.TypeTutor, UserID: "42"}
//	msg := model.NewMessage(me, "Hello!", time.Now())
//	key := msg.Key()
package model
