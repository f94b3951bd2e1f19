// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the chat wire format shared by clients and the relay.
//
// Every frame is an Envelope: an event name plus a JSON payload. Payloads are
// plain model.Message, model.Identity or model.History values, with the one
// exception of share-history, which wraps a history with its target user.
//
// # Events
//
// Client to relay: join, leave, message, get-chat-history,
// update-server-history, share-history.
//
// Relay to client: message, chat-history, user-joined, user-left,
// receive-shared-history.
//
// Transports also synthesize connect and disconnect locally.
package protocol
